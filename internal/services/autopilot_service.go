package services

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"adbudget/internal/autopilot"
	"adbudget/internal/db"
	"adbudget/internal/models"
	"adbudget/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type SourceTypeGetter interface {
	ListByAdGroup(ctx context.Context, adGroupID string) ([]models.AdGroupSource, error)
	GetSourceType(ctx context.Context, sourceTypeID string) (models.SourceType, error)
}

type SourceSpendReader interface {
	SourceSpendOnDate(ctx context.Context, adGroupID string, date time.Time) ([]store.SourceSpend, error)
}

type AutopilotLogStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.AutopilotLog) error
}

// AutopilotService runs the daily bid and budget adjustments. The pure
// arithmetic lives in the autopilot package; this service feeds it the
// settings history and yesterday's spend and persists the outcome as new
// settings versions plus an audit log entry per source.
type AutopilotService struct {
	txRunner  db.TxRunner
	campaigns CampaignStore
	adGroups  AdGroupStore
	sources   SourceTypeGetter
	settings  SettingsStore
	spend     SourceSpendReader
	logs      AutopilotLogStore
	logger    *slog.Logger
	rng       *rand.Rand
	now       func() time.Time
}

func NewAutopilotService(txRunner db.TxRunner, campaigns CampaignStore, adGroups AdGroupStore, sources SourceTypeGetter, settings SettingsStore, spend SourceSpendReader, logs AutopilotLogStore, logger *slog.Logger, rng *rand.Rand) *AutopilotService {
	return &AutopilotService{
		txRunner:  txRunner,
		campaigns: campaigns,
		adGroups:  adGroups,
		sources:   sources,
		settings:  settings,
		spend:     spend,
		logs:      logs,
		logger:    logger,
		rng:       rng,
		now:       time.Now,
	}
}

// sourceSnapshot joins everything known about one ad-group source before
// the adjustment: its type limits, its current settings version and
// yesterday's observed performance.
type sourceSnapshot struct {
	source     models.AdGroupSource
	sourceType models.SourceType
	setting    models.AdGroupSourceSetting
	hasSetting bool
	spend      decimal.Decimal
	clicks     int64
}

// Run adjusts every ad group of every campaign not in landing mode.
// A failing campaign is logged and skipped so one broken account does not
// stall the nightly run for everyone else.
func (s *AutopilotService) Run(ctx context.Context) error {
	campaigns, err := s.campaigns.ListNotInLandingMode(ctx)
	if err != nil {
		return err
	}
	for _, campaign := range campaigns {
		if err := s.RunCampaign(ctx, campaign); err != nil {
			s.logger.Error("autopilot run failed for campaign",
				"campaign_id", campaign.ID, "error", err)
		}
	}
	return nil
}

func (s *AutopilotService) RunCampaign(ctx context.Context, campaign models.Campaign) error {
	yesterday := dayOf(s.now()).AddDate(0, 0, -1)
	adGroups, err := s.adGroups.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	for _, adGroup := range adGroups {
		if err := s.runAdGroup(ctx, adGroup, yesterday); err != nil {
			return err
		}
	}
	return nil
}

func (s *AutopilotService) runAdGroup(ctx context.Context, adGroup models.AdGroup, yesterday time.Time) error {
	snapshots, err := s.snapshotSources(ctx, adGroup, yesterday)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return nil
	}

	newBudgets := s.adjustBudgets(adGroup, snapshots)

	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, snapshot := range snapshots {
			if !snapshot.hasSetting || snapshot.setting.State != models.SourceActive {
				continue
			}

			newCPC, comments := autopilot.CalculateNewCPC(snapshot.setting.CPC, snapshot.setting.DailyBudget, snapshot.spend)
			newCPC, sourceComments := autopilot.ThresholdSourceConstraints(newCPC, snapshot.sourceType.MinCPC, snapshot.sourceType.MaxCPC)
			comments = append(comments, sourceComments...)
			if adGroup.MaxCPC != nil {
				var groupComments []autopilot.Comment
				newCPC, groupComments = autopilot.ThresholdAdGroupConstraints(newCPC, *adGroup.MaxCPC)
				comments = append(comments, groupComments...)
			}

			newBudget := snapshot.setting.DailyBudget
			if budget, ok := newBudgets[snapshot.source.ID]; ok {
				newBudget = budget
			}

			if newCPC.Equal(snapshot.setting.CPC) && newBudget.Equal(snapshot.setting.DailyBudget) && len(comments) == 0 {
				continue
			}

			next := models.AdGroupSourceSetting{
				ID:              uuid.NewString(),
				AdGroupSourceID: snapshot.source.ID,
				State:           snapshot.setting.State,
				CPC:             newCPC,
				DailyBudget:     newBudget,
			}
			if err := s.settings.Append(ctx, tx, next); err != nil {
				return err
			}

			previousCPC := snapshot.setting.CPC
			previousBudget := snapshot.setting.DailyBudget
			entry := models.AutopilotLog{
				ID:                  uuid.NewString(),
				AdGroupID:           adGroup.ID,
				AdGroupSourceID:     snapshot.source.ID,
				PreviousCPC:         &previousCPC,
				NewCPC:              &newCPC,
				PreviousDailyBudget: &previousBudget,
				NewDailyBudget:      &newBudget,
				YesterdaysSpend:     snapshot.spend,
				YesterdaysClicks:    snapshot.clicks,
				Comments:            autopilot.JoinComments(comments),
			}
			if err := s.logs.Insert(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// adjustBudgets runs the redistribution over the autopilot-capable active
// sources and returns the new per-source daily budgets. Sources without
// spend history fall back to floor constraints, with a bandit pick
// seeding which cold source participates in the rebalance.
func (s *AutopilotService) adjustBudgets(adGroup models.AdGroup, snapshots []sourceSnapshot) map[string]decimal.Decimal {
	var budgetSources []autopilot.BudgetSource
	for _, snapshot := range snapshots {
		if !snapshot.sourceType.SupportsBudgetAutopilot {
			continue
		}
		if !snapshot.hasSetting || snapshot.setting.State != models.SourceActive {
			continue
		}
		budgetSources = append(budgetSources, autopilot.BudgetSource{
			ID:              snapshot.source.ID,
			OldBudget:       snapshot.setting.DailyBudget,
			YesterdaysSpend: snapshot.spend,
			MinDailyBudget:  snapshot.sourceType.MinDailyBudget,
			MaxDailyBudget:  snapshot.sourceType.MaxDailyBudget,
			IsRTB:           snapshot.sourceType.IsRTB,
		})
	}
	if len(budgetSources) == 0 || !adGroup.DailyBudget.IsPositive() {
		return nil
	}

	allSeeded := true
	for _, source := range budgetSources {
		if !source.OldBudget.IsPositive() {
			allSeeded = false
			break
		}
	}

	var constraints map[string]autopilot.Constraint
	if allSeeded {
		constraints = autopilot.OptimisticConstraints(budgetSources, adGroup.RTBAsOne)
	} else {
		constraints = autopilot.MinimumConstraints(budgetSources, adGroup.RTBAsOne)
	}

	active := autopilot.ActiveSourcesWithSpend(budgetSources)
	if len(active) == 0 {
		// No spend yet anywhere. Let the bandit explore: the sampled
		// source gets the whole rebalance headroom this run.
		bandit := autopilot.NewBetaBandit(s.rng)
		for _, source := range budgetSources {
			bandit.AddSource(source.ID)
		}
		if pick := bandit.Recommend(); pick != "" {
			active = map[string]bool{pick: true}
		}
	}

	return autopilot.Redistribute(adGroup.DailyBudget, budgetSources, constraints, active)
}

func (s *AutopilotService) snapshotSources(ctx context.Context, adGroup models.AdGroup, yesterday time.Time) ([]sourceSnapshot, error) {
	sources, err := s.sources.ListByAdGroup(ctx, adGroup.ID)
	if err != nil {
		return nil, err
	}
	spendRows, err := s.spend.SourceSpendOnDate(ctx, adGroup.ID, yesterday)
	if err != nil {
		return nil, err
	}
	spendBySource := make(map[string]store.SourceSpend, len(spendRows))
	for _, row := range spendRows {
		spendBySource[row.AdGroupSourceID] = row
	}

	sourceTypes := map[string]models.SourceType{}
	snapshots := make([]sourceSnapshot, 0, len(sources))
	for _, source := range sources {
		sourceType, ok := sourceTypes[source.SourceTypeID]
		if !ok {
			sourceType, err = s.sources.GetSourceType(ctx, source.SourceTypeID)
			if err != nil {
				return nil, err
			}
			sourceTypes[source.SourceTypeID] = sourceType
		}
		setting, hasSetting, err := s.settings.Latest(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		snapshot := sourceSnapshot{
			source:     source,
			sourceType: sourceType,
			setting:    setting,
			hasSetting: hasSetting,
		}
		if row, ok := spendBySource[source.ID]; ok {
			snapshot.spend = row.Spend
			snapshot.clicks = row.Clicks
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}
