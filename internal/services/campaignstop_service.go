package services

import (
	"context"
	"log/slog"
	"time"

	"adbudget/internal/db"
	"adbudget/internal/models"
	"adbudget/internal/nano"
	"adbudget/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// notificationWindow is the rolling look-back within which a manager is
// not re-notified about the same campaign. The check runs on a daily
// cron, so one day keeps it to one notification per day.
const notificationWindow = 24 * time.Hour

type NotificationKind string

const (
	NotificationDepleting NotificationKind = "budget_depleting"
	NotificationStopping  NotificationKind = "campaign_stopping"
	NotificationStopped   NotificationKind = "campaign_stopped"
)

// Notification is the structured payload handed to the email-sending
// collaborator. The core never performs SMTP itself.
type Notification struct {
	Kind                NotificationKind
	Recipient           string
	Campaign            models.Campaign
	AvailableBudgetNano int64
	YesterdaysSpendNano int64
}

type NotificationSender interface {
	Send(ctx context.Context, notification Notification) error
}

type CampaignStore interface {
	List(ctx context.Context) ([]models.Campaign, error)
	ListNotInLandingMode(ctx context.Context) ([]models.Campaign, error)
	SetLandingMode(ctx context.Context, tx store.Execer, campaignID string, landing bool) error
}

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
}

type AdGroupStore interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]models.AdGroup, error)
}

type SourceLister interface {
	ListByAdGroup(ctx context.Context, adGroupID string) ([]models.AdGroupSource, error)
}

type SettingsStore interface {
	Latest(ctx context.Context, adGroupSourceID string) (models.AdGroupSourceSetting, bool, error)
	LatestActiveBefore(ctx context.Context, adGroupSourceID string, cutoff time.Time) (models.AdGroupSourceSetting, bool, error)
	Append(ctx context.Context, tx store.Execer, setting models.AdGroupSourceSetting) error
}

type StatementTotalsReader interface {
	GrossSpendThrough(ctx context.Context, budgetIDs []string, date time.Time) (map[string]int64, error)
	CampaignGrossSpendOnDate(ctx context.Context, campaignID string, date time.Time) (int64, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, tx store.Execer, notification models.DepletionNotification) error
	ManagerNotifiedSince(ctx context.Context, campaignID, managerEmail string, since time.Time) (bool, error)
}

// CampaignStopService decides when a campaign is about to outrun its
// budgets and has to wind down.
type CampaignStopService struct {
	txRunner      db.TxRunner
	campaigns     CampaignStore
	accounts      AccountStore
	adGroups      AdGroupStore
	sources       SourceLister
	settings      SettingsStore
	budgets       BudgetStore
	credits       CreditStore
	statements    StatementTotalsReader
	notifications NotificationStore
	sender        NotificationSender
	logger        *slog.Logger
	now           func() time.Time
}

func NewCampaignStopService(txRunner db.TxRunner, campaigns CampaignStore, accounts AccountStore, adGroups AdGroupStore, sources SourceLister, settings SettingsStore, budgets BudgetStore, credits CreditStore, statements StatementTotalsReader, notifications NotificationStore, sender NotificationSender, logger *slog.Logger) *CampaignStopService {
	return &CampaignStopService{
		txRunner:      txRunner,
		campaigns:     campaigns,
		accounts:      accounts,
		adGroups:      adGroups,
		sources:       sources,
		settings:      settings,
		budgets:       budgets,
		credits:       credits,
		statements:    statements,
		notifications: notifications,
		sender:        sender,
		logger:        logger,
		now:           time.Now,
	}
}

// SwitchLowBudgetCampaignsToLandingMode walks every campaign not already
// landing and compares what is left for tomorrow against what the active
// sources could spend in a day. Short a full day of budget, the campaign
// enters landing mode (bids and budgets frozen for the autopilot) and the
// manager is told it is stopping; short of two days, a depletion warning
// goes out instead.
func (s *CampaignStopService) SwitchLowBudgetCampaignsToLandingMode(ctx context.Context) error {
	today := dayOf(s.now())
	campaigns, err := s.campaigns.ListNotInLandingMode(ctx)
	if err != nil {
		return err
	}
	for _, campaign := range campaigns {
		availableTomorrow, maxDailyBudget, err := s.minimumRemainingBudget(ctx, campaign, today)
		if err != nil {
			return err
		}
		if maxDailyBudget <= 0 {
			continue
		}
		switch {
		case availableTomorrow < maxDailyBudget:
			if err := s.enterLandingMode(ctx, campaign, availableTomorrow, today); err != nil {
				return err
			}
		case availableTomorrow < 2*maxDailyBudget:
			if err := s.notifyDepleting(ctx, campaign, availableTomorrow, today); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAndNotifyDepletedBudgetCampaigns force-pauses the ad-group sources
// of fully depleted campaigns, but only where the account opted into
// automatic stopping. A distinct "stopped" notification is recorded.
func (s *CampaignStopService) StopAndNotifyDepletedBudgetCampaigns(ctx context.Context) error {
	today := dayOf(s.now())
	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return err
	}
	for _, campaign := range campaigns {
		account, err := s.accounts.GetByID(ctx, campaign.AccountID)
		if err != nil {
			return err
		}
		if !account.AutoStopEnabled {
			continue
		}
		available, err := s.availableBudget(ctx, campaign, today)
		if err != nil {
			return err
		}
		if available > 0 {
			continue
		}

		yesterdaysSpend, err := s.statements.CampaignGrossSpendOnDate(ctx, campaign.ID, today.AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := s.pauseAllSources(ctx, tx, campaign); err != nil {
				return err
			}
			return s.notifications.Insert(ctx, tx, models.DepletionNotification{
				ID:                  uuid.NewString(),
				CampaignID:          campaign.ID,
				ManagerEmail:        account.ManagerEmail,
				AvailableBudgetNano: available,
				YesterdaysSpendNano: yesterdaysSpend,
				Stopped:             true,
			})
		})
		if err != nil {
			return err
		}
		s.sendQuietly(ctx, Notification{
			Kind:                NotificationStopped,
			Recipient:           account.ManagerEmail,
			Campaign:            campaign,
			AvailableBudgetNano: available,
			YesterdaysSpendNano: yesterdaysSpend,
		})
	}
	return nil
}

// minimumRemainingBudget computes how much budget remains available to
// the campaign tomorrow after today's projected spend, and the most the
// campaign's active sources would spend in a day. Today's projected spend
// is drawn down the waterfall in budget creation order, exactly like the
// historical attribution.
func (s *CampaignStopService) minimumRemainingBudget(ctx context.Context, campaign models.Campaign, today time.Time) (int64, int64, error) {
	tomorrow := today.AddDate(0, 0, 1)

	maxDailyBudget, err := s.maxDailyBudget(ctx, campaign, tomorrow)
	if err != nil {
		return 0, 0, err
	}

	budgetsToday, err := s.budgets.ListActiveOn(ctx, campaign.ID, today)
	if err != nil {
		return 0, 0, err
	}
	budgetsTomorrow, err := s.budgets.ListActiveOn(ctx, campaign.ID, tomorrow)
	if err != nil {
		return 0, 0, err
	}

	remaining, err := s.remainingCapacity(ctx, append(append([]models.BudgetLineItem{}, budgetsToday...), budgetsTomorrow...), today)
	if err != nil {
		return 0, 0, err
	}

	need := maxDailyBudget
	for _, budget := range budgetsToday {
		take := minInt64(need, remaining[budget.ID])
		remaining[budget.ID] -= take
		need -= take
		if need <= 0 {
			break
		}
	}

	var availableTomorrow int64
	for _, budget := range budgetsTomorrow {
		availableTomorrow += remaining[budget.ID]
	}
	return availableTomorrow, maxDailyBudget, nil
}

// maxDailyBudget sums, over the campaign's sources, the newest ACTIVE
// daily-budget setting recorded strictly before the cutoff.
func (s *CampaignStopService) maxDailyBudget(ctx context.Context, campaign models.Campaign, cutoff time.Time) (int64, error) {
	adGroups, err := s.adGroups.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, adGroup := range adGroups {
		sources, err := s.sources.ListByAdGroup(ctx, adGroup.ID)
		if err != nil {
			return 0, err
		}
		for _, source := range sources {
			setting, ok, err := s.settings.LatestActiveBefore(ctx, source.ID, cutoff)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			total += nano.FromAmount(setting.DailyBudget)
		}
	}
	return total, nil
}

// availableBudget is the campaign's total remaining net capacity across
// budgets active today.
func (s *CampaignStopService) availableBudget(ctx context.Context, campaign models.Campaign, today time.Time) (int64, error) {
	budgets, err := s.budgets.ListActiveOn(ctx, campaign.ID, today)
	if err != nil {
		return 0, err
	}
	remaining, err := s.remainingCapacity(ctx, budgets, today)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, budget := range budgets {
		total += remaining[budget.ID]
	}
	return total, nil
}

// remainingCapacity computes, per budget, the net capacity left after all
// spend attributed through the date: (amount - spent) * (1 - license fee).
func (s *CampaignStopService) remainingCapacity(ctx context.Context, budgets []models.BudgetLineItem, through time.Time) (map[string]int64, error) {
	ids := make([]string, 0, len(budgets))
	for _, budget := range budgets {
		ids = append(ids, budget.ID)
	}
	spent, err := s.statements.GrossSpendThrough(ctx, ids, through)
	if err != nil {
		return nil, err
	}

	one := decimal.NewFromInt(1)
	credits := map[string]models.CreditLineItem{}
	remaining := make(map[string]int64, len(budgets))
	for _, budget := range budgets {
		if _, ok := remaining[budget.ID]; ok {
			continue
		}
		credit, ok := credits[budget.CreditID]
		if !ok {
			credit, err = s.credits.GetByID(ctx, budget.CreditID)
			if err != nil {
				return nil, err
			}
			credits[budget.CreditID] = credit
		}
		gross := nano.FromAmount(budget.Amount) - spent[budget.ID]
		if gross < 0 {
			gross = 0
		}
		remaining[budget.ID] = nano.ApplyFraction(gross, one.Sub(credit.LicenseFee))
	}
	return remaining, nil
}

func (s *CampaignStopService) enterLandingMode(ctx context.Context, campaign models.Campaign, available int64, today time.Time) error {
	account, err := s.accounts.GetByID(ctx, campaign.AccountID)
	if err != nil {
		return err
	}
	notified, err := s.notifications.ManagerNotifiedSince(ctx, campaign.ID, account.ManagerEmail, s.now().Add(-notificationWindow))
	if err != nil {
		return err
	}
	yesterdaysSpend, err := s.statements.CampaignGrossSpendOnDate(ctx, campaign.ID, today.AddDate(0, 0, -1))
	if err != nil {
		return err
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.campaigns.SetLandingMode(ctx, tx, campaign.ID, true); err != nil {
			return err
		}
		if notified {
			return nil
		}
		return s.notifications.Insert(ctx, tx, models.DepletionNotification{
			ID:                  uuid.NewString(),
			CampaignID:          campaign.ID,
			ManagerEmail:        account.ManagerEmail,
			AvailableBudgetNano: available,
			YesterdaysSpendNano: yesterdaysSpend,
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info("campaign switched to landing mode",
		"campaign_id", campaign.ID, "available_budget", nano.Format(available))
	if !notified {
		s.sendQuietly(ctx, Notification{
			Kind:                NotificationStopping,
			Recipient:           account.ManagerEmail,
			Campaign:            campaign,
			AvailableBudgetNano: available,
			YesterdaysSpendNano: yesterdaysSpend,
		})
	}
	return nil
}

func (s *CampaignStopService) notifyDepleting(ctx context.Context, campaign models.Campaign, available int64, today time.Time) error {
	account, err := s.accounts.GetByID(ctx, campaign.AccountID)
	if err != nil {
		return err
	}
	notified, err := s.notifications.ManagerNotifiedSince(ctx, campaign.ID, account.ManagerEmail, s.now().Add(-notificationWindow))
	if err != nil {
		return err
	}
	if notified {
		return nil
	}
	yesterdaysSpend, err := s.statements.CampaignGrossSpendOnDate(ctx, campaign.ID, today.AddDate(0, 0, -1))
	if err != nil {
		return err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.notifications.Insert(ctx, tx, models.DepletionNotification{
			ID:                  uuid.NewString(),
			CampaignID:          campaign.ID,
			ManagerEmail:        account.ManagerEmail,
			AvailableBudgetNano: available,
			YesterdaysSpendNano: yesterdaysSpend,
		})
	})
	if err != nil {
		return err
	}
	s.sendQuietly(ctx, Notification{
		Kind:                NotificationDepleting,
		Recipient:           account.ManagerEmail,
		Campaign:            campaign,
		AvailableBudgetNano: available,
		YesterdaysSpendNano: yesterdaysSpend,
	})
	return nil
}

// pauseAllSources appends an inactive settings version for every source
// in the campaign.
func (s *CampaignStopService) pauseAllSources(ctx context.Context, tx *sqlx.Tx, campaign models.Campaign) error {
	adGroups, err := s.adGroups.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	for _, adGroup := range adGroups {
		sources, err := s.sources.ListByAdGroup(ctx, adGroup.ID)
		if err != nil {
			return err
		}
		for _, source := range sources {
			current, ok, err := s.settings.Latest(ctx, source.ID)
			if err != nil {
				return err
			}
			if !ok || current.State != models.SourceActive {
				continue
			}
			next := models.AdGroupSourceSetting{
				ID:              uuid.NewString(),
				AdGroupSourceID: source.ID,
				State:           models.SourceInactive,
				CPC:             current.CPC,
				DailyBudget:     current.DailyBudget,
			}
			if err := s.settings.Append(ctx, tx, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// sendQuietly delivers a notification without letting a send failure
// abort the surrounding budget check.
func (s *CampaignStopService) sendQuietly(ctx context.Context, notification Notification) {
	if err := s.sender.Send(ctx, notification); err != nil {
		s.logger.Error("notification send failed",
			"kind", string(notification.Kind),
			"campaign_id", notification.Campaign.ID,
			"error", err)
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
