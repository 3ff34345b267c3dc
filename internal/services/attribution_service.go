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

type BudgetStore interface {
	ListActiveOn(ctx context.Context, campaignID string, date time.Time) ([]models.BudgetLineItem, error)
}

type CreditStore interface {
	GetByID(ctx context.Context, creditID string) (models.CreditLineItem, error)
}

type StatementStore interface {
	DeleteOnDate(ctx context.Context, tx store.Execer, budgetIDs []string, date time.Time) error
	GrossSpendBefore(ctx context.Context, tx store.Selecter, budgetIDs []string, date time.Time) (map[string]int64, error)
	Insert(ctx context.Context, tx store.Execer, statement models.BudgetDailyStatement) error
}

type SpendFeed interface {
	CampaignSpendOnDate(ctx context.Context, campaignID string, date time.Time) (store.CampaignSpend, error)
	DatesWithSpend(ctx context.Context, campaignID string, from, to time.Time) ([]time.Time, error)
}

type RateResolver interface {
	GetExchangeRate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error)
}

// CampaignSpend is one campaign-day of measured spend in nano units, as
// handed to the waterfall.
type CampaignSpend struct {
	MediaNano int64
	DataNano  int64
}

// AttributionService distributes a campaign's measured daily spend across
// its overlapping budgets, oldest budget first, producing one daily
// statement row per active budget.
type AttributionService struct {
	txRunner   db.TxRunner
	budgets    BudgetStore
	credits    CreditStore
	statements StatementStore
	spendFeed  SpendFeed
	exchange   RateResolver
	logger     *slog.Logger
}

func NewAttributionService(txRunner db.TxRunner, budgets BudgetStore, credits CreditStore, statements StatementStore, spendFeed SpendFeed, exchange RateResolver, logger *slog.Logger) *AttributionService {
	return &AttributionService{
		txRunner:   txRunner,
		budgets:    budgets,
		credits:    credits,
		statements: statements,
		spendFeed:  spendFeed,
		exchange:   exchange,
		logger:     logger,
	}
}

// BudgetAccumulator tracks how much of a budget's capacity a run has
// consumed, split by component.
type BudgetAccumulator struct {
	MediaNano      int64
	DataNano       int64
	LicenseFeeNano int64
}

func (a BudgetAccumulator) TotalNano() int64 {
	return a.MediaNano + a.DataNano + a.LicenseFeeNano
}

// GenerateStatements reprocesses one (campaign, date): existing statement
// rows for the date are deleted and regenerated inside a single
// transaction holding the campaign advisory lock, so the operation is
// idempotent and a reader never observes a partially written day. A
// missing exchange rate aborts the whole date.
func (s *AttributionService) GenerateStatements(ctx context.Context, date time.Time, campaign models.Campaign, spend CampaignSpend) error {
	return s.txRunner.WithCampaignTx(ctx, campaign.ID, func(tx *sqlx.Tx) error {
		return s.generate(ctx, tx, date, campaign, spend)
	})
}

func (s *AttributionService) generate(ctx context.Context, tx *sqlx.Tx, date time.Time, campaign models.Campaign, spend CampaignSpend) error {
	budgets, err := s.budgets.ListActiveOn(ctx, campaign.ID, date)
	if err != nil {
		return err
	}
	if len(budgets) == 0 {
		if spend.MediaNano+spend.DataNano > 0 {
			s.logger.Warn("campaign spend with no active budgets",
				"campaign_id", campaign.ID,
				"date", date.Format("2006-01-02"),
				"media_nano", spend.MediaNano,
				"data_nano", spend.DataNano)
		}
		return nil
	}

	budgetIDs := make([]string, 0, len(budgets))
	for _, budget := range budgets {
		budgetIDs = append(budgetIDs, budget.ID)
	}
	if err := s.statements.DeleteOnDate(ctx, tx, budgetIDs, date); err != nil {
		return err
	}
	priorSpend, err := s.statements.GrossSpendBefore(ctx, tx, budgetIDs, date)
	if err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	credits := map[string]models.CreditLineItem{}
	remainingMedia := spend.MediaNano
	remainingData := spend.DataNano

	for _, budget := range budgets {
		credit, ok := credits[budget.CreditID]
		if !ok {
			credit, err = s.credits.GetByID(ctx, budget.CreditID)
			if err != nil {
				return err
			}
			credits[budget.CreditID] = credit
		}

		var attributed BudgetAccumulator
		budgetAmountNano := nano.FromAmount(budget.Amount)
		spentNano := priorSpend[budget.ID]
		if remainingMedia+remainingData > 0 && spentNano < budgetAmountNano {
			// Capacity is expressed net of the license fee that will be
			// charged on top of whatever lands here.
			availableNano := nano.ApplyFraction(budgetAmountNano-spentNano, one.Sub(credit.LicenseFee))
			if remainingMedia+remainingData > availableNano {
				attributed.MediaNano = minInt64(remainingMedia, availableNano)
				attributed.DataNano = minInt64(remainingData, availableNano-attributed.MediaNano)
			} else {
				attributed.MediaNano = remainingMedia
				attributed.DataNano = remainingData
			}
			attributed.LicenseFeeNano = nano.MarkupFee(attributed.MediaNano+attributed.DataNano, credit.LicenseFee)
			remainingMedia -= attributed.MediaNano
			remainingData -= attributed.DataNano
		}
		marginNano := nano.MarkupFee(attributed.TotalNano(), budget.Margin)

		rate, err := s.exchange.GetExchangeRate(ctx, date, credit.Currency)
		if err != nil {
			return err
		}

		// One statement per (budget, date), zero amounts included, so the
		// reporting side sees a complete grid.
		statement := models.BudgetDailyStatement{
			ID:                  uuid.NewString(),
			BudgetID:            budget.ID,
			Date:                date,
			MediaSpendNano:      attributed.MediaNano,
			DataSpendNano:       attributed.DataNano,
			LicenseFeeNano:      attributed.LicenseFeeNano,
			MarginNano:          marginNano,
			LocalMediaSpendNano: nano.ApplyRate(attributed.MediaNano, rate),
			LocalDataSpendNano:  nano.ApplyRate(attributed.DataNano, rate),
			LocalLicenseFeeNano: nano.ApplyRate(attributed.LicenseFeeNano, rate),
			LocalMarginNano:     nano.ApplyRate(marginNano, rate),
		}
		if err := s.statements.Insert(ctx, tx, statement); err != nil {
			return err
		}
	}

	if remainingMedia+remainingData > 0 {
		// Over-spend beyond all budget capacity is a data/ops anomaly to
		// flag, not an error: refusing to record actual spend would be
		// worse than leaving a remainder.
		s.logger.Warn("campaign spend exceeds total budget capacity",
			"campaign_id", campaign.ID,
			"date", date.Format("2006-01-02"),
			"unattributed_media_nano", remainingMedia,
			"unattributed_data_nano", remainingData)
	}
	return nil
}

// ProcessCampaign attributes every feed date for a campaign within the
// range, in strictly ascending order: each date's waterfall depends on the
// accumulators left by prior dates. An error stops the run so later dates
// are not computed on stale prior state.
func (s *AttributionService) ProcessCampaign(ctx context.Context, campaign models.Campaign, from, to time.Time) error {
	dates, err := s.spendFeed.DatesWithSpend(ctx, campaign.ID, from, to)
	if err != nil {
		return err
	}
	for _, date := range dates {
		feed, err := s.spendFeed.CampaignSpendOnDate(ctx, campaign.ID, date)
		if err != nil {
			return err
		}
		spend := CampaignSpend{
			MediaNano: nano.FromMicro(feed.MediaMicro),
			DataNano:  nano.FromMicro(feed.DataMicro),
		}
		if err := s.GenerateStatements(ctx, date, campaign, spend); err != nil {
			return err
		}
	}
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
