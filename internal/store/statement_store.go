package store

import (
	"context"
	"time"

	"adbudget/internal/models"

	"github.com/lib/pq"
)

type StatementStore struct {
	db DB
}

func NewStatementStore(db DB) *StatementStore {
	return &StatementStore{db: db}
}

// SpendTotals aggregates the nano spend components of a set of statements.
type SpendTotals struct {
	MediaNano      int64 `db:"media_nano"`
	DataNano       int64 `db:"data_nano"`
	LicenseFeeNano int64 `db:"license_fee_nano"`
	MarginNano     int64 `db:"margin_nano"`
}

// DateSpend is one day's gross spend for a budget.
type DateSpend struct {
	Date      time.Time `db:"date"`
	TotalNano int64     `db:"total_nano"`
}

// DeleteOnDate removes the statement rows for the budgets on one date so
// the day can be reprocessed from scratch. Must run inside the same
// transaction that re-inserts.
func (s *StatementStore) DeleteOnDate(ctx context.Context, tx Execer, budgetIDs []string, date time.Time) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM budget_daily_statements
		WHERE budget_id = ANY($1) AND date = $2
	`, pq.Array(budgetIDs), date)
	return err
}

// GrossSpendBefore returns, per budget, the cumulative gross spend
// (media + data + license fee) attributed on dates strictly before the
// given date. Budgets with no prior statements are absent from the map.
func (s *StatementStore) GrossSpendBefore(ctx context.Context, tx Selecter, budgetIDs []string, date time.Time) (map[string]int64, error) {
	var rows []struct {
		BudgetID  string `db:"budget_id"`
		TotalNano int64  `db:"total_nano"`
	}
	err := tx.SelectContext(ctx, &rows, `
		SELECT budget_id,
		       COALESCE(SUM(media_spend_nano + data_spend_nano + license_fee_nano), 0) AS total_nano
		FROM budget_daily_statements
		WHERE budget_id = ANY($1) AND date < $2
		GROUP BY budget_id
	`, pq.Array(budgetIDs), date)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.BudgetID] = row.TotalNano
	}
	return totals, nil
}

// GrossSpendThrough is GrossSpendBefore with the date included. The
// campaign-stop controller uses it to compute remaining budget capacity.
func (s *StatementStore) GrossSpendThrough(ctx context.Context, budgetIDs []string, date time.Time) (map[string]int64, error) {
	var rows []struct {
		BudgetID  string `db:"budget_id"`
		TotalNano int64  `db:"total_nano"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT budget_id,
		       COALESCE(SUM(media_spend_nano + data_spend_nano + license_fee_nano), 0) AS total_nano
		FROM budget_daily_statements
		WHERE budget_id = ANY($1) AND date <= $2
		GROUP BY budget_id
	`, pq.Array(budgetIDs), date)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.BudgetID] = row.TotalNano
	}
	return totals, nil
}

func (s *StatementStore) Insert(ctx context.Context, tx Execer, statement models.BudgetDailyStatement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budget_daily_statements
			(id, budget_id, date, media_spend_nano, data_spend_nano,
			 license_fee_nano, margin_nano, local_media_spend_nano,
			 local_data_spend_nano, local_license_fee_nano, local_margin_nano)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, statement.ID, statement.BudgetID, statement.Date,
		statement.MediaSpendNano, statement.DataSpendNano,
		statement.LicenseFeeNano, statement.MarginNano,
		statement.LocalMediaSpendNano, statement.LocalDataSpendNano,
		statement.LocalLicenseFeeNano, statement.LocalMarginNano)
	return err
}

// DailySpend returns the per-date gross spend of one budget over a closed
// date range, oldest first. Dates with no statement are absent.
func (s *StatementStore) DailySpend(ctx context.Context, budgetID string, from, to time.Time) ([]DateSpend, error) {
	var rows []DateSpend
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date,
		       SUM(media_spend_nano + data_spend_nano + license_fee_nano) AS total_nano
		FROM budget_daily_statements
		WHERE budget_id = $1 AND date BETWEEN $2 AND $3
		GROUP BY date
		ORDER BY date ASC
	`, budgetID, from, to)
	return rows, err
}

// CampaignGrossSpendOnDate sums the gross spend across all of a
// campaign's budgets for one date.
func (s *StatementStore) CampaignGrossSpendOnDate(ctx context.Context, campaignID string, date time.Time) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(s.media_spend_nano + s.data_spend_nano + s.license_fee_nano), 0)
		FROM budget_daily_statements s
		JOIN budgets b ON b.id = s.budget_id
		WHERE b.campaign_id = $1 AND s.date = $2
	`, campaignID, date)
	return total, err
}

// TotalsOnDate aggregates all statement components for one date across the
// whole ledger. The integrity audit compares this against each
// materialized view.
func (s *StatementStore) TotalsOnDate(ctx context.Context, date time.Time) (SpendTotals, error) {
	var totals SpendTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT COALESCE(SUM(media_spend_nano), 0)  AS media_nano,
		       COALESCE(SUM(data_spend_nano), 0)   AS data_nano,
		       COALESCE(SUM(license_fee_nano), 0)  AS license_fee_nano,
		       COALESCE(SUM(margin_nano), 0)       AS margin_nano
		FROM budget_daily_statements
		WHERE date = $1
	`, date)
	return totals, err
}
