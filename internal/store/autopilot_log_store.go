package store

import (
	"context"

	"adbudget/internal/models"
)

// AutopilotLogStore is append-only: decisions are recorded once and never
// touched again.
type AutopilotLogStore struct {
	db DB
}

func NewAutopilotLogStore(db DB) *AutopilotLogStore {
	return &AutopilotLogStore{db: db}
}

func (s *AutopilotLogStore) Insert(ctx context.Context, tx Execer, entry models.AutopilotLog) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO autopilot_logs
			(id, ad_group_id, ad_group_source_id, previous_cpc, new_cpc,
			 previous_daily_budget, new_daily_budget, yesterdays_spend,
			 yesterdays_clicks, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.AdGroupID, entry.AdGroupSourceID,
		entry.PreviousCPC, entry.NewCPC,
		entry.PreviousDailyBudget, entry.NewDailyBudget,
		entry.YesterdaysSpend, entry.YesterdaysClicks, entry.Comments)
	return err
}

func (s *AutopilotLogStore) ListByAdGroup(ctx context.Context, adGroupID string, limit int) ([]models.AutopilotLog, error) {
	var entries []models.AutopilotLog
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, ad_group_id, ad_group_source_id, previous_cpc, new_cpc,
		       previous_daily_budget, new_daily_budget, yesterdays_spend,
		       yesterdays_clicks, comments, created_at
		FROM autopilot_logs
		WHERE ad_group_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, adGroupID, limit)
	return entries, err
}
