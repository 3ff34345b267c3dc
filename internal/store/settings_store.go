package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"adbudget/internal/models"
)

// SettingsStore is the repository over the append-only ad-group-source
// settings history. "Current settings" is always a query over history,
// never a mutable pointer.
type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Latest returns the newest settings row for an ad-group source. The
// second return value is false when the source was never configured.
func (s *SettingsStore) Latest(ctx context.Context, adGroupSourceID string) (models.AdGroupSourceSetting, bool, error) {
	return s.latest(ctx, adGroupSourceID, time.Time{}, false)
}

// LatestBefore returns the newest settings row created strictly before
// the cutoff.
func (s *SettingsStore) LatestBefore(ctx context.Context, adGroupSourceID string, cutoff time.Time) (models.AdGroupSourceSetting, bool, error) {
	return s.latest(ctx, adGroupSourceID, cutoff, false)
}

// LatestActiveBefore is LatestBefore restricted to rows in the active
// state; the campaign-stop lookback uses it to find the daily budget a
// source would spend tomorrow.
func (s *SettingsStore) LatestActiveBefore(ctx context.Context, adGroupSourceID string, cutoff time.Time) (models.AdGroupSourceSetting, bool, error) {
	return s.latest(ctx, adGroupSourceID, cutoff, true)
}

func (s *SettingsStore) latest(ctx context.Context, adGroupSourceID string, cutoff time.Time, activeOnly bool) (models.AdGroupSourceSetting, bool, error) {
	query := `
		SELECT id, ad_group_source_id, state, cpc, daily_budget, created_at
		FROM ad_group_source_settings
		WHERE ad_group_source_id = $1`
	args := []any{adGroupSourceID}
	if !cutoff.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, cutoff)
	}
	if activeOnly {
		query += ` AND state = 'active'`
	}
	query += `
		ORDER BY created_at DESC
		LIMIT 1`

	var setting models.AdGroupSourceSetting
	err := s.db.GetContext(ctx, &setting, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AdGroupSourceSetting{}, false, nil
	}
	if err != nil {
		return models.AdGroupSourceSetting{}, false, err
	}
	return setting, true, nil
}

// Append writes a new settings version. History is never updated in
// place.
func (s *SettingsStore) Append(ctx context.Context, tx Execer, setting models.AdGroupSourceSetting) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ad_group_source_settings (id, ad_group_source_id, state, cpc, daily_budget)
		VALUES ($1, $2, $3, $4, $5)
	`, setting.ID, setting.AdGroupSourceID, setting.State, setting.CPC, setting.DailyBudget)
	return err
}
