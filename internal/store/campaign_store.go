package store

import (
	"context"

	"adbudget/internal/models"
)

type CampaignStore struct {
	db DB
}

func NewCampaignStore(db DB) *CampaignStore {
	return &CampaignStore{db: db}
}

func (s *CampaignStore) GetByID(ctx context.Context, campaignID string) (models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.GetContext(ctx, &campaign, `
		SELECT id, account_id, name, in_landing_mode, created_at
		FROM campaigns
		WHERE id = $1
	`, campaignID)
	return campaign, err
}

func (s *CampaignStore) List(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.SelectContext(ctx, &campaigns, `
		SELECT id, account_id, name, in_landing_mode, created_at
		FROM campaigns
		ORDER BY created_at ASC
	`)
	return campaigns, err
}

// ListNotInLandingMode returns the campaigns the depletion check still
// needs to evaluate.
func (s *CampaignStore) ListNotInLandingMode(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.db.SelectContext(ctx, &campaigns, `
		SELECT id, account_id, name, in_landing_mode, created_at
		FROM campaigns
		WHERE NOT in_landing_mode
		ORDER BY created_at ASC
	`)
	return campaigns, err
}

func (s *CampaignStore) SetLandingMode(ctx context.Context, tx Execer, campaignID string, landing bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET in_landing_mode = $2 WHERE id = $1
	`, campaignID, landing)
	return err
}

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var account models.Account
	err := s.db.GetContext(ctx, &account, `
		SELECT id, agency_id, name, manager_email, auto_stop_enabled, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	return account, err
}

type AdGroupStore struct {
	db DB
}

func NewAdGroupStore(db DB) *AdGroupStore {
	return &AdGroupStore{db: db}
}

func (s *AdGroupStore) ListByCampaign(ctx context.Context, campaignID string) ([]models.AdGroup, error) {
	var groups []models.AdGroup
	err := s.db.SelectContext(ctx, &groups, `
		SELECT id, campaign_id, name, daily_budget, max_cpc, rtb_as_one, created_at
		FROM ad_groups
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`, campaignID)
	return groups, err
}

type SourceStore struct {
	db DB
}

func NewSourceStore(db DB) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) ListByAdGroup(ctx context.Context, adGroupID string) ([]models.AdGroupSource, error) {
	var sources []models.AdGroupSource
	err := s.db.SelectContext(ctx, &sources, `
		SELECT id, ad_group_id, source_type_id, name, created_at
		FROM ad_group_sources
		WHERE ad_group_id = $1
		ORDER BY created_at ASC
	`, adGroupID)
	return sources, err
}

func (s *SourceStore) GetSourceType(ctx context.Context, sourceTypeID string) (models.SourceType, error) {
	var sourceType models.SourceType
	err := s.db.GetContext(ctx, &sourceType, `
		SELECT id, name, min_cpc, max_cpc, min_daily_budget, max_daily_budget,
		       supports_budget_autopilot, is_rtb
		FROM source_types
		WHERE id = $1
	`, sourceTypeID)
	return sourceType, err
}
