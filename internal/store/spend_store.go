package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SpendStore reads the daily spend feed the external ETL writes. Feed
// rows carry micro-unit precision per (ad group, date, hour); callers
// convert micro to nano before attribution.
type SpendStore struct {
	db DB
}

func NewSpendStore(db DB) *SpendStore {
	return &SpendStore{db: db}
}

// CampaignSpend is one campaign-day of measured spend in micro units.
type CampaignSpend struct {
	MediaMicro int64 `db:"media_micro"`
	DataMicro  int64 `db:"data_micro"`
}

func (s *SpendStore) CampaignSpendOnDate(ctx context.Context, campaignID string, date time.Time) (CampaignSpend, error) {
	var spend CampaignSpend
	err := s.db.GetContext(ctx, &spend, `
		SELECT COALESCE(SUM(d.spend_micro), 0)      AS media_micro,
		       COALESCE(SUM(d.data_spend_micro), 0) AS data_micro
		FROM daily_spend d
		JOIN ad_groups g ON g.id = d.ad_group_id
		WHERE g.campaign_id = $1 AND d.date = $2
	`, campaignID, date)
	return spend, err
}

// DatesWithSpend lists the distinct dates with feed rows for a campaign
// within a closed range, ascending. Attribution must process them in this
// order because each date depends on the prior dates' accumulators.
func (s *SpendStore) DatesWithSpend(ctx context.Context, campaignID string, from, to time.Time) ([]time.Time, error) {
	var dates []time.Time
	err := s.db.SelectContext(ctx, &dates, `
		SELECT DISTINCT d.date
		FROM daily_spend d
		JOIN ad_groups g ON g.id = d.ad_group_id
		WHERE g.campaign_id = $1 AND d.date BETWEEN $2 AND $3
		ORDER BY d.date ASC
	`, campaignID, from, to)
	return dates, err
}

// SourceSpend is one ad-group source's spend and clicks for a date, in
// currency units as the autopilot consumes them.
type SourceSpend struct {
	AdGroupSourceID string          `db:"ad_group_source_id"`
	Spend           decimal.Decimal `db:"spend"`
	Clicks          int64           `db:"clicks"`
}

func (s *SpendStore) SourceSpendOnDate(ctx context.Context, adGroupID string, date time.Time) ([]SourceSpend, error) {
	var rows []SourceSpend
	err := s.db.SelectContext(ctx, &rows, `
		SELECT d.ad_group_source_id,
		       COALESCE(SUM(d.spend_micro + d.data_spend_micro), 0) / 1000000.0 AS spend,
		       COALESCE(SUM(d.clicks), 0) AS clicks
		FROM daily_spend d
		WHERE d.ad_group_id = $1 AND d.date = $2 AND d.ad_group_source_id IS NOT NULL
		GROUP BY d.ad_group_source_id
	`, adGroupID, date)
	return rows, err
}
