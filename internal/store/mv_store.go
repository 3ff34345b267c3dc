package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownView = errors.New("unknown materialized view")

// MaterializedViews lists every reporting aggregate the integrity audit
// compares against the primary ledger.
var MaterializedViews = []string{
	"mv_master",
	"mv_campaign",
	"mv_campaign_device",
	"mv_campaign_geo",
	"mv_campaign_placement",
	"mv_account",
	"mv_account_device",
	"mv_account_geo",
	"mv_account_placement",
	"mv_ad_group",
	"mv_ad_group_device",
	"mv_ad_group_geo",
	"mv_ad_group_placement",
	"mv_content_ad",
	"mv_content_ad_device",
	"mv_content_ad_geo",
	"mv_content_ad_placement",
}

// MaterializedViewStore reads the precomputed reporting aggregates. The
// views are maintained outside this service; here they are only audited.
type MaterializedViewStore struct {
	db DB
}

func NewMaterializedViewStore(db DB) *MaterializedViewStore {
	return &MaterializedViewStore{db: db}
}

// TotalsOnDate sums one view's spend columns for a date. The view name is
// validated against the whitelist before being interpolated.
func (s *MaterializedViewStore) TotalsOnDate(ctx context.Context, view string, date time.Time) (SpendTotals, error) {
	if !knownView(view) {
		return SpendTotals{}, fmt.Errorf("%w: %s", ErrUnknownView, view)
	}
	var totals SpendTotals
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(media_spend_nano), 0)  AS media_nano,
		       COALESCE(SUM(data_spend_nano), 0)   AS data_nano,
		       COALESCE(SUM(license_fee_nano), 0)  AS license_fee_nano,
		       COALESCE(SUM(margin_nano), 0)       AS margin_nano
		FROM %s
		WHERE date = $1
	`, view)
	err := s.db.GetContext(ctx, &totals, query, date)
	return totals, err
}

func knownView(view string) bool {
	for _, known := range MaterializedViews {
		if known == view {
			return true
		}
	}
	return false
}
