package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditStatus string

const (
	CreditPending  CreditStatus = "pending"
	CreditSigned   CreditStatus = "signed"
	CreditCanceled CreditStatus = "canceled"
)

type BudgetState string

const (
	BudgetPending  BudgetState = "pending"
	BudgetActive   BudgetState = "active"
	BudgetDepleted BudgetState = "depleted"
	BudgetExpired  BudgetState = "expired"
)

type SourceState string

const (
	SourceActive   SourceState = "active"
	SourceInactive SourceState = "inactive"
)

type Agency struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Account struct {
	ID              string    `db:"id" json:"id"`
	AgencyID        *string   `db:"agency_id" json:"agency_id,omitempty"`
	Name            string    `db:"name" json:"name"`
	ManagerEmail    string    `db:"manager_email" json:"manager_email"`
	AutoStopEnabled bool      `db:"auto_stop_enabled" json:"auto_stop_enabled"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Campaign struct {
	ID            string    `db:"id" json:"id"`
	AccountID     string    `db:"account_id" json:"account_id"`
	Name          string    `db:"name" json:"name"`
	InLandingMode bool      `db:"in_landing_mode" json:"in_landing_mode"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type AdGroup struct {
	ID          string           `db:"id" json:"id"`
	CampaignID  string           `db:"campaign_id" json:"campaign_id"`
	Name        string           `db:"name" json:"name"`
	DailyBudget decimal.Decimal  `db:"daily_budget" json:"daily_budget"`
	MaxCPC      *decimal.Decimal `db:"max_cpc" json:"max_cpc,omitempty"`
	// RTBAsOne pools every real-time-bidding source of the ad group into
	// one budget corridor during autopilot redistribution.
	RTBAsOne  bool      `db:"rtb_as_one" json:"rtb_as_one"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SourceType describes the capabilities and hard limits of a media source.
type SourceType struct {
	ID                      string          `db:"id" json:"id"`
	Name                    string          `db:"name" json:"name"`
	MinCPC                  decimal.Decimal `db:"min_cpc" json:"min_cpc"`
	MaxCPC                  decimal.Decimal `db:"max_cpc" json:"max_cpc"`
	MinDailyBudget          decimal.Decimal `db:"min_daily_budget" json:"min_daily_budget"`
	MaxDailyBudget          decimal.Decimal `db:"max_daily_budget" json:"max_daily_budget"`
	SupportsBudgetAutopilot bool            `db:"supports_budget_autopilot" json:"supports_budget_autopilot"`
	IsRTB                   bool            `db:"is_rtb" json:"is_rtb"`
}

type AdGroupSource struct {
	ID           string    `db:"id" json:"id"`
	AdGroupID    string    `db:"ad_group_id" json:"ad_group_id"`
	SourceTypeID string    `db:"source_type_id" json:"source_type_id"`
	Name         string    `db:"name" json:"name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AdGroupSourceSetting is one row of the append-only settings history.
// The current settings of an ad-group source are the newest row; there is
// no mutable "current" pointer.
type AdGroupSourceSetting struct {
	ID              string          `db:"id" json:"id"`
	AdGroupSourceID string          `db:"ad_group_source_id" json:"ad_group_source_id"`
	State           SourceState     `db:"state" json:"state"`
	CPC             decimal.Decimal `db:"cpc" json:"cpc"`
	DailyBudget     decimal.Decimal `db:"daily_budget" json:"daily_budget"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

type CreditLineItem struct {
	ID         string          `db:"id" json:"id"`
	AccountID  *string         `db:"account_id" json:"account_id,omitempty"`
	AgencyID   *string         `db:"agency_id" json:"agency_id,omitempty"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	LicenseFee decimal.Decimal `db:"license_fee" json:"license_fee"`
	ServiceFee decimal.Decimal `db:"service_fee" json:"service_fee"`
	Currency   string          `db:"currency" json:"currency"`
	StartDate  time.Time       `db:"start_date" json:"start_date"`
	EndDate    time.Time       `db:"end_date" json:"end_date"`
	Status     CreditStatus    `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type BudgetLineItem struct {
	ID         string          `db:"id" json:"id"`
	CampaignID string          `db:"campaign_id" json:"campaign_id"`
	CreditID   string          `db:"credit_id" json:"credit_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Margin     decimal.Decimal `db:"margin" json:"margin"`
	StartDate  time.Time       `db:"start_date" json:"start_date"`
	EndDate    time.Time       `db:"end_date" json:"end_date"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// OverlapsDate reports whether the date falls within the budget's range,
// inclusive on both ends.
func (b BudgetLineItem) OverlapsDate(date time.Time) bool {
	day := truncateDay(date)
	return !day.Before(truncateDay(b.StartDate)) && !day.After(truncateDay(b.EndDate))
}

// State derives the budget lifecycle state for a date given the spend
// already attributed to the budget.
func (b BudgetLineItem) State(date time.Time, spentNano int64) BudgetState {
	day := truncateDay(date)
	if day.Before(truncateDay(b.StartDate)) {
		return BudgetPending
	}
	if day.After(truncateDay(b.EndDate)) {
		return BudgetExpired
	}
	if spentNano >= b.Amount.Mul(decimal.NewFromInt(1_000_000_000)).IntPart() {
		return BudgetDepleted
	}
	return BudgetActive
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BudgetDailyStatement is the attributed spend of one budget on one date.
// Exactly one row exists per (budget, date); reprocessing replaces it.
type BudgetDailyStatement struct {
	ID                  string    `db:"id" json:"id"`
	BudgetID            string    `db:"budget_id" json:"budget_id"`
	Date                time.Time `db:"date" json:"date"`
	MediaSpendNano      int64     `db:"media_spend_nano" json:"media_spend_nano"`
	DataSpendNano       int64     `db:"data_spend_nano" json:"data_spend_nano"`
	LicenseFeeNano      int64     `db:"license_fee_nano" json:"license_fee_nano"`
	MarginNano          int64     `db:"margin_nano" json:"margin_nano"`
	LocalMediaSpendNano int64     `db:"local_media_spend_nano" json:"local_media_spend_nano"`
	LocalDataSpendNano  int64     `db:"local_data_spend_nano" json:"local_data_spend_nano"`
	LocalLicenseFeeNano int64     `db:"local_license_fee_nano" json:"local_license_fee_nano"`
	LocalMarginNano     int64     `db:"local_margin_nano" json:"local_margin_nano"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// TotalSpendNano is the gross spend the statement depletes its budget by.
func (s BudgetDailyStatement) TotalSpendNano() int64 {
	return s.MediaSpendNano + s.DataSpendNano + s.LicenseFeeNano
}

type ExchangeRate struct {
	ID        string          `db:"id" json:"id"`
	Currency  string          `db:"currency" json:"currency"`
	RateDate  time.Time       `db:"rate_date" json:"rate_date"`
	Rate      decimal.Decimal `db:"rate" json:"rate"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// AutopilotLog is an append-only audit record of one autopilot decision
// for one ad-group source.
type AutopilotLog struct {
	ID                  string           `db:"id" json:"id"`
	AdGroupID           string           `db:"ad_group_id" json:"ad_group_id"`
	AdGroupSourceID     string           `db:"ad_group_source_id" json:"ad_group_source_id"`
	PreviousCPC         *decimal.Decimal `db:"previous_cpc" json:"previous_cpc,omitempty"`
	NewCPC              *decimal.Decimal `db:"new_cpc" json:"new_cpc,omitempty"`
	PreviousDailyBudget *decimal.Decimal `db:"previous_daily_budget" json:"previous_daily_budget,omitempty"`
	NewDailyBudget      *decimal.Decimal `db:"new_daily_budget" json:"new_daily_budget,omitempty"`
	YesterdaysSpend     decimal.Decimal  `db:"yesterdays_spend" json:"yesterdays_spend"`
	YesterdaysClicks    int64            `db:"yesterdays_clicks" json:"yesterdays_clicks"`
	Comments            string           `db:"comments" json:"comments"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
}

// DepletionNotification records a depletion warning or auto-stop event so
// a manager is not re-notified within the look-back window.
type DepletionNotification struct {
	ID                  string    `db:"id" json:"id"`
	CampaignID          string    `db:"campaign_id" json:"campaign_id"`
	ManagerEmail        string    `db:"manager_email" json:"manager_email"`
	AvailableBudgetNano int64     `db:"available_budget_nano" json:"available_budget_nano"`
	YesterdaysSpendNano int64     `db:"yesterdays_spend_nano" json:"yesterdays_spend_nano"`
	Stopped             bool      `db:"stopped" json:"stopped"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
