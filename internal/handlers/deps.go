package handlers

import (
	"context"
	"time"

	"adbudget/internal/models"
	"adbudget/internal/services"

	"github.com/shopspring/decimal"
)

type CampaignStore interface {
	GetByID(ctx context.Context, campaignID string) (models.Campaign, error)
}

type AttributionRunner interface {
	ProcessCampaign(ctx context.Context, campaign models.Campaign, from, to time.Time) error
}

type Auditor interface {
	AuditSpendPatterns(ctx context.Context, date time.Time, firstInMonthThreshold, threshold decimal.Decimal, dayRange int) ([]services.PacingAlarm, error)
	AuditSpendIntegrity(ctx context.Context, date time.Time) ([]services.IntegrityAlarm, error)
}

type JobRunner interface {
	Run(ctx context.Context) error
}
