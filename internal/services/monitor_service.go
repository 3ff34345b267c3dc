package services

import (
	"context"
	"log/slog"
	"time"

	"adbudget/internal/store"

	"github.com/shopspring/decimal"
)

// integritySpendTolerance absorbs the rounding noise currency conversion
// leaves between the ledger and the materialized aggregates. Five cents;
// real discrepancies are dollars.
const integritySpendTolerance = 50_000_000

type PacingDirection string

const (
	PacingLow  PacingDirection = "low"
	PacingHigh PacingDirection = "high"
)

// PacingAlarm flags a budget whose spend for a date deviates from its
// trailing average beyond the configured threshold.
type PacingAlarm struct {
	Date            time.Time
	BudgetID        string
	Direction       PacingDirection
	TodaySpendNano  int64
	TrailingAvgNano int64
}

// IntegrityAlarm flags one (view, field) whose aggregate disagrees with
// the primary ledger.
type IntegrityAlarm struct {
	Date      time.Time
	View      string
	Field     string
	DeltaNano int64
}

type BudgetIDLister interface {
	ListActiveIDsOn(ctx context.Context, date time.Time) ([]string, error)
}

type StatementReader interface {
	DailySpend(ctx context.Context, budgetID string, from, to time.Time) ([]store.DateSpend, error)
	TotalsOnDate(ctx context.Context, date time.Time) (store.SpendTotals, error)
}

type ViewReader interface {
	TotalsOnDate(ctx context.Context, view string, date time.Time) (store.SpendTotals, error)
}

// MonitorService runs the read-only pacing and integrity audits. Both
// return alarm lists and have no side effects; a scheduled job forwards
// the alarms to the alerting channel.
type MonitorService struct {
	budgets    BudgetIDLister
	statements StatementReader
	views      ViewReader
	logger     *slog.Logger
}

func NewMonitorService(budgets BudgetIDLister, statements StatementReader, views ViewReader, logger *slog.Logger) *MonitorService {
	return &MonitorService{budgets: budgets, statements: statements, views: views, logger: logger}
}

// AuditSpendPatterns compares each active budget's spend on the date
// against its trailing dayRange-day average. The first day of a month
// uses firstInMonthThreshold instead, since trailing averages mislead
// across month boundaries. A budget with no trailing data is skipped.
func (s *MonitorService) AuditSpendPatterns(ctx context.Context, date time.Time, firstInMonthThreshold, threshold decimal.Decimal, dayRange int) ([]PacingAlarm, error) {
	budgetIDs, err := s.budgets.ListActiveIDsOn(ctx, date)
	if err != nil {
		return nil, err
	}

	activeThreshold := threshold
	if date.Day() == 1 {
		activeThreshold = firstInMonthThreshold
	}

	var alarms []PacingAlarm
	for _, budgetID := range budgetIDs {
		from := date.AddDate(0, 0, -dayRange)
		days, err := s.statements.DailySpend(ctx, budgetID, from, date)
		if err != nil {
			return nil, err
		}

		var todayNano int64
		var trailingTotal int64
		trailingDays := 0
		for _, day := range days {
			if sameDay(day.Date, date) {
				todayNano = day.TotalNano
				continue
			}
			trailingTotal += day.TotalNano
			trailingDays++
		}
		if trailingDays == 0 || trailingTotal <= 0 {
			continue
		}
		trailingAvg := trailingTotal / int64(trailingDays)

		ratio := decimal.NewFromInt(todayNano).Div(decimal.NewFromInt(trailingAvg))
		switch {
		case ratio.LessThan(activeThreshold):
			alarms = append(alarms, PacingAlarm{
				Date:            date,
				BudgetID:        budgetID,
				Direction:       PacingLow,
				TodaySpendNano:  todayNano,
				TrailingAvgNano: trailingAvg,
			})
		case ratio.GreaterThan(decimal.NewFromInt(1).Div(activeThreshold)):
			alarms = append(alarms, PacingAlarm{
				Date:            date,
				BudgetID:        budgetID,
				Direction:       PacingHigh,
				TodaySpendNano:  todayNano,
				TrailingAvgNano: trailingAvg,
			})
		}
	}
	return alarms, nil
}

// AuditSpendIntegrity recomputes the date's spend components from the
// primary ledger and compares them against every materialized view,
// emitting one alarm per (view, field) whose delta exceeds the tolerance.
func (s *MonitorService) AuditSpendIntegrity(ctx context.Context, date time.Time) ([]IntegrityAlarm, error) {
	expected, err := s.statements.TotalsOnDate(ctx, date)
	if err != nil {
		return nil, err
	}

	var alarms []IntegrityAlarm
	for _, view := range store.MaterializedViews {
		actual, err := s.views.TotalsOnDate(ctx, view, date)
		if err != nil {
			return nil, err
		}
		for _, field := range []struct {
			name     string
			expected int64
			actual   int64
		}{
			{"media_spend_nano", expected.MediaNano, actual.MediaNano},
			{"data_spend_nano", expected.DataNano, actual.DataNano},
			{"license_fee_nano", expected.LicenseFeeNano, actual.LicenseFeeNano},
			{"margin_nano", expected.MarginNano, actual.MarginNano},
		} {
			delta := field.actual - field.expected
			if delta > integritySpendTolerance || delta < -integritySpendTolerance {
				alarms = append(alarms, IntegrityAlarm{
					Date:      date,
					View:      view,
					Field:     field.name,
					DeltaNano: delta,
				})
			}
		}
	}
	return alarms, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
