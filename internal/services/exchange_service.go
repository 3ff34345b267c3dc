package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"adbudget/internal/models"

	"github.com/shopspring/decimal"
)

var ErrExchangeRateNotFound = errors.New("exchange rate not found")

type ExchangeRateStore interface {
	LatestBefore(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error)
}

// ExchangeService resolves a currency to its USD rate as of a given date.
type ExchangeService struct {
	rates ExchangeRateStore
}

func NewExchangeService(rates ExchangeRateStore) *ExchangeService {
	return &ExchangeService{rates: rates}
}

// GetExchangeRate returns the rate in effect on the date. USD
// short-circuits to exactly 1 without a lookup. A missing historical rate
// is a hard data-integrity error, never defaulted or interpolated.
func (s *ExchangeService) GetExchangeRate(ctx context.Context, date time.Time, currency string) (decimal.Decimal, error) {
	if currency == "USD" {
		return decimal.NewFromInt(1), nil
	}
	rate, err := s.rates.LatestBefore(ctx, currency, date)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s as of %s", ErrExchangeRateNotFound, currency, date.Format("2006-01-02"))
	}
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Rate, nil
}
