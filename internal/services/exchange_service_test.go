package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"adbudget/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRateStore struct {
	latestBeforeFn func(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error)
}

func (s stubRateStore) LatestBefore(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
	return s.latestBeforeFn(ctx, currency, date)
}

func TestGetExchangeRateUSDIsAlwaysOne(t *testing.T) {
	service := NewExchangeService(stubRateStore{latestBeforeFn: func(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
		t.Fatal("USD must not hit the store")
		return models.ExchangeRate{}, nil
	}})

	rate, err := service.GetExchangeRate(context.Background(), time.Now(), "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestGetExchangeRateReturnsStoredRate(t *testing.T) {
	want := decimal.RequireFromString("0.9132")
	service := NewExchangeService(stubRateStore{latestBeforeFn: func(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
		return models.ExchangeRate{Currency: currency, Rate: want}, nil
	}})

	rate, err := service.GetExchangeRate(context.Background(), time.Now(), "EUR")
	require.NoError(t, err)
	assert.True(t, rate.Equal(want))
}

func TestGetExchangeRateMissingIsHardError(t *testing.T) {
	service := NewExchangeService(stubRateStore{latestBeforeFn: func(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
		return models.ExchangeRate{}, sql.ErrNoRows
	}})

	_, err := service.GetExchangeRate(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "SEK")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExchangeRateNotFound)
	assert.Contains(t, err.Error(), "SEK")
	assert.Contains(t, err.Error(), "2026-03-10")
}
