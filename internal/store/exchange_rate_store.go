package store

import (
	"context"
	"time"

	"adbudget/internal/models"
)

type ExchangeRateStore struct {
	db DB
}

func NewExchangeRateStore(db DB) *ExchangeRateStore {
	return &ExchangeRateStore{db: db}
}

// LatestBefore returns the most recent rate record with rate_date on or
// before the given date for the currency. sql.ErrNoRows propagates when
// no rate exists; the caller treats that as a data-integrity failure.
func (s *ExchangeRateStore) LatestBefore(ctx context.Context, currency string, date time.Time) (models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := s.db.GetContext(ctx, &rate, `
		SELECT id, currency, rate_date, rate, created_at
		FROM exchange_rates
		WHERE currency = $1 AND rate_date <= $2
		ORDER BY rate_date DESC
		LIMIT 1
	`, currency, date)
	return rate, err
}

func (s *ExchangeRateStore) Insert(ctx context.Context, tx Execer, rate models.ExchangeRate) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO exchange_rates (id, currency, rate_date, rate)
		VALUES ($1, $2, $3, $4)
	`, rate.ID, rate.Currency, rate.RateDate, rate.Rate)
	return err
}
