package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"adbudget/internal/models"

	"github.com/shopspring/decimal"
)

func TestExchangeRateStoreLatestBefore(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	store := NewExchangeRateStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "rate_date <= $2") {
				t.Fatalf("expected inclusive date bound, got: %s", query)
			}
			if !strings.Contains(query, "ORDER BY rate_date DESC") {
				t.Fatalf("expected newest-first ordering, got: %s", query)
			}
			if len(args) != 2 || args[0] != "SEK" || args[1] != date {
				t.Fatalf("unexpected args: %#v", args)
			}
			rate := dest.(*models.ExchangeRate)
			rate.Currency = "SEK"
			rate.Rate = decimal.RequireFromString("0.094")
			return nil
		},
	})
	rate, err := store.LatestBefore(ctx, "SEK", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("0.094")) {
		t.Fatalf("unexpected rate: %s", rate.Rate)
	}
}

func TestExchangeRateStoreLatestBeforePropagatesNoRows(t *testing.T) {
	ctx := context.Background()
	store := NewExchangeRateStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			return sql.ErrNoRows
		},
	})
	_, err := store.LatestBefore(ctx, "NOK", time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got: %v", err)
	}
}

func TestExchangeRateStoreInsert(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO exchange_rates") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[1] != "SEK" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewExchangeRateStore(stubDB{})
	rate := models.ExchangeRate{
		ID:       "r1",
		Currency: "SEK",
		RateDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Rate:     decimal.RequireFromString("0.094"),
	}
	if err := store.Insert(ctx, execer, rate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
