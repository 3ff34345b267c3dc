package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"adbudget/internal/models"

	"github.com/shopspring/decimal"
)

func TestSettingsStoreLatestFound(t *testing.T) {
	ctx := context.Background()
	store := NewSettingsStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY created_at DESC") {
				t.Fatalf("unexpected query: %s", query)
			}
			if strings.Contains(query, "created_at < $2") || strings.Contains(query, "state = 'active'") {
				t.Fatalf("Latest must not filter by cutoff or state: %s", query)
			}
			if len(args) != 1 || args[0] != "ags1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			setting := dest.(*models.AdGroupSourceSetting)
			setting.ID = "v3"
			setting.State = models.SourceActive
			setting.CPC = decimal.RequireFromString("0.45")
			return nil
		},
	})
	setting, ok, err := store.Latest(ctx, "ags1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a settings row")
	}
	if setting.ID != "v3" || !setting.CPC.Equal(decimal.RequireFromString("0.45")) {
		t.Fatalf("unexpected setting: %+v", setting)
	}
}

func TestSettingsStoreLatestNotConfigured(t *testing.T) {
	ctx := context.Background()
	store := NewSettingsStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			return sql.ErrNoRows
		},
	})
	_, ok, err := store.Latest(ctx, "ags1")
	if err != nil {
		t.Fatalf("expected no error on missing row, got: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when the source was never configured")
	}
}

func TestSettingsStoreLatestActiveBefore(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	store := NewSettingsStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "created_at < $2") {
				t.Fatalf("expected cutoff filter, got: %s", query)
			}
			if !strings.Contains(query, "state = 'active'") {
				t.Fatalf("expected active-state filter, got: %s", query)
			}
			if len(args) != 2 || args[0] != "ags1" || args[1] != cutoff {
				t.Fatalf("unexpected args: %#v", args)
			}
			return nil
		},
	})
	if _, _, err := store.LatestActiveBefore(ctx, "ags1", cutoff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSettingsStoreAppend(t *testing.T) {
	ctx := context.Background()
	setting := models.AdGroupSourceSetting{
		ID:              "v4",
		AdGroupSourceID: "ags1",
		State:           models.SourceActive,
		CPC:             decimal.RequireFromString("0.50"),
		DailyBudget:     decimal.RequireFromString("40"),
	}
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO ad_group_source_settings") {
				t.Fatalf("unexpected query: %s", query)
			}
			if strings.Contains(strings.ToUpper(query), "UPDATE") {
				t.Fatalf("history must be append-only: %s", query)
			}
			if len(args) != 5 || args[0] != "v4" || args[1] != "ags1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewSettingsStore(stubDB{})
	if err := store.Append(ctx, execer, setting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
