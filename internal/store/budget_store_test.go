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

func TestBudgetStoreListActiveOn(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	store := NewBudgetStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "start_date <= $2 AND end_date >= $2") {
				t.Fatalf("expected closed date-range filter, got: %s", query)
			}
			if !strings.Contains(query, "ORDER BY created_at ASC") {
				t.Fatalf("expected oldest-first ordering, got: %s", query)
			}
			if len(args) != 2 || args[0] != "c1" || args[1] != date {
				t.Fatalf("unexpected args: %#v", args)
			}
			budgets := dest.(*[]models.BudgetLineItem)
			*budgets = append(*budgets, models.BudgetLineItem{ID: "b1"}, models.BudgetLineItem{ID: "b2"})
			return nil
		},
	})
	budgets, err := store.ListActiveOn(ctx, "c1", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(budgets) != 2 || budgets[0].ID != "b1" {
		t.Fatalf("unexpected budgets: %+v", budgets)
	}
}

func TestBudgetStoreInsert(t *testing.T) {
	ctx := context.Background()
	budget := models.BudgetLineItem{
		ID:         "b1",
		CampaignID: "c1",
		CreditID:   "cr1",
		Amount:     decimal.RequireFromString("1000"),
		Margin:     decimal.RequireFromString("0.1"),
		StartDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO budgets") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 || args[0] != "b1" || args[2] != "cr1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewBudgetStore(stubDB{})
	if err := store.Insert(ctx, execer, budget); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBudgetStoreUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE budgets") {
				t.Fatalf("unexpected query: %s", query)
			}
			if strings.Contains(query, "campaign_id =") || strings.Contains(query, "credit_id =") {
				t.Fatalf("update must not reassign the budget: %s", query)
			}
			if len(args) != 5 || args[0] != "b1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewBudgetStore(stubDB{})
	budget := models.BudgetLineItem{ID: "b1", Amount: decimal.RequireFromString("1200")}
	if err := store.Update(ctx, execer, budget); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
