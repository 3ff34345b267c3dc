package store

import (
	"context"
	"time"

	"adbudget/internal/models"
)

type BudgetStore struct {
	db DB
}

func NewBudgetStore(db DB) *BudgetStore {
	return &BudgetStore{db: db}
}

func (s *BudgetStore) GetByID(ctx context.Context, budgetID string) (models.BudgetLineItem, error) {
	var budget models.BudgetLineItem
	err := s.db.GetContext(ctx, &budget, `
		SELECT id, campaign_id, credit_id, amount, margin, start_date, end_date, created_at
		FROM budgets
		WHERE id = $1
	`, budgetID)
	return budget, err
}

// ListActiveOn returns the campaign's budgets whose date range covers the
// given date, oldest first. Creation order drives the waterfall.
func (s *BudgetStore) ListActiveOn(ctx context.Context, campaignID string, date time.Time) ([]models.BudgetLineItem, error) {
	var budgets []models.BudgetLineItem
	err := s.db.SelectContext(ctx, &budgets, `
		SELECT id, campaign_id, credit_id, amount, margin, start_date, end_date, created_at
		FROM budgets
		WHERE campaign_id = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at ASC
	`, campaignID, date)
	return budgets, err
}

func (s *BudgetStore) ListByCampaign(ctx context.Context, campaignID string) ([]models.BudgetLineItem, error) {
	var budgets []models.BudgetLineItem
	err := s.db.SelectContext(ctx, &budgets, `
		SELECT id, campaign_id, credit_id, amount, margin, start_date, end_date, created_at
		FROM budgets
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`, campaignID)
	return budgets, err
}

// ListActiveIDsOn returns the ids of every budget active on the date,
// across all campaigns; the pacing audit walks this set.
func (s *BudgetStore) ListActiveIDsOn(ctx context.Context, date time.Time) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM budgets
		WHERE start_date <= $1 AND end_date >= $1
		ORDER BY created_at ASC
	`, date)
	return ids, err
}

func (s *BudgetStore) Insert(ctx context.Context, tx Execer, budget models.BudgetLineItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (id, campaign_id, credit_id, amount, margin, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, budget.ID, budget.CampaignID, budget.CreditID, budget.Amount, budget.Margin,
		budget.StartDate, budget.EndDate)
	return err
}

func (s *BudgetStore) Update(ctx context.Context, tx Execer, budget models.BudgetLineItem) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE budgets
		SET amount = $2, margin = $3, start_date = $4, end_date = $5
		WHERE id = $1
	`, budget.ID, budget.Amount, budget.Margin, budget.StartDate, budget.EndDate)
	return err
}
