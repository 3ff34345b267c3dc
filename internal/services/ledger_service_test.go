package services

import (
	"context"
	"testing"
	"time"

	"adbudget/internal/models"
	"adbudget/internal/store"
	"adbudget/internal/validator"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCreditWriter struct {
	credit    models.CreditLineItem
	allocated decimal.Decimal
	inserted  []models.CreditLineItem
	cancelled []string
}

func (s *stubCreditWriter) GetByID(ctx context.Context, creditID string) (models.CreditLineItem, error) {
	return s.credit, nil
}

func (s *stubCreditWriter) Insert(ctx context.Context, tx store.Execer, credit models.CreditLineItem) error {
	s.inserted = append(s.inserted, credit)
	return nil
}

func (s *stubCreditWriter) Cancel(ctx context.Context, tx store.Execer, creditID string) error {
	s.cancelled = append(s.cancelled, creditID)
	return nil
}

func (s *stubCreditWriter) AllocatedAmount(ctx context.Context, creditID string) (decimal.Decimal, error) {
	return s.allocated, nil
}

type stubBudgetWriter struct {
	budget   models.BudgetLineItem
	inserted []models.BudgetLineItem
	updated  []models.BudgetLineItem
}

func (s *stubBudgetWriter) GetByID(ctx context.Context, budgetID string) (models.BudgetLineItem, error) {
	return s.budget, nil
}

func (s *stubBudgetWriter) Insert(ctx context.Context, tx store.Execer, budget models.BudgetLineItem) error {
	s.inserted = append(s.inserted, budget)
	return nil
}

func (s *stubBudgetWriter) Update(ctx context.Context, tx store.Execer, budget models.BudgetLineItem) error {
	s.updated = append(s.updated, budget)
	return nil
}

type stubSpendReader struct {
	spent map[string]int64
}

func (s stubSpendReader) GrossSpendThrough(ctx context.Context, budgetIDs []string, date time.Time) (map[string]int64, error) {
	if s.spent == nil {
		return map[string]int64{}, nil
	}
	return s.spent, nil
}

func signedCredit(amount int64) models.CreditLineItem {
	return models.CreditLineItem{
		ID:         "c-1",
		Amount:     decimal.NewFromInt(amount),
		LicenseFee: decimal.RequireFromString("0.15"),
		Currency:   "USD",
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:     models.CreditSigned,
	}
}

func ledgerBudget(amount int64) models.BudgetLineItem {
	return models.BudgetLineItem{
		ID:         "b-1",
		CreditID:   "c-1",
		CampaignID: "camp-1",
		Amount:     decimal.NewFromInt(amount),
		Margin:     decimal.RequireFromString("0.1"),
		StartDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateCreditValidatesBeforeInsert(t *testing.T) {
	credits := &stubCreditWriter{}
	service := NewLedgerService(fakeTxRunner{}, credits, &stubBudgetWriter{}, stubSpendReader{})

	bad := signedCredit(1000)
	bad.LicenseFee = decimal.NewFromInt(1)
	_, err := service.CreateCredit(context.Background(), bad)
	assert.ErrorIs(t, err, validator.ErrInvalidFeeFraction)
	assert.Empty(t, credits.inserted)

	created, err := service.CreateCredit(context.Background(), signedCredit(1000))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	require.Len(t, credits.inserted, 1)
}

func TestCreateBudgetRejectsOverallocation(t *testing.T) {
	credits := &stubCreditWriter{
		credit:    signedCredit(1000),
		allocated: decimal.NewFromInt(800),
	}
	budgets := &stubBudgetWriter{}
	service := NewLedgerService(fakeTxRunner{}, credits, budgets, stubSpendReader{})

	_, err := service.CreateBudget(context.Background(), ledgerBudget(300))
	assert.ErrorIs(t, err, validator.ErrCreditOverallocated)
	assert.Empty(t, budgets.inserted)

	created, err := service.CreateBudget(context.Background(), ledgerBudget(200))
	require.NoError(t, err)
	assert.Equal(t, "b-1", created.ID)
	require.Len(t, budgets.inserted, 1)
}

func TestCreateBudgetRequiresSignedCredit(t *testing.T) {
	unsigned := signedCredit(1000)
	unsigned.Status = models.CreditPending
	credits := &stubCreditWriter{credit: unsigned}
	service := NewLedgerService(fakeTxRunner{}, credits, &stubBudgetWriter{}, stubSpendReader{})

	_, err := service.CreateBudget(context.Background(), ledgerBudget(100))
	assert.ErrorIs(t, err, validator.ErrCreditNotSigned)
}

func TestUpdateBudgetAmountRefusesShrinkBelowSpend(t *testing.T) {
	credits := &stubCreditWriter{
		credit:    signedCredit(1000),
		allocated: decimal.NewFromInt(500),
	}
	budgets := &stubBudgetWriter{budget: ledgerBudget(500)}
	// $320 already attributed to b-1.
	service := NewLedgerService(fakeTxRunner{}, credits, budgets, stubSpendReader{
		spent: map[string]int64{"b-1": 320_000_000_000},
	})

	_, err := service.UpdateBudgetAmount(context.Background(), "b-1", decimal.NewFromInt(300))
	assert.ErrorIs(t, err, validator.ErrAmountBelowSpend)
	assert.Empty(t, budgets.updated)

	updated, err := service.UpdateBudgetAmount(context.Background(), "b-1", decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(400)))
	require.Len(t, budgets.updated, 1)
}

func TestUpdateBudgetAmountRespectsCreditHeadroom(t *testing.T) {
	credits := &stubCreditWriter{
		credit:    signedCredit(1000),
		allocated: decimal.NewFromInt(900), // 400 others + this budget's 500
	}
	budgets := &stubBudgetWriter{budget: ledgerBudget(500)}
	service := NewLedgerService(fakeTxRunner{}, credits, budgets, stubSpendReader{})

	// Growing to 700 would put the credit at 1100 total.
	_, err := service.UpdateBudgetAmount(context.Background(), "b-1", decimal.NewFromInt(700))
	assert.ErrorIs(t, err, validator.ErrCreditOverallocated)

	updated, err := service.UpdateBudgetAmount(context.Background(), "b-1", decimal.NewFromInt(600))
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(600)))
}

func TestCancelCreditIsSoft(t *testing.T) {
	credits := &stubCreditWriter{credit: signedCredit(1000)}
	service := NewLedgerService(fakeTxRunner{}, credits, &stubBudgetWriter{}, stubSpendReader{})

	require.NoError(t, service.CancelCredit(context.Background(), "c-1"))
	assert.Equal(t, []string{"c-1"}, credits.cancelled)
}
