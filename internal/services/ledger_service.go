package services

import (
	"context"
	"time"

	"adbudget/internal/db"
	"adbudget/internal/models"
	"adbudget/internal/store"
	"adbudget/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type CreditWriter interface {
	GetByID(ctx context.Context, creditID string) (models.CreditLineItem, error)
	Insert(ctx context.Context, tx store.Execer, credit models.CreditLineItem) error
	Cancel(ctx context.Context, tx store.Execer, creditID string) error
	AllocatedAmount(ctx context.Context, creditID string) (decimal.Decimal, error)
}

type BudgetWriter interface {
	GetByID(ctx context.Context, budgetID string) (models.BudgetLineItem, error)
	Insert(ctx context.Context, tx store.Execer, budget models.BudgetLineItem) error
	Update(ctx context.Context, tx store.Execer, budget models.BudgetLineItem) error
}

type AttributedSpendReader interface {
	GrossSpendThrough(ctx context.Context, budgetIDs []string, date time.Time) (map[string]int64, error)
}

// LedgerService owns the credit and budget line items. Every write runs
// through the validator first; nothing invalid reaches the tables the
// attribution engine trusts.
type LedgerService struct {
	txRunner db.TxRunner
	credits  CreditWriter
	budgets  BudgetWriter
	spend    AttributedSpendReader
	now      func() time.Time
}

func NewLedgerService(txRunner db.TxRunner, credits CreditWriter, budgets BudgetWriter, spend AttributedSpendReader) *LedgerService {
	return &LedgerService{
		txRunner: txRunner,
		credits:  credits,
		budgets:  budgets,
		spend:    spend,
		now:      time.Now,
	}
}

func (s *LedgerService) CreateCredit(ctx context.Context, credit models.CreditLineItem) (models.CreditLineItem, error) {
	if credit.ID == "" {
		credit.ID = uuid.NewString()
	}
	if err := validator.ValidateCredit(credit); err != nil {
		return models.CreditLineItem{}, err
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.credits.Insert(ctx, tx, credit)
	})
	if err != nil {
		return models.CreditLineItem{}, err
	}
	return credit, nil
}

// CancelCredit soft-cancels; history and statements stay intact.
func (s *LedgerService) CancelCredit(ctx context.Context, creditID string) error {
	if _, err := s.credits.GetByID(ctx, creditID); err != nil {
		return err
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.credits.Cancel(ctx, tx, creditID)
	})
}

func (s *LedgerService) CreateBudget(ctx context.Context, budget models.BudgetLineItem) (models.BudgetLineItem, error) {
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	credit, err := s.credits.GetByID(ctx, budget.CreditID)
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	allocated, err := s.credits.AllocatedAmount(ctx, budget.CreditID)
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	if err := validator.ValidateBudget(budget, credit, allocated); err != nil {
		return models.BudgetLineItem{}, err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.budgets.Insert(ctx, tx, budget)
	})
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	return budget, nil
}

// UpdateBudgetAmount resizes a budget. Growing re-checks the credit's
// allocation headroom; shrinking is refused below what the budget has
// already absorbed in statements.
func (s *LedgerService) UpdateBudgetAmount(ctx context.Context, budgetID string, amount decimal.Decimal) (models.BudgetLineItem, error) {
	budget, err := s.budgets.GetByID(ctx, budgetID)
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	credit, err := s.credits.GetByID(ctx, budget.CreditID)
	if err != nil {
		return models.BudgetLineItem{}, err
	}

	spent, err := s.spend.GrossSpendThrough(ctx, []string{budget.ID}, dayOf(s.now()))
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	if err := validator.ValidateBudgetAmountChange(amount, spent[budget.ID]); err != nil {
		return models.BudgetLineItem{}, err
	}

	allocated, err := s.credits.AllocatedAmount(ctx, budget.CreditID)
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	// Headroom excluding this budget's current allocation.
	otherAllocated := allocated.Sub(budget.Amount)
	budget.Amount = amount
	if err := validator.ValidateBudget(budget, credit, otherAllocated); err != nil {
		return models.BudgetLineItem{}, err
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.budgets.Update(ctx, tx, budget)
	})
	if err != nil {
		return models.BudgetLineItem{}, err
	}
	return budget, nil
}
