package store

import (
	"context"

	"adbudget/internal/models"

	"github.com/shopspring/decimal"
)

type CreditStore struct {
	db DB
}

func NewCreditStore(db DB) *CreditStore {
	return &CreditStore{db: db}
}

func (s *CreditStore) GetByID(ctx context.Context, creditID string) (models.CreditLineItem, error) {
	var credit models.CreditLineItem
	err := s.db.GetContext(ctx, &credit, `
		SELECT id, account_id, agency_id, amount, license_fee, service_fee,
		       currency, start_date, end_date, status, created_at
		FROM credits
		WHERE id = $1
	`, creditID)
	return credit, err
}

func (s *CreditStore) Insert(ctx context.Context, tx Execer, credit models.CreditLineItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credits (id, account_id, agency_id, amount, license_fee,
		                     service_fee, currency, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, credit.ID, credit.AccountID, credit.AgencyID, credit.Amount, credit.LicenseFee,
		credit.ServiceFee, credit.Currency, credit.StartDate, credit.EndDate, credit.Status)
	return err
}

func (s *CreditStore) Update(ctx context.Context, tx Execer, credit models.CreditLineItem) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credits
		SET amount = $2, license_fee = $3, service_fee = $4,
		    start_date = $5, end_date = $6, status = $7
		WHERE id = $1
	`, credit.ID, credit.Amount, credit.LicenseFee, credit.ServiceFee,
		credit.StartDate, credit.EndDate, credit.Status)
	return err
}

// Cancel soft-cancels a credit; rows are never deleted.
func (s *CreditStore) Cancel(ctx context.Context, tx Execer, creditID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE credits SET status = $2 WHERE id = $1
	`, creditID, models.CreditCanceled)
	return err
}

// AllocatedAmount sums the budget amounts carved out of a credit. Used to
// enforce that allocation never exceeds the credit ceiling.
func (s *CreditStore) AllocatedAmount(ctx context.Context, creditID string) (decimal.Decimal, error) {
	var allocated decimal.Decimal
	err := s.db.GetContext(ctx, &allocated, `
		SELECT COALESCE(SUM(amount), 0)
		FROM budgets
		WHERE credit_id = $1
	`, creditID)
	return allocated, err
}
