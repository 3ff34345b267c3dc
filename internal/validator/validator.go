package validator

import (
	"errors"

	"adbudget/internal/models"
	"adbudget/internal/nano"

	"github.com/shopspring/decimal"
)

var (
	ErrStartAfterEnd        = errors.New("start date after end date")
	ErrOutsideCreditRange   = errors.New("budget dates outside credit date range")
	ErrCreditNotSigned      = errors.New("credit is not signed")
	ErrCreditOverallocated  = errors.New("allocated budgets exceed credit amount")
	ErrAmountBelowSpend     = errors.New("budget amount below already attributed spend")
	ErrInvalidFeeFraction   = errors.New("fee fraction must be in [0, 1)")
	ErrInvalidMarginRange   = errors.New("margin must be in [0, 1)")
	ErrNonPositiveAmount    = errors.New("amount must be positive")
)

// ValidateCredit checks a credit line item before persistence.
func ValidateCredit(credit models.CreditLineItem) error {
	if credit.StartDate.After(credit.EndDate) {
		return ErrStartAfterEnd
	}
	if !credit.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !validFraction(credit.LicenseFee) || !validFraction(credit.ServiceFee) {
		return ErrInvalidFeeFraction
	}
	return nil
}

// ValidateBudget checks a budget line item against its parent credit:
// dates ordered and inside the credit's range, margin sane, and the
// credit's total allocation (with this budget included) within the credit
// ceiling. alreadyAllocated is the sum of the credit's other budgets.
func ValidateBudget(budget models.BudgetLineItem, credit models.CreditLineItem, alreadyAllocated decimal.Decimal) error {
	if budget.StartDate.After(budget.EndDate) {
		return ErrStartAfterEnd
	}
	if budget.StartDate.Before(credit.StartDate) || budget.EndDate.After(credit.EndDate) {
		return ErrOutsideCreditRange
	}
	if credit.Status != models.CreditSigned {
		return ErrCreditNotSigned
	}
	if !budget.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !validFraction(budget.Margin) {
		return ErrInvalidMarginRange
	}
	if alreadyAllocated.Add(budget.Amount).GreaterThan(credit.Amount) {
		return ErrCreditOverallocated
	}
	return nil
}

// ValidateBudgetAmountChange rejects amount updates that would shrink a
// budget below the spend already attributed to it.
func ValidateBudgetAmountChange(newAmount decimal.Decimal, attributedSpendNano int64) error {
	if nano.FromAmount(newAmount) < attributedSpendNano {
		return ErrAmountBelowSpend
	}
	return nil
}

func validFraction(f decimal.Decimal) bool {
	return !f.IsNegative() && f.LessThan(decimal.NewFromInt(1))
}
