package nano

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// One nano unit is 10^-9 of a currency unit. All spend accounting runs on
// int64 nanos so aggregation never touches floating point; decimals appear
// only at the boundaries (fractions, exchange rates, user-entered amounts).
const PerCurrencyUnit = 1_000_000_000

var nanoFactor = decimal.NewFromInt(PerCurrencyUnit)

// FromAmount converts a currency amount to nano units, bank-rounded.
func FromAmount(amount decimal.Decimal) int64 {
	return amount.Mul(nanoFactor).RoundBank(0).IntPart()
}

// FromMicro converts micro units (the ETL spend feed precision) to nanos.
func FromMicro(micro int64) int64 {
	return micro * 1000
}

// ToAmount converts nano units back to a currency amount.
func ToAmount(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Div(nanoFactor)
}

// ApplyRate multiplies a nano amount by an exchange rate, bank-rounded to
// nano precision.
func ApplyRate(n int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(n).Mul(rate).RoundBank(0).IntPart()
}

// MarkupFee computes a fee charged as a markup on a net nano amount:
// net * (1/(1-fraction) - 1). A 0.2 fraction on 800 yields 200, so the
// fee is the stated fraction of the gross, not of the net.
func MarkupFee(n int64, fraction decimal.Decimal) int64 {
	one := decimal.NewFromInt(1)
	factor := one.Div(one.Sub(fraction)).Sub(one)
	return decimal.NewFromInt(n).Mul(factor).RoundBank(0).IntPart()
}

// ApplyFraction returns n * fraction, bank-rounded.
func ApplyFraction(n int64, fraction decimal.Decimal) int64 {
	return decimal.NewFromInt(n).Mul(fraction).RoundBank(0).IntPart()
}

// Format renders a nano amount with two decimal places for logs and
// notifications.
func Format(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}
	whole := n / PerCurrencyUnit
	cents := (n % PerCurrencyUnit) / 10_000_000
	formatted := fmt.Sprintf("%d.%02d", whole, cents)
	if negative {
		return "-" + formatted
	}
	return formatted
}
