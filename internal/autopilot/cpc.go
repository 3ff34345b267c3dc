package autopilot

import (
	"github.com/shopspring/decimal"
)

// Comment codes accumulate on every CPC calculation. Constraint handling
// never errors; it clamps the value and leaves a comment for diagnostics.
type Comment string

const (
	CommentBudgetNotSet      Comment = "BUDGET_NOT_SET"
	CommentCPCNotSet         Comment = "CPC_NOT_SET"
	CommentCurrentCPCTooLow  Comment = "CURRENT_CPC_TOO_LOW"
	CommentCurrentCPCTooHigh Comment = "CURRENT_CPC_TOO_HIGH"
	CommentUnderSourceMinCPC Comment = "UNDER_SOURCE_MIN_CPC"
	CommentOverSourceMaxCPC  Comment = "OVER_SOURCE_MAX_CPC"
	CommentOverAdGroupMaxCPC Comment = "OVER_AD_GROUP_MAX_CPC"
)

var (
	// Hard CPC floor and ceiling the autopilot will ever set.
	MinCPC = decimal.RequireFromString("0.05")
	MaxCPC = decimal.RequireFromString("3")

	// Magnitude bounds on a single-step CPC change. Even when a band says
	// +50%, the absolute delta stays within these; even a tiny computed
	// change is bumped to the minimum step.
	MinReducingCPCChange   = decimal.RequireFromString("0.01")
	MaxReducingCPCChange   = decimal.RequireFromString("0.30")
	MinIncreasingCPCChange = decimal.RequireFromString("0.01")
	MaxIncreasingCPCChange = decimal.RequireFromString("0.25")
)

// CPCChangeBand maps an underspend-ratio range onto a proportional CPC
// adjustment. Ratio = (yesterdays_spend - daily_budget) / daily_budget,
// negative when underspending.
type CPCChangeBand struct {
	UnderspendUpperLimit decimal.Decimal
	UnderspendLowerLimit decimal.Decimal
	BidCPCProcIncrease   decimal.Decimal
}

// CPCChangeTable is checked in declared order; the first band containing
// the ratio wins.
var CPCChangeTable = []CPCChangeBand{
	{d("-0.8"), d("-1.0"), d("0.15")},
	{d("-0.6"), d("-0.8"), d("0.10")},
	{d("-0.4"), d("-0.6"), d("0.05")},
	{d("-0.2"), d("-0.4"), d("0.02")},
	{d("-0.1"), d("-0.2"), d("0")},
	{d("1000"), d("-0.1"), d("-0.05")},
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// CalculateNewCPC computes the next bid CPC from yesterday's spend
// against the daily budget. All special cases short-circuit or annotate
// with comment codes; the caller applies source and ad-group constraints
// afterwards via ThresholdSourceConstraints and
// ThresholdAdGroupConstraints.
func CalculateNewCPC(cpc, dailyBudget, yesterdaysSpend decimal.Decimal) (decimal.Decimal, []Comment) {
	var comments []Comment

	if dailyBudget.LessThanOrEqual(decimal.Zero) {
		return cpc, []Comment{CommentBudgetNotSet}
	}
	if cpc.GreaterThan(MaxCPC) {
		return MaxCPC, []Comment{CommentCurrentCPCTooHigh}
	}
	if cpc.LessThanOrEqual(decimal.Zero) {
		comments = append(comments, CommentCPCNotSet)
		cpc = MinCPC
	} else if cpc.LessThan(MinCPC) {
		comments = append(comments, CommentCurrentCPCTooLow)
		cpc = MinCPC
	}

	ratio := yesterdaysSpend.Sub(dailyBudget).Div(dailyBudget)
	proc := decimal.Zero
	for _, band := range CPCChangeTable {
		if ratio.GreaterThanOrEqual(band.UnderspendLowerLimit) && ratio.LessThanOrEqual(band.UnderspendUpperLimit) {
			proc = band.BidCPCProcIncrease
			break
		}
	}
	if proc.IsZero() {
		return cpc, comments
	}

	newCPC := cpc.Mul(decimal.NewFromInt(1).Add(proc))
	if newCPC.LessThan(cpc) {
		newCPC = thresholdReducingCPC(cpc, newCPC)
	} else if newCPC.GreaterThan(cpc) {
		newCPC = thresholdIncreasingCPC(cpc, newCPC)
	}
	return newCPC.Round(2), comments
}

// thresholdReducingCPC clamps the magnitude of a decrease into
// [MinReducingCPCChange, MaxReducingCPCChange].
func thresholdReducingCPC(cpc, newCPC decimal.Decimal) decimal.Decimal {
	change := cpc.Sub(newCPC)
	if change.LessThan(MinReducingCPCChange) {
		return cpc.Sub(MinReducingCPCChange)
	}
	if change.GreaterThan(MaxReducingCPCChange) {
		return cpc.Sub(MaxReducingCPCChange)
	}
	return newCPC
}

// thresholdIncreasingCPC clamps the magnitude of an increase into
// [MinIncreasingCPCChange, MaxIncreasingCPCChange].
func thresholdIncreasingCPC(cpc, newCPC decimal.Decimal) decimal.Decimal {
	change := newCPC.Sub(cpc)
	if change.LessThan(MinIncreasingCPCChange) {
		return cpc.Add(MinIncreasingCPCChange)
	}
	if change.GreaterThan(MaxIncreasingCPCChange) {
		return cpc.Add(MaxIncreasingCPCChange)
	}
	return newCPC
}

// ThresholdSourceConstraints clamps a CPC into the source type's hard
// bounds, annotating when it had to.
func ThresholdSourceConstraints(cpc, sourceMinCPC, sourceMaxCPC decimal.Decimal) (decimal.Decimal, []Comment) {
	var comments []Comment
	if sourceMinCPC.IsPositive() && cpc.LessThan(sourceMinCPC) {
		cpc = sourceMinCPC
		comments = append(comments, CommentUnderSourceMinCPC)
	}
	if sourceMaxCPC.IsPositive() && cpc.GreaterThan(sourceMaxCPC) {
		cpc = sourceMaxCPC
		comments = append(comments, CommentOverSourceMaxCPC)
	}
	return cpc, comments
}

// ThresholdAdGroupConstraints caps a CPC at the ad group's configured
// maximum, when one is set.
func ThresholdAdGroupConstraints(cpc, adGroupMaxCPC decimal.Decimal) (decimal.Decimal, []Comment) {
	if adGroupMaxCPC.IsPositive() && cpc.GreaterThan(adGroupMaxCPC) {
		return adGroupMaxCPC, []Comment{CommentOverAdGroupMaxCPC}
	}
	return cpc, nil
}

// JoinComments renders comment codes for the audit log.
func JoinComments(comments []Comment) string {
	if len(comments) == 0 {
		return ""
	}
	joined := string(comments[0])
	for _, comment := range comments[1:] {
		joined += ", " + string(comment)
	}
	return joined
}
