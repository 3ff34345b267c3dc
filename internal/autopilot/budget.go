package autopilot

import (
	"github.com/shopspring/decimal"
)

var (
	// MinSourceBudget is the lowest daily budget the autopilot assigns to
	// any source.
	MinSourceBudget = decimal.NewFromInt(3)

	// MaxBudgetGain and MaxBudgetLoss bound how far a source's budget can
	// move from its baseline in a single run.
	MaxBudgetGain = decimal.RequireFromString("1.2")
	MaxBudgetLoss = decimal.RequireFromString("0.7")

	// MinSpendPerc is the share of the ad group's total spend below which
	// a source is excluded from automatic rebalancing.
	MinSpendPerc = decimal.RequireFromString("0.03")
)

// AllRTBSourceID is the pseudo-source aggregating every real-time-bidding
// source into a single constraint entry when they are configured to move
// together.
const AllRTBSourceID = "all_rtb_sources"

// BudgetSource is everything the budget engine needs to know about one
// media source on an ad group.
type BudgetSource struct {
	ID              string
	OldBudget       decimal.Decimal
	YesterdaysSpend decimal.Decimal
	MinDailyBudget  decimal.Decimal
	MaxDailyBudget  decimal.Decimal
	IsRTB           bool
}

// Constraint is the per-source budget corridor a redistribution must
// respect.
type Constraint struct {
	MinBudget decimal.Decimal
	MaxBudget decimal.Decimal
}

// MinimumConstraints derives the floor-based corridor: min is the larger
// of the global floor and the source type's floor, max is a fixed gain on
// that min. With rtbAsOne, all RTB sources collapse into the single
// AllRTBSourceID entry.
func MinimumConstraints(sources []BudgetSource, rtbAsOne bool) map[string]Constraint {
	constraints := make(map[string]Constraint, len(sources))
	for _, source := range sources {
		id := source.ID
		if rtbAsOne && source.IsRTB {
			id = AllRTBSourceID
		}
		if _, ok := constraints[id]; ok {
			continue
		}
		min := MinSourceBudget
		if source.MinDailyBudget.GreaterThan(min) {
			min = source.MinDailyBudget
		}
		constraints[id] = Constraint{
			MinBudget: min,
			MaxBudget: min.Mul(MaxBudgetGain).Ceil(),
		}
	}
	return constraints
}

// OptimisticConstraints trusts the existing allocation as a baseline:
// the corridor is a bounded gain/loss around the old budget, capped by
// the source type's absolute maximum. Used when there is enough history.
// With rtbAsOne, all RTB sources share one corridor under AllRTBSourceID,
// built from their combined old budget and combined maximum.
func OptimisticConstraints(sources []BudgetSource, rtbAsOne bool) map[string]Constraint {
	constraints := make(map[string]Constraint, len(sources))
	for _, source := range sources {
		id := source.ID
		oldBudget := source.OldBudget
		maxDaily := source.MaxDailyBudget
		if rtbAsOne && source.IsRTB {
			id = AllRTBSourceID
			oldBudget, maxDaily = rtbTotals(sources)
		}
		if _, ok := constraints[id]; ok {
			continue
		}
		max := oldBudget.Mul(MaxBudgetGain).Ceil()
		if maxDaily.IsPositive() && max.GreaterThan(maxDaily) {
			max = maxDaily
		}
		min := oldBudget.Mul(MaxBudgetLoss).Floor()
		if min.LessThan(MinSourceBudget) {
			min = MinSourceBudget
		}
		constraints[id] = Constraint{MinBudget: min, MaxBudget: max}
	}
	return constraints
}

// rtbTotals sums the RTB sources' old budgets and maximums. The combined
// maximum only binds when every RTB source carries one; a single
// uncapped source leaves the pseudo-source uncapped.
func rtbTotals(sources []BudgetSource) (oldBudget, maxDaily decimal.Decimal) {
	allCapped := true
	for _, source := range sources {
		if !source.IsRTB {
			continue
		}
		oldBudget = oldBudget.Add(source.OldBudget)
		if source.MaxDailyBudget.IsPositive() {
			maxDaily = maxDaily.Add(source.MaxDailyBudget)
		} else {
			allCapped = false
		}
	}
	if !allCapped {
		maxDaily = decimal.Zero
	}
	return oldBudget, maxDaily
}

// ActiveSourcesWithSpend returns the ids of sources whose share of the ad
// group's total spend reaches MinSpendPerc. Sources below it are left at
// their minimum instead of being rebalanced on noise.
func ActiveSourcesWithSpend(sources []BudgetSource) map[string]bool {
	total := decimal.Zero
	for _, source := range sources {
		total = total.Add(source.YesterdaysSpend)
	}
	active := make(map[string]bool, len(sources))
	if total.LessThanOrEqual(decimal.Zero) {
		return active
	}
	for _, source := range sources {
		if source.YesterdaysSpend.Div(total).GreaterThanOrEqual(MinSpendPerc) {
			active[source.ID] = true
		}
	}
	return active
}

// Redistribute assigns every source its minimum and then spreads the
// remaining total across the active-with-spend sources, one currency unit
// at a time, respecting per-source maximums. Source order fixes the
// round-robin order. RTB sources whose constraint lives under
// AllRTBSourceID are pooled: the pseudo-source takes part in the
// rebalance as a single unit and its final budget is split evenly back
// across the pooled sources.
func Redistribute(totalDailyBudget decimal.Decimal, sources []BudgetSource, constraints map[string]Constraint, active map[string]bool) map[string]decimal.Decimal {
	budgets := make(map[string]int64, len(sources))
	caps := make(map[string]int64, len(sources))
	var order []string
	var pooled []string
	participates := make(map[string]bool, len(sources))
	_, rtbPooled := constraints[AllRTBSourceID]
	assigned := int64(0)
	for _, source := range sources {
		id := source.ID
		if rtbPooled && source.IsRTB {
			if _, own := constraints[source.ID]; !own {
				id = AllRTBSourceID
				pooled = append(pooled, source.ID)
			}
		}
		constraint, ok := constraints[id]
		if !ok {
			continue
		}
		if active[source.ID] {
			participates[id] = true
		}
		if _, seen := budgets[id]; seen {
			continue
		}
		order = append(order, id)
		budgets[id] = constraint.MinBudget.IntPart()
		caps[id] = constraint.MaxBudget.IntPart()
		assigned += budgets[id]
	}

	remaining := totalDailyBudget.IntPart() - assigned
	if remaining > 0 {
		var participating []string
		for _, id := range order {
			if participates[id] {
				participating = append(participating, id)
			}
		}
		distributed := UniformlyRedistributeRemainingBudget(participating, remaining, copyBudgets(budgets), caps)
		for id, budget := range distributed {
			budgets[id] = budget
		}
	}

	if len(pooled) > 0 {
		splitPooledBudget(budgets, pooled)
	}

	result := make(map[string]decimal.Decimal, len(budgets))
	for id, budget := range budgets {
		result[id] = decimal.NewFromInt(budget)
	}
	return result
}

// splitPooledBudget divides the pseudo-source total across the pooled RTB
// sources, evenly, with sources earlier in order taking the remainder
// units.
func splitPooledBudget(budgets map[string]int64, pooled []string) {
	total := budgets[AllRTBSourceID]
	delete(budgets, AllRTBSourceID)
	share := total / int64(len(pooled))
	extra := total % int64(len(pooled))
	for i, id := range pooled {
		budgets[id] = share
		if int64(i) < extra {
			budgets[id]++
		}
	}
}

// UniformlyRedistributeRemainingBudget hands out whole currency units one
// at a time: each unit goes to the participating source with the lowest
// current budget (first in order on ties), so lower-budget sources are
// equalized upward to parity before anyone receives beyond it. Sources
// outside the participating set keep their budgets untouched. caps may be
// nil; a capped source stops receiving at its cap.
func UniformlyRedistributeRemainingBudget(sources []string, amount int64, budgets map[string]int64, caps map[string]int64) map[string]int64 {
	if budgets == nil {
		budgets = make(map[string]int64, len(sources))
	}
	for ; amount > 0; amount-- {
		target := ""
		for _, id := range sources {
			if capped(id, budgets, caps) {
				continue
			}
			if target == "" || budgets[id] < budgets[target] {
				target = id
			}
		}
		if target == "" {
			break
		}
		budgets[target]++
	}
	return budgets
}

func capped(id string, budgets, caps map[string]int64) bool {
	if caps == nil {
		return false
	}
	max, ok := caps[id]
	return ok && budgets[id] >= max
}

func copyBudgets(budgets map[string]int64) map[string]int64 {
	copied := make(map[string]int64, len(budgets))
	for id, budget := range budgets {
		copied[id] = budget
	}
	return copied
}
