package autopilot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUniformRedistributionEqualizesUpward(t *testing.T) {
	budgets := UniformlyRedistributeRemainingBudget(
		[]string{"s0", "s1", "s2", "s3"},
		6,
		map[string]int64{"s0": 0, "s1": 0, "s2": 0, "s3": 10},
		nil,
	)
	assert.Equal(t, map[string]int64{"s0": 2, "s1": 2, "s2": 2, "s3": 10}, budgets)
}

func TestUniformRedistributionBeyondParity(t *testing.T) {
	budgets := UniformlyRedistributeRemainingBudget(
		[]string{"s0", "s1"},
		5,
		map[string]int64{"s0": 1, "s1": 3},
		nil,
	)
	// s0 is equalized to 3 first, then the remaining 3 units alternate.
	assert.Equal(t, map[string]int64{"s0": 5, "s1": 4}, budgets)
}

func TestUniformRedistributionRespectsCaps(t *testing.T) {
	budgets := UniformlyRedistributeRemainingBudget(
		[]string{"s0", "s1"},
		10,
		map[string]int64{"s0": 0, "s1": 0},
		map[string]int64{"s0": 2, "s1": 3},
	)
	assert.Equal(t, map[string]int64{"s0": 2, "s1": 3}, budgets)
}

func TestMinimumConstraints(t *testing.T) {
	constraints := MinimumConstraints([]BudgetSource{
		{ID: "a", MinDailyBudget: decimal.NewFromInt(5)},
		{ID: "b", MinDailyBudget: decimal.NewFromInt(1)},
	}, false)

	assert.True(t, constraints["a"].MinBudget.Equal(decimal.NewFromInt(5)))
	assert.True(t, constraints["a"].MaxBudget.Equal(decimal.NewFromInt(6)))
	// The global floor wins over a lower source floor.
	assert.True(t, constraints["b"].MinBudget.Equal(MinSourceBudget))
}

func TestMinimumConstraintsRTBAsOne(t *testing.T) {
	constraints := MinimumConstraints([]BudgetSource{
		{ID: "rtb-1", IsRTB: true},
		{ID: "rtb-2", IsRTB: true},
		{ID: "direct", MinDailyBudget: decimal.NewFromInt(4)},
	}, true)

	assert.Len(t, constraints, 2)
	assert.Contains(t, constraints, AllRTBSourceID)
	assert.Contains(t, constraints, "direct")
}

func TestOptimisticConstraints(t *testing.T) {
	constraints := OptimisticConstraints([]BudgetSource{
		{ID: "a", OldBudget: decimal.NewFromInt(10), MaxDailyBudget: decimal.NewFromInt(11)},
	}, false)

	assert.True(t, constraints["a"].MinBudget.Equal(decimal.NewFromInt(7)))
	assert.True(t, constraints["a"].MaxBudget.Equal(decimal.NewFromInt(11)))
}

func TestOptimisticConstraintsRTBAsOne(t *testing.T) {
	constraints := OptimisticConstraints([]BudgetSource{
		{ID: "rtb-1", IsRTB: true, OldBudget: decimal.NewFromInt(10), MaxDailyBudget: decimal.NewFromInt(20)},
		{ID: "rtb-2", IsRTB: true, OldBudget: decimal.NewFromInt(30), MaxDailyBudget: decimal.NewFromInt(40)},
		{ID: "direct", OldBudget: decimal.NewFromInt(10)},
	}, true)

	assert.Len(t, constraints, 2)
	// The pooled corridor works on the combined old budget of 40.
	assert.True(t, constraints[AllRTBSourceID].MinBudget.Equal(decimal.NewFromInt(28)),
		"got %s", constraints[AllRTBSourceID].MinBudget)
	assert.True(t, constraints[AllRTBSourceID].MaxBudget.Equal(decimal.NewFromInt(48)),
		"got %s", constraints[AllRTBSourceID].MaxBudget)
	assert.Contains(t, constraints, "direct")
}

func TestActiveSourcesWithSpend(t *testing.T) {
	active := ActiveSourcesWithSpend([]BudgetSource{
		{ID: "a", YesterdaysSpend: decimal.NewFromInt(10)},
		{ID: "b", YesterdaysSpend: decimal.NewFromInt(10)},
		{ID: "c", YesterdaysSpend: decimal.RequireFromString("0.1")},
	})

	assert.True(t, active["a"])
	assert.True(t, active["b"])
	assert.False(t, active["c"], "negligible spend must not be rebalanced")
}

func TestActiveSourcesWithSpendZeroTotal(t *testing.T) {
	active := ActiveSourcesWithSpend([]BudgetSource{
		{ID: "a"}, {ID: "b"},
	})
	assert.Empty(t, active)
}

func TestRedistribute(t *testing.T) {
	sources := []BudgetSource{
		{ID: "a", YesterdaysSpend: decimal.NewFromInt(10)},
		{ID: "b", YesterdaysSpend: decimal.NewFromInt(10)},
		{ID: "c", YesterdaysSpend: decimal.RequireFromString("0.1")},
	}
	constraints := MinimumConstraints(sources, false)
	active := ActiveSourcesWithSpend(sources)

	budgets := Redistribute(decimal.NewFromInt(30), sources, constraints, active)

	// Everyone starts at the floor of 3; the remainder flows only to the
	// active sources until their caps of 4.
	assert.True(t, budgets["a"].Equal(decimal.NewFromInt(4)), "got %s", budgets["a"])
	assert.True(t, budgets["b"].Equal(decimal.NewFromInt(4)), "got %s", budgets["b"])
	assert.True(t, budgets["c"].Equal(decimal.NewFromInt(3)), "got %s", budgets["c"])
}

func TestRedistributeRTBAsOne(t *testing.T) {
	sources := []BudgetSource{
		{ID: "rtb-1", IsRTB: true, YesterdaysSpend: decimal.NewFromInt(50)},
		{ID: "rtb-2", IsRTB: true},
		{ID: "direct", YesterdaysSpend: decimal.NewFromInt(50)},
	}
	constraints := MinimumConstraints(sources, true)
	active := ActiveSourcesWithSpend(sources)

	budgets := Redistribute(decimal.NewFromInt(100), sources, constraints, active)

	// The pooled corridor is [3, 4]; the whole pool participates because
	// rtb-1 has spend, fills to its cap of 4 and splits evenly. An RTB
	// source must never drop out of the result just because its
	// constraint lives under the pseudo-source.
	assert.Len(t, budgets, 3)
	assert.True(t, budgets["rtb-1"].Equal(decimal.NewFromInt(2)), "got %s", budgets["rtb-1"])
	assert.True(t, budgets["rtb-2"].Equal(decimal.NewFromInt(2)), "got %s", budgets["rtb-2"])
	assert.True(t, budgets["direct"].Equal(decimal.NewFromInt(4)), "got %s", budgets["direct"])
}

func TestRedistributeRTBAsOneSplitsRemainderInOrder(t *testing.T) {
	sources := []BudgetSource{
		{ID: "rtb-1", IsRTB: true, MinDailyBudget: decimal.NewFromInt(5)},
		{ID: "rtb-2", IsRTB: true},
	}
	constraints := MinimumConstraints(sources, true)

	budgets := Redistribute(decimal.NewFromInt(5), sources, constraints, nil)

	// An odd pool total of 5 cannot split evenly; the earlier source
	// takes the extra unit.
	assert.True(t, budgets["rtb-1"].Equal(decimal.NewFromInt(3)), "got %s", budgets["rtb-1"])
	assert.True(t, budgets["rtb-2"].Equal(decimal.NewFromInt(2)), "got %s", budgets["rtb-2"])
}

func TestRedistributeNoRemainder(t *testing.T) {
	sources := []BudgetSource{
		{ID: "a", YesterdaysSpend: decimal.NewFromInt(5)},
		{ID: "b", YesterdaysSpend: decimal.NewFromInt(5)},
	}
	constraints := MinimumConstraints(sources, false)
	budgets := Redistribute(decimal.NewFromInt(4), sources, constraints, ActiveSourcesWithSpend(sources))

	assert.True(t, budgets["a"].Equal(MinSourceBudget))
	assert.True(t, budgets["b"].Equal(MinSourceBudget))
}
