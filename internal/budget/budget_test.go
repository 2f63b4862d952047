package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/finance-dashboard/internal/models"
)

var now = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

func spend(id, accountID, category string, amount int64, created time.Time) models.Transaction {
	return models.Transaction{ID: id, AccountID: accountID, Amount: amount, Created: created, Category: category, IncludeInSpending: true}
}

func june() models.MonthlyPeriod {
	return models.MonthlyPeriod{
		StartDate: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestAvailableCategoriesAlwaysIncludesOther(t *testing.T) {
	assert.Equal(t, []string{"other"}, AvailableCategories(nil))

	txns := []models.Transaction{
		{Category: "groceries"},
		{Category: " "},
		{Category: "bills"},
		{Category: "groceries"},
	}
	assert.Equal(t, []string{"bills", "groceries", "other"}, AvailableCategories(txns))
}

func TestCategorySpentFiltersSpending(t *testing.T) {
	txns := []models.Transaction{
		spend("1", "acc", "groceries", -1200, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc", "groceries", -800, time.Date(2024, time.June, 30, 23, 0, 0, 0, time.UTC)),
		spend("3", "acc", "groceries", 500, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)),
		spend("4", "acc", "groceries", -700, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)),
		spend("5", "acc", "transport", -300, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)),
		{ID: "6", Amount: -999, Category: "groceries", Created: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)},
	}

	assert.Equal(t, int64(2000), CategorySpent(txns, "groceries", june()))

	categories := ApplySpent([]models.BudgetCategory{{Category: "groceries", AllocatedAmount: 5000}}, txns, june())
	assert.Equal(t, int64(2000), categories[0].SpentAmount)
}

func TestSuggestedBudgetAmounts(t *testing.T) {
	txns := []models.Transaction{
		spend("1", "acc", "eating_out", -5000, time.Date(2024, time.April, 12, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc", "eating_out", -1000, time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC)),
		spend("3", "acc", "eating_out", -2000, time.Date(2024, time.May, 28, 0, 0, 0, 0, time.UTC)),
		spend("4", "acc", "eating_out", -4500, time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC)),
		spend("5", "acc", "eating_out", -9999, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)),
	}

	got, err := SuggestedBudgetAmounts(txns, "eating_out", 3, now)
	require.NoError(t, err)
	assert.InDelta(t, 4166.67, got.Average, 0.01)
	assert.InDelta(t, got.Average*1.2, got.Suggested, 0.0001)
	assert.Equal(t, int64(3000), got.Min)
	assert.Equal(t, int64(5000), got.Max)
}

func TestSuggestedBudgetAmountsEmpty(t *testing.T) {
	got, err := SuggestedBudgetAmounts(nil, "eating_out", 0, now)
	require.NoError(t, err)
	assert.Equal(t, SuggestedAmounts{}, got)
}

func TestSuggestedBudgetAmountsWithCycle(t *testing.T) {
	cfg := models.MonthlyCycleConfig{Type: models.CycleSpecificDate, Date: 15}
	txns := []models.Transaction{
		// 10 июня относится к периоду 15 мая - 14 июня.
		spend("1", "acc", "bills", -3000, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc", "bills", -6000, time.Date(2024, time.June, 16, 0, 0, 0, 0, time.UTC)),
	}

	got, err := SuggestedBudgetAmountsWithCycle(txns, "bills", cfg, 2, now)
	require.NoError(t, err)
	assert.InDelta(t, 4500, got.Average, 0.001)
	assert.Equal(t, int64(3000), got.Min)
	assert.Equal(t, int64(6000), got.Max)

	_, err = SuggestedBudgetAmountsWithCycle(txns, "bills", models.MonthlyCycleConfig{Type: models.CycleSpecificDate}, 2, now)
	assert.Error(t, err)
}

func TestSpendingSummaryConservesTotal(t *testing.T) {
	txns := []models.Transaction{
		spend("1", "acc", "groceries", -1000, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc", "groceries", -500, time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)),
		spend("3", "acc", "shopping", -2500, time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)),
		spend("4", "acc", "", -100, time.Date(2024, time.June, 6, 0, 0, 0, 0, time.UTC)),
	}

	total := func(summary map[string]CategorySummary) int64 {
		var sum int64
		for _, entry := range summary {
			sum += entry.Amount
		}
		return sum
	}

	full := SpendingSummary(txns, june(), nil)
	assert.Equal(t, CategorySummary{Amount: 1500, Count: 2}, full["groceries"])
	assert.Equal(t, CategorySummary{Amount: 100, Count: 1}, full["other"])

	folded := SpendingSummary(txns, june(), []string{"shopping"})
	_, hasShopping := folded["shopping"]
	assert.False(t, hasShopping)
	assert.Equal(t, CategorySummary{Amount: 2600, Count: 2}, folded["other"])
	assert.Equal(t, total(full), total(folded))
}

func TestCategoryChartData(t *testing.T) {
	accounts := []models.Account{
		{ID: "acc_1", Type: models.AccountTypeRetail, Description: "Current"},
		{ID: "acc_2", Type: models.AccountTypeJoint},
	}
	txns := []models.Transaction{
		spend("1", "acc_1", "eating_out", -1500, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc_1", "eating_out", -500, time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)),
		spend("3", "acc_2", "eating_out", -200, time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)),
		spend("4", "acc_2", "shopping", -3000, time.Date(2024, time.June, 6, 0, 0, 0, 0, time.UTC)),
	}

	data := CategoryChartData(txns, accounts, june(), []string{"shopping"}, 1000)

	labels := map[string]string{}
	for _, node := range data.Nodes {
		labels[node.ID] = node.Label
	}
	assert.Equal(t, "Current", labels["account:acc_1"])
	assert.Equal(t, "Joint", labels["account:acc_2"])
	assert.Equal(t, "Eating Out", labels["category:eating_out"])
	assert.Equal(t, "Other", labels["category:other"])
	_, hasShopping := labels["category:shopping"]
	assert.False(t, hasShopping)

	assert.Equal(t, []ChartLink{
		{Source: "account:acc_1", Target: "category:eating_out", Value: 2000},
		{Source: "account:acc_2", Target: "category:other", Value: 3000},
	}, data.Links)
}

func TestCategorySpentIgnoresCaseAndFoldsBlankIntoOther(t *testing.T) {
	txns := []models.Transaction{
		spend("1", "acc", "Eating_Out", -500, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc", "eating_out", -250, time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)),
		spend("3", "acc", "", -400, time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)),
		spend("4", "acc", "other", -100, time.Date(2024, time.June, 6, 0, 0, 0, 0, time.UTC)),
	}

	categories := AvailableCategories(txns)
	require.Contains(t, categories, "Eating_Out")

	assert.Equal(t, int64(750), CategorySpent(txns, "Eating_Out", june()))
	assert.Equal(t, int64(750), CategorySpent(txns, "eating_out", june()))
	assert.Equal(t, int64(500), CategorySpent(txns, models.OtherCategory, june()))

	summary := SpendingSummary(txns, june(), nil)
	assert.Equal(t, summary[models.OtherCategory].Amount, CategorySpent(txns, models.OtherCategory, june()))
}

func TestCategoryChartDataAddsNodesForUnlistedAccounts(t *testing.T) {
	accounts := []models.Account{{ID: "acc_1", Type: models.AccountTypeRetail, Description: "Current"}}
	txns := []models.Transaction{
		spend("1", "acc_1", "groceries", -1500, time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)),
		spend("2", "acc_2", "groceries", -2500, time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)),
		spend("3", "acc_3", "groceries", -10, time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)),
	}

	data := CategoryChartData(txns, accounts, june(), nil, 100)

	nodes := map[string]ChartNode{}
	for _, node := range data.Nodes {
		nodes[node.ID] = node
	}
	for _, link := range data.Links {
		_, hasSource := nodes[link.Source]
		_, hasTarget := nodes[link.Target]
		assert.True(t, hasSource, "missing source node %s", link.Source)
		assert.True(t, hasTarget, "missing target node %s", link.Target)
	}

	assert.Equal(t, ChartNode{ID: "account:acc_2", Label: "acc_2", Kind: NodeKindAccount}, nodes["account:acc_2"])
	_, hasFiltered := nodes["account:acc_3"]
	assert.False(t, hasFiltered, "accounts whose flows are all below the minimum get no node")
}
