// Package budget считает расходы по категориям внутри периодов месячного цикла.
package budget

import (
	"sort"
	"strings"
	"time"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/period"
)

// Запас сверх среднего расхода для рекомендованного бюджета.
const suggestionBuffer = 1.2

const DefaultLookbackPeriods = 3

type SuggestedAmounts struct {
	Average   float64 `json:"average"`
	Suggested float64 `json:"suggested"`
	Min       int64   `json:"min"`
	Max       int64   `json:"max"`
}

type CategorySummary struct {
	Amount int64 `json:"amount"`
	Count  int   `json:"count"`
}

// AvailableCategories возвращает отсортированные категории транзакций вместе с "other".
func AvailableCategories(transactions []models.Transaction) []string {
	seen := map[string]struct{}{models.OtherCategory: {}}
	for _, txn := range transactions {
		category := strings.TrimSpace(txn.Category)
		if category == "" {
			continue
		}
		seen[category] = struct{}{}
	}

	categories := make([]string, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return categories
}

// CategorySpent суммирует расходы категории внутри периода. Категории
// сравниваются без учета регистра, транзакции без категории относятся к "other".
func CategorySpent(transactions []models.Transaction, category string, p models.MonthlyPeriod) int64 {
	category = strings.TrimSpace(category)

	var total int64
	for _, txn := range transactions {
		if !strings.EqualFold(bucket(txn.Category, nil), category) || !isSpendingIn(txn, p) {
			continue
		}
		total += -txn.Amount
	}
	return total
}

// ApplySpent заполняет SpentAmount категорий бюджета за период.
func ApplySpent(categories []models.BudgetCategory, transactions []models.Transaction, p models.MonthlyPeriod) []models.BudgetCategory {
	out := make([]models.BudgetCategory, len(categories))
	for i, category := range categories {
		category.SpentAmount = CategorySpent(transactions, category.Category, p)
		out[i] = category
	}
	return out
}

// SuggestedBudgetAmounts считает рекомендацию по календарным месяцам.
func SuggestedBudgetAmounts(transactions []models.Transaction, category string, lookback int, now time.Time) (SuggestedAmounts, error) {
	return SuggestedBudgetAmountsWithCycle(transactions, category, models.DefaultMonthlyCycleConfig(), lookback, now)
}

// SuggestedBudgetAmountsWithCycle считает рекомендацию по периодам заданного цикла.
// Периоды без расходов участвуют в среднем как нулевые.
func SuggestedBudgetAmountsWithCycle(transactions []models.Transaction, category string, cfg models.MonthlyCycleConfig, lookback int, now time.Time) (SuggestedAmounts, error) {
	if lookback <= 0 {
		lookback = DefaultLookbackPeriods
	}

	periods, err := period.PastPeriods(cfg, lookback, now)
	if err != nil {
		return SuggestedAmounts{}, err
	}

	var (
		sum    int64
		result SuggestedAmounts
	)
	for i, p := range periods {
		spent := CategorySpent(transactions, category, p)
		sum += spent
		if i == 0 || spent < result.Min {
			result.Min = spent
		}
		if i == 0 || spent > result.Max {
			result.Max = spent
		}
	}

	result.Average = float64(sum) / float64(len(periods))
	result.Suggested = result.Average * suggestionBuffer

	return result, nil
}

// SpendingSummary группирует расходы периода по категориям. Пустые и
// скрытые категории попадают в "other", поэтому общая сумма сохраняется.
func SpendingSummary(transactions []models.Transaction, p models.MonthlyPeriod, omitted []string) map[string]CategorySummary {
	hidden := toSet(omitted)
	summary := make(map[string]CategorySummary)

	for _, txn := range transactions {
		if !isSpendingIn(txn, p) {
			continue
		}
		key := bucket(txn.Category, hidden)
		entry := summary[key]
		entry.Amount += -txn.Amount
		entry.Count++
		summary[key] = entry
	}

	return summary
}

func isSpendingIn(txn models.Transaction, p models.MonthlyPeriod) bool {
	return txn.IsSpending() && period.Contains(txn.Created, p)
}

func bucket(category string, hidden map[string]struct{}) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return models.OtherCategory
	}
	if _, ok := hidden[category]; ok {
		return models.OtherCategory
	}
	return category
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[strings.TrimSpace(value)] = struct{}{}
	}
	return set
}
