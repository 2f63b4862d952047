package handlers

import (
	"testing"
	"time"

	"example.com/finance-dashboard/internal/budget"
	"example.com/finance-dashboard/internal/models"
)

// TestBudgetCategoryKeepsTransactionCategory проверяет, что категория из
// списка транзакций сохраняется как есть и дает ненулевой расход.
func TestBudgetCategoryKeepsTransactionCategory(t *testing.T) {
	txns := []models.Transaction{
		{ID: "tx_1", AccountID: "acc_1", Amount: -500, Category: "Eating_Out", IncludeInSpending: true, Created: time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)},
	}

	input := toCategoryInput(BudgetCategoryRequest{Category: "  Eating_Out ", AllocatedAmount: 2000, Color: " #ff0000 "})
	if input.Category != "Eating_Out" || input.Color != "#ff0000" {
		t.Fatalf("unexpected input %+v", input)
	}

	p := models.MonthlyPeriod{
		StartDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC),
	}
	categories := budget.ApplySpent([]models.BudgetCategory{{Category: input.Category, AllocatedAmount: input.AllocatedAmount}}, txns, p)
	if categories[0].SpentAmount != 500 {
		t.Fatalf("expected spent 500, got %d", categories[0].SpentAmount)
	}
}
