package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/budget"
	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/period"
	"example.com/finance-dashboard/internal/repository"
	"example.com/finance-dashboard/internal/settings"
)

const maxSuggestionLookback = 24

type BudgetHandler struct {
	Budgets      *repository.BudgetRepository
	Transactions TransactionLister
	Settings     *settings.Service
	Now          func() time.Time
}

// NewBudgetHandler создает обработчик бюджетов.
func NewBudgetHandler(budgets *repository.BudgetRepository, transactions TransactionLister, service *settings.Service) *BudgetHandler {
	return &BudgetHandler{Budgets: budgets, Transactions: transactions, Settings: service, Now: time.Now}
}

type BudgetCategoryRequest struct {
	Category        string `json:"category" validate:"required,max=100"`
	AllocatedAmount int64  `json:"allocated_amount" validate:"gte=0"`
	Color           string `json:"color" validate:"omitempty,hexcolor"`
}

type BudgetRequest struct {
	Name       string                  `json:"name" validate:"required,max=100"`
	Categories []BudgetCategoryRequest `json:"categories" validate:"dive"`
}

type BudgetDetailResponse struct {
	Budget         models.Budget           `json:"budget"`
	Period         models.MonthlyPeriod    `json:"period"`
	Categories     []models.BudgetCategory `json:"categories"`
	TotalAllocated int64                   `json:"total_allocated"`
	TotalSpent     int64                   `json:"total_spent"`
}

type SuggestionResponse struct {
	Category string `json:"category"`
	Lookback int    `json:"lookback"`
	budget.SuggestedAmounts
}

// List возвращает все бюджеты.
func (h *BudgetHandler) List(c echo.Context) error {
	budgets, err := h.Budgets.List(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.Budget{"budgets": budgets})
}

// Create создает бюджет с категориями.
func (h *BudgetHandler) Create(c echo.Context) error {
	var req BudgetRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}

	inputs := make([]repository.BudgetCategoryInput, 0, len(req.Categories))
	for _, category := range req.Categories {
		inputs = append(inputs, toCategoryInput(category))
	}

	created, categories, err := h.Budgets.Create(c.Request().Context(), name, inputs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "duplicate category in budget")
		case errors.Is(err, repository.ErrInvalid):
			return badRequest(c, "invalid category")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{"budget": created, "categories": categories})
}

// Get возвращает бюджет с расходами по категориям за текущий период.
func (h *BudgetHandler) Get(c echo.Context) error {
	budgetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	ctx := c.Request().Context()
	found, err := h.Budgets.GetByID(ctx, budgetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "budget not found")
		}
		return serverError(c)
	}

	categories, err := h.Budgets.ListCategories(ctx, budgetID)
	if err != nil {
		return serverError(c)
	}

	cfg, err := h.Settings.MonthlyCycle(ctx)
	if err != nil {
		return serverError(c)
	}

	current, err := period.CurrentPeriod(cfg, h.Now())
	if err != nil {
		return serverError(c)
	}

	start, end := periodBounds(current)
	txns, err := h.Transactions.List(ctx, repository.TransactionFilter{Start: start, End: end})
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, buildBudgetDetail(found, current, budget.ApplySpent(categories, txns, current)))
}

// Delete удаляет бюджет.
func (h *BudgetHandler) Delete(c echo.Context) error {
	budgetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	if err := h.Budgets.Delete(c.Request().Context(), budgetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "budget not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// AddCategory добавляет категорию в бюджет.
func (h *BudgetHandler) AddCategory(c echo.Context) error {
	budgetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid budget id")
	}

	var req BudgetCategoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	category, err := h.Budgets.AddCategory(c.Request().Context(), budgetID, toCategoryInput(req))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "budget not found")
		case errors.Is(err, repository.ErrConflict):
			return conflict(c, "category already exists in budget")
		case errors.Is(err, repository.ErrInvalid):
			return badRequest(c, "invalid category")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, category)
}

// DeleteCategory удаляет категорию бюджета.
func (h *BudgetHandler) DeleteCategory(c echo.Context) error {
	categoryID, err := uuid.Parse(c.Param("categoryId"))
	if err != nil {
		return badRequest(c, "invalid category id")
	}

	if err := h.Budgets.DeleteCategory(c.Request().Context(), categoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "category not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// Suggestions предлагает сумму бюджета по средним расходам прошлых периодов.
func (h *BudgetHandler) Suggestions(c echo.Context) error {
	category := strings.TrimSpace(c.QueryParam("category"))
	if category == "" {
		return badRequest(c, "category is required")
	}

	lookback, err := parsePositiveInt(c.QueryParam("lookback"), budget.DefaultLookbackPeriods)
	if err != nil || lookback > maxSuggestionLookback {
		return badRequest(c, "lookback must be between 1 and 24")
	}

	ctx := c.Request().Context()
	cfg, err := h.Settings.MonthlyCycle(ctx)
	if err != nil {
		return serverError(c)
	}

	now := h.Now()
	txns, err := loadPeriods(ctx, h.Transactions, cfg, lookback, now)
	if err != nil {
		return serverError(c)
	}

	amounts, err := budget.SuggestedBudgetAmountsWithCycle(txns, category, cfg, lookback, now)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, SuggestionResponse{Category: category, Lookback: lookback, SuggestedAmounts: amounts})
}

func buildBudgetDetail(b models.Budget, p models.MonthlyPeriod, categories []models.BudgetCategory) BudgetDetailResponse {
	response := BudgetDetailResponse{Budget: b, Period: p, Categories: categories}
	for _, category := range categories {
		response.TotalAllocated += category.AllocatedAmount
		response.TotalSpent += category.SpentAmount
	}
	return response
}

func toCategoryInput(req BudgetCategoryRequest) repository.BudgetCategoryInput {
	return repository.BudgetCategoryInput{
		Category:        strings.TrimSpace(req.Category),
		AllocatedAmount: req.AllocatedAmount,
		Color:           strings.TrimSpace(req.Color),
	}
}
