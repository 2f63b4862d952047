package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/debt"
	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/notifications"
	"example.com/finance-dashboard/internal/repository"
)

type DebtHandler struct {
	Service *debt.Service
	Debts   *repository.DebtRepository
	Hub     *notifications.Hub
}

// NewDebtHandler создает обработчик долгов и совпадений.
func NewDebtHandler(service *debt.Service, debts *repository.DebtRepository, hub *notifications.Hub) *DebtHandler {
	return &DebtHandler{Service: service, Debts: debts, Hub: hub}
}

type DebtRequest struct {
	Creditor       string   `json:"creditor" validate:"required,max=200"`
	OriginalAmount int64    `json:"original_amount" validate:"gt=0"`
	CurrentBalance *int64   `json:"current_balance" validate:"omitempty,gte=0"`
	InterestRate   *float64 `json:"interest_rate" validate:"omitempty,gte=0,lte=100"`
	MinimumPayment *int64   `json:"minimum_payment" validate:"omitempty,gt=0"`
	Status         string   `json:"status" validate:"omitempty,oneof=active paid_off deferred"`
}

type RuleRequest struct {
	Type                string  `json:"type" validate:"required,oneof=exact fuzzy pattern account"`
	Field               string  `json:"field" validate:"required,oneof=merchant_name counterparty_name description account_number"`
	Value               string  `json:"value" validate:"required,max=200"`
	Pattern             *string `json:"pattern" validate:"omitempty,max=500"`
	ConfidenceThreshold int     `json:"confidence_threshold" validate:"gte=0,lte=100"`
	Enabled             *bool   `json:"enabled"`
}

type PaymentRequest struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	PaymentDate string `json:"payment_date"`
	PaymentType string `json:"payment_type" validate:"omitempty,oneof=regular extra minimum final"`
}

type DebtDetailResponse struct {
	Debt     models.Debt                 `json:"debt"`
	Balance  debt.BalanceInfo            `json:"balance"`
	Payments []models.DebtPaymentHistory `json:"payments"`
}

// List возвращает все долги.
func (h *DebtHandler) List(c echo.Context) error {
	debts, err := h.Debts.ListDebts(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.Debt{"debts": debts})
}

// Create создает долг с правилами сопоставления по умолчанию.
func (h *DebtHandler) Create(c echo.Context) error {
	var req DebtRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	creditor := strings.TrimSpace(req.Creditor)
	if creditor == "" {
		return badRequest(c, "creditor is required")
	}

	d := models.Debt{
		Creditor:       creditor,
		OriginalAmount: req.OriginalAmount,
		InterestRate:   req.InterestRate,
		MinimumPayment: req.MinimumPayment,
		Status:         models.DebtStatus(req.Status),
	}
	if req.CurrentBalance != nil {
		if *req.CurrentBalance > req.OriginalAmount {
			return badRequest(c, "current_balance cannot exceed original_amount")
		}
		d.CurrentBalance = *req.CurrentBalance
	}

	created, rules, err := h.Service.CreateDebt(c.Request().Context(), d)
	if err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "invalid debt")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{"debt": created, "rules": rules})
}

// Get возвращает долг с фактическим остатком и историей платежей.
func (h *DebtHandler) Get(c echo.Context) error {
	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid debt id")
	}

	ctx := c.Request().Context()
	found, err := h.Debts.GetDebt(ctx, debtID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "debt not found")
		}
		return serverError(c)
	}

	info, err := h.Service.BalanceInfo(ctx, debtID)
	if err != nil {
		return serverError(c)
	}

	payments, err := h.Debts.ListPayments(ctx, debtID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, DebtDetailResponse{Debt: found, Balance: info, Payments: payments})
}

// Delete удаляет долг вместе с правилами и историей.
func (h *DebtHandler) Delete(c echo.Context) error {
	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid debt id")
	}

	if err := h.Debts.DeleteDebt(c.Request().Context(), debtID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "debt not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListRules возвращает правила сопоставления долга.
func (h *DebtHandler) ListRules(c echo.Context) error {
	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid debt id")
	}

	ctx := c.Request().Context()
	if _, err := h.Debts.GetDebt(ctx, debtID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "debt not found")
		}
		return serverError(c)
	}

	rules, err := h.Debts.ListRulesForDebt(ctx, debtID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.CreditorMatchingRule{"rules": rules})
}

// CreateRule добавляет правило сопоставления к долгу.
func (h *DebtHandler) CreateRule(c echo.Context) error {
	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid debt id")
	}

	var req RuleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	rule, err := toRule(debtID, req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.Debts.CreateRule(c.Request().Context(), rule)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "debt not found")
		case errors.Is(err, repository.ErrInvalid):
			return badRequest(c, "invalid rule")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, created)
}

// AddPayment записывает ручной платеж по долгу.
func (h *DebtHandler) AddPayment(c echo.Context) error {
	debtID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid debt id")
	}

	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	paymentDate := time.Now().UTC()
	if strings.TrimSpace(req.PaymentDate) != "" {
		paymentDate, err = time.Parse(dateLayout, strings.TrimSpace(req.PaymentDate))
		if err != nil {
			return badRequest(c, "payment_date must be in YYYY-MM-DD format")
		}
	}

	entry, err := h.Service.AddManualPayment(c.Request().Context(), debtID, debt.ManualPayment{
		Amount:      req.Amount,
		PaymentDate: paymentDate,
		PaymentType: models.PaymentType(req.PaymentType),
	})
	if err != nil {
		switch {
		case errors.Is(err, debt.ErrInvalidPayment):
			return badRequest(c, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			return notFound(c, "debt not found")
		}
		return serverError(c)
	}

	return c.JSON(http.StatusCreated, entry)
}

// Match прогоняет сохраненные исходящие транзакции через правила.
func (h *DebtHandler) Match(c echo.Context) error {
	var since time.Time
	if raw := strings.TrimSpace(c.QueryParam("since")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return badRequest(c, "since must be in YYYY-MM-DD format")
		}
		since = parsed
	}

	result, err := h.Service.ProcessTransactions(c.Request().Context(), since)
	if err != nil {
		return serverError(c)
	}

	publishMatchResult(h.Hub, result)
	return c.JSON(http.StatusOK, result)
}

// SyncBalances пересчитывает остатки всех долгов.
func (h *DebtHandler) SyncBalances(c echo.Context) error {
	updated, err := h.Service.SyncBalances(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string]int{"updated": updated})
}

// ListMatches возвращает совпадения, при необходимости по статусу и долгу.
func (h *DebtHandler) ListMatches(c echo.Context) error {
	var status *models.MatchStatus
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		value := models.MatchStatus(raw)
		switch value {
		case models.MatchStatusPending, models.MatchStatusConfirmed, models.MatchStatusRejected:
			status = &value
		default:
			return badRequest(c, "status must be pending, confirmed or rejected")
		}
	}

	var debtID *uuid.UUID
	if raw := strings.TrimSpace(c.QueryParam("debt_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid debt id")
		}
		debtID = &parsed
	}

	matches, err := h.Debts.ListMatches(c.Request().Context(), debtID, status)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.DebtTransactionMatch{"matches": matches})
}

// ConfirmMatch подтверждает совпадение и записывает платеж.
func (h *DebtHandler) ConfirmMatch(c echo.Context) error {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid match id")
	}

	match, err := h.Service.ConfirmMatch(c.Request().Context(), matchID)
	if err != nil {
		return matchError(c, err)
	}

	return c.JSON(http.StatusOK, match)
}

// RejectMatch отклоняет совпадение, ожидающее ревью.
func (h *DebtHandler) RejectMatch(c echo.Context) error {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid match id")
	}

	match, err := h.Service.RejectMatch(c.Request().Context(), matchID)
	if err != nil {
		return matchError(c, err)
	}

	return c.JSON(http.StatusOK, match)
}

func matchError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound(c, "match not found")
	case errors.Is(err, debt.ErrMatchConflict), errors.Is(err, repository.ErrConflict):
		return conflict(c, "transaction already confirmed as a debt payment")
	case errors.Is(err, debt.ErrMatchNotPending):
		return conflict(c, err.Error())
	}
	return serverError(c)
}

// publishMatchResult сообщает открытым вкладкам о новых совпадениях.
func publishMatchResult(hub *notifications.Hub, result debt.ProcessResult) {
	if hub == nil || result.Confirmed+result.Pending == 0 {
		return
	}

	hub.Publish(notifications.Event{Type: notifications.EventDebtMatches, Data: result})
}

func toRule(debtID uuid.UUID, req RuleRequest) (models.CreditorMatchingRule, error) {
	rule := models.CreditorMatchingRule{
		ID:                  uuid.New(),
		DebtID:              debtID,
		Type:                models.RuleType(req.Type),
		Field:               req.Field,
		Value:               strings.TrimSpace(req.Value),
		ConfidenceThreshold: req.ConfidenceThreshold,
		Enabled:             true,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if rule.Value == "" {
		return rule, errors.New("value is required")
	}

	if req.Pattern != nil && strings.TrimSpace(*req.Pattern) != "" {
		pattern := strings.TrimSpace(*req.Pattern)
		rule.Pattern = &pattern
	}

	if rule.Type == models.RuleTypePattern {
		expr := rule.Value
		if rule.Pattern != nil {
			expr = *rule.Pattern
		}
		if _, err := regexp.Compile("(?i)" + expr); err != nil {
			return rule, errors.New("pattern is not a valid regular expression")
		}
	}

	return rule, nil
}
