package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/remote"
	"example.com/finance-dashboard/internal/syncer"
)

// AccountLister читает сохраненные счета.
type AccountLister interface {
	List(ctx context.Context) ([]models.Account, error)
}

type SyncHandler struct {
	Engine   *syncer.Engine
	Accounts AccountLister
	Logger   *slog.Logger
}

// NewSyncHandler создает обработчик запуска синхронизации.
func NewSyncHandler(engine *syncer.Engine, accounts AccountLister, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{Engine: engine, Accounts: accounts, Logger: logger}
}

type AccessTokenRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type RefreshAllRequest struct {
	AccountIDs []string `json:"account_ids"`
}

type SyncResponse struct {
	AccountID string `json:"account_id"`
	Fetched   int    `json:"fetched"`
}

type RefreshResult struct {
	AccountID string `json:"account_id"`
	Fetched   int    `json:"fetched"`
	Error     string `json:"error,omitempty"`
}

type RefreshAllResponse struct {
	Results        []RefreshResult `json:"results"`
	Failed         int             `json:"failed"`
	ReauthRequired bool            `json:"reauth_required"`
}

type RecentPullResponse struct {
	AccountID      string `json:"account_id"`
	RecentlyPulled bool   `json:"recently_pulled"`
}

// SetToken принимает банковский access token.
func (h *SyncHandler) SetToken(c echo.Context) error {
	var req AccessTokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	ctx := c.Request().Context()
	if err := h.Engine.UseAccessToken(ctx, req.AccessToken); err != nil {
		if errors.Is(err, syncer.ErrEmptyToken) {
			return badRequest(c, "access_token is required")
		}
		return serverError(c)
	}

	status, err := h.Engine.TokenStatus(ctx)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, status)
}

// TokenStatus возвращает свежесть банковского токена.
func (h *SyncHandler) TokenStatus(c echo.Context) error {
	status, err := h.Engine.TokenStatus(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, status)
}

// SyncAccounts загружает список счетов из банка.
func (h *SyncHandler) SyncAccounts(c echo.Context) error {
	accounts, err := h.Engine.SyncAccounts(detached(c))
	if err != nil {
		return h.syncError(c, err)
	}

	return c.JSON(http.StatusOK, map[string][]models.Account{"accounts": accounts})
}

// ListAccounts возвращает сохраненные счета.
func (h *SyncHandler) ListAccounts(c echo.Context) error {
	accounts, err := h.Accounts.List(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.Account{"accounts": accounts})
}

// RetrieveTransactions выгружает транзакции счета; force=true игнорирует курсор.
func (h *SyncHandler) RetrieveTransactions(c echo.Context) error {
	accountID, ok := accountIDParam(c)
	if !ok {
		return badRequest(c, "invalid account id")
	}

	force, err := parseBoolQuery(c.QueryParam("force"))
	if err != nil {
		return badRequest(c, "force must be a boolean")
	}

	txns, err := h.Engine.RetrieveTransactions(detached(c), accountID, force)
	if err != nil {
		return h.syncError(c, err)
	}

	return c.JSON(http.StatusOK, SyncResponse{AccountID: accountID, Fetched: len(txns)})
}

// IncrementalSync догружает транзакции после последней инкрементальной синхронизации.
func (h *SyncHandler) IncrementalSync(c echo.Context) error {
	accountID, ok := accountIDParam(c)
	if !ok {
		return badRequest(c, "invalid account id")
	}

	txns, err := h.Engine.IncrementalSync(detached(c), accountID)
	if err != nil {
		return h.syncError(c, err)
	}

	return c.JSON(http.StatusOK, SyncResponse{AccountID: accountID, Fetched: len(txns)})
}

// RecentPull сообщает, выгружался ли счет за последние threshold_minutes.
func (h *SyncHandler) RecentPull(c echo.Context) error {
	accountID, ok := accountIDParam(c)
	if !ok {
		return badRequest(c, "invalid account id")
	}

	var threshold time.Duration
	if raw := strings.TrimSpace(c.QueryParam("threshold_minutes")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return badRequest(c, "threshold_minutes must be a positive integer")
		}
		threshold = time.Duration(minutes) * time.Minute
	}

	recent, err := h.Engine.WasRecentlyPulled(c.Request().Context(), accountID, threshold)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, RecentPullResponse{AccountID: accountID, RecentlyPulled: recent})
}

// RefreshAll принудительно перевыгружает все счета; ошибка одного счета не останавливает остальные.
func (h *SyncHandler) RefreshAll(c echo.Context) error {
	var req RefreshAllRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid payload")
		}
	}

	accountIDs := req.AccountIDs
	if len(accountIDs) == 0 {
		accounts, err := h.Accounts.List(c.Request().Context())
		if err != nil {
			return serverError(c)
		}
		for _, account := range accounts {
			accountIDs = append(accountIDs, account.ID)
		}
	}

	results := h.Engine.RefreshAll(detached(c), accountIDs)
	response := RefreshAllResponse{Results: make([]RefreshResult, 0, len(results))}
	for _, result := range results {
		item := RefreshResult{AccountID: result.AccountID, Fetched: result.Count}
		if result.Err != nil {
			item.Error = result.Err.Error()
			response.Failed++
			if errors.Is(result.Err, syncer.ErrAuthRequired) {
				response.ReauthRequired = true
			}
		}
		response.Results = append(response.Results, item)
	}

	return c.JSON(http.StatusOK, response)
}

// Metrics возвращает журнал запусков синхронизации.
func (h *SyncHandler) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]syncer.APIMetrics{"metrics": h.Engine.Metrics()})
}

// ClearMetrics очищает журнал запусков.
func (h *SyncHandler) ClearMetrics(c echo.Context) error {
	h.Engine.ClearMetrics()
	return c.NoContent(http.StatusNoContent)
}

func (h *SyncHandler) syncError(c echo.Context, err error) error {
	var apiErr *remote.APIError

	switch {
	case errors.Is(err, syncer.ErrAuthRequired):
		return reauthenticate(c)
	case errors.Is(err, remote.ErrRateLimited):
		return tooManyRequests(c)
	case errors.As(err, &apiErr), remote.IsTransient(err), errors.Is(err, remote.ErrInvalidTimeRange), errors.Is(err, remote.ErrMalformedBody):
		h.Logger.Warn("bank api request failed", "error", err)
		return badGateway(c)
	default:
		h.Logger.Error("sync failed", "error", err)
		return serverError(c)
	}
}

// detached отвязывает синхронизацию от соединения: закрытая вкладка не должна
// обрывать уже начатую выгрузку.
func detached(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

func accountIDParam(c echo.Context) (string, bool) {
	accountID := strings.TrimSpace(c.Param("accountId"))
	return accountID, accountID != ""
}

func parseBoolQuery(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}
