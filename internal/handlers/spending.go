package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/budget"
	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/period"
	"example.com/finance-dashboard/internal/repository"
	"example.com/finance-dashboard/internal/settings"
)

const (
	dateLayout = time.DateOnly

	defaultPeriodCount     = 6
	maxPeriodCount         = 60
	defaultCategoryPeriods = 12
)

// TransactionLister читает сохраненные транзакции за интервал.
type TransactionLister interface {
	List(ctx context.Context, filter repository.TransactionFilter) ([]models.Transaction, error)
}

type SpendingHandler struct {
	Transactions TransactionLister
	Accounts     AccountLister
	Settings     *settings.Service
	Now          func() time.Time
}

// NewSpendingHandler создает обработчик периодов, транзакций и отчетов по расходам.
func NewSpendingHandler(transactions TransactionLister, accounts AccountLister, service *settings.Service) *SpendingHandler {
	return &SpendingHandler{Transactions: transactions, Accounts: accounts, Settings: service, Now: time.Now}
}

type SummaryItem struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
	Count    int    `json:"count"`
}

type SummaryResponse struct {
	Period     models.MonthlyPeriod `json:"period"`
	Total      int64                `json:"total"`
	Categories []SummaryItem        `json:"categories"`
}

type ChartResponse struct {
	Period models.MonthlyPeriod `json:"period"`
	budget.ChartData
}

// ListPeriods возвращает последние count периодов цикла, от старых к новым.
func (h *SpendingHandler) ListPeriods(c echo.Context) error {
	count, err := parsePositiveInt(c.QueryParam("count"), defaultPeriodCount)
	if err != nil || count > maxPeriodCount {
		return badRequest(c, "count must be between 1 and 60")
	}

	cfg, err := h.Settings.MonthlyCycle(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	periods, err := period.PastPeriods(cfg, count, h.Now())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.MonthlyPeriod{"periods": periods})
}

// ListTransactions возвращает транзакции за интервал; по умолчанию за текущий период.
func (h *SpendingHandler) ListTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	var start, end time.Time
	if c.QueryParam("start") == "" && c.QueryParam("end") == "" {
		p, err := h.periodFor(ctx, "")
		if err != nil {
			return h.periodError(c, err)
		}
		start, end = periodBounds(p)
	} else {
		var err error
		start, end, err = parsePeriod(c.QueryParam("start"), c.QueryParam("end"))
		if err != nil {
			return badRequest(c, err.Error())
		}
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	txns, err := h.Transactions.List(ctx, repository.TransactionFilter{
		Start:     start,
		End:       end,
		AccountID: strings.TrimSpace(c.QueryParam("account_id")),
	})
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]models.Transaction{"transactions": txns})
}

// Categories возвращает категории расходов за последние периоды.
func (h *SpendingHandler) Categories(c echo.Context) error {
	lookback, err := parsePositiveInt(c.QueryParam("lookback"), defaultCategoryPeriods)
	if err != nil || lookback > maxPeriodCount {
		return badRequest(c, "lookback must be between 1 and 60")
	}

	ctx := c.Request().Context()
	cfg, err := h.Settings.MonthlyCycle(ctx)
	if err != nil {
		return serverError(c)
	}

	txns, err := loadPeriods(ctx, h.Transactions, cfg, lookback, h.Now())
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string][]string{"categories": budget.AvailableCategories(txns)})
}

// Summary группирует расходы периода по категориям.
func (h *SpendingHandler) Summary(c echo.Context) error {
	ctx := c.Request().Context()

	p, err := h.periodFor(ctx, c.QueryParam("date"))
	if err != nil {
		return h.periodError(c, err)
	}

	txns, err := h.periodTransactions(ctx, p)
	if err != nil {
		return serverError(c)
	}

	summary := budget.SpendingSummary(txns, p, parseCSV(c.QueryParam("omit")))
	return c.JSON(http.StatusOK, toSummaryResponse(p, summary))
}

// Chart строит данные для диаграммы потоков счет -> категория.
func (h *SpendingHandler) Chart(c echo.Context) error {
	ctx := c.Request().Context()

	minimum, err := parseNonNegativeInt64(c.QueryParam("min"))
	if err != nil {
		return badRequest(c, "min must be a non-negative integer")
	}

	p, err := h.periodFor(ctx, c.QueryParam("date"))
	if err != nil {
		return h.periodError(c, err)
	}

	txns, err := h.periodTransactions(ctx, p)
	if err != nil {
		return serverError(c)
	}

	accounts, err := h.Accounts.List(ctx)
	if err != nil {
		return serverError(c)
	}

	data := budget.CategoryChartData(txns, accounts, p, parseCSV(c.QueryParam("omit")), minimum)
	return c.JSON(http.StatusOK, ChartResponse{Period: p, ChartData: data})
}

// periodFor возвращает период цикла, содержащий дату; пустая дата значит сегодня.
func (h *SpendingHandler) periodFor(ctx context.Context, date string) (models.MonthlyPeriod, error) {
	reference := h.Now()
	if strings.TrimSpace(date) != "" {
		parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), reference.Location())
		if err != nil {
			return models.MonthlyPeriod{}, errInvalidDate
		}
		reference = parsed
	}

	cfg, err := h.Settings.MonthlyCycle(ctx)
	if err != nil {
		return models.MonthlyPeriod{}, err
	}

	return period.CurrentPeriod(cfg, reference)
}

func (h *SpendingHandler) periodTransactions(ctx context.Context, p models.MonthlyPeriod) ([]models.Transaction, error) {
	start, end := periodBounds(p)
	return h.Transactions.List(ctx, repository.TransactionFilter{Start: start, End: end})
}

func (h *SpendingHandler) periodError(c echo.Context, err error) error {
	if errors.Is(err, errInvalidDate) {
		return badRequest(c, err.Error())
	}
	return serverError(c)
}

var errInvalidDate = errors.New("date must be in YYYY-MM-DD format")

// loadPeriods читает транзакции за count последних периодов цикла.
func loadPeriods(ctx context.Context, txns TransactionLister, cfg models.MonthlyCycleConfig, count int, now time.Time) ([]models.Transaction, error) {
	periods, err := period.PastPeriods(cfg, count, now)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return []models.Transaction{}, nil
	}

	start, _ := periodBounds(periods[0])
	_, end := periodBounds(periods[len(periods)-1])
	return txns.List(ctx, repository.TransactionFilter{Start: start, End: end})
}

// periodBounds переводит период в полуинтервал по времени; конец включает весь последний день.
func periodBounds(p models.MonthlyPeriod) (time.Time, time.Time) {
	return p.StartDate, p.EndDate.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func toSummaryResponse(p models.MonthlyPeriod, summary map[string]budget.CategorySummary) SummaryResponse {
	response := SummaryResponse{Period: p, Categories: make([]SummaryItem, 0, len(summary))}
	for category, entry := range summary {
		response.Total += entry.Amount
		response.Categories = append(response.Categories, SummaryItem{Category: category, Amount: entry.Amount, Count: entry.Count})
	}

	sort.Slice(response.Categories, func(i, j int) bool {
		a, b := response.Categories[i], response.Categories[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Category < b.Category
	})

	return response
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	periodStart, err := time.Parse(dateLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start format")
	}

	periodEnd, err := time.Parse(dateLayout, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end format")
	}

	if periodEnd.Before(periodStart) {
		return time.Time{}, time.Time{}, errors.New("end must be after start")
	}

	return periodStart, periodEnd, nil
}

func parsePositiveInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, errors.New("value must be greater than 0")
	}

	return parsed, nil
}

func parseNonNegativeInt64(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if parsed < 0 {
		return 0, errors.New("value must not be negative")
	}

	return parsed, nil
}

func parseCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
