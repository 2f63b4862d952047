package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"example.com/finance-dashboard/internal/models"
)

const defaultPageSize = 100

// TokenSource отдает текущий bearer-токен банковского API.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client ходит в удаленный API счетов и транзакций.
type Client struct {
	baseURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient создает клиент API; limiter может быть nil.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, limiter *rate.Limiter) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		limiter: limiter,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewLimiter переводит лимит запросов в минуту в rate.Limiter.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

// ListTransactions запрашивает одну страницу транзакций счета.
func (c *Client) ListTransactions(ctx context.Context, query TransactionQuery) ([]models.Transaction, error) {
	params := url.Values{}
	params.Set("account_id", query.AccountID)
	if !query.Since.IsZero() {
		params.Set("since", query.Since.UTC().Format(time.RFC3339))
	}
	if !query.Before.IsZero() {
		params.Set("before", query.Before.UTC().Format(time.RFC3339))
	}
	if query.StartingAfter != "" {
		params.Set("starting_after", query.StartingAfter)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	params.Set("limit", strconv.Itoa(limit))

	var parsed transactionsResponse
	if err := c.get(ctx, "/transactions?"+params.Encode(), &parsed); err != nil {
		return nil, err
	}

	transactions := make([]models.Transaction, 0, len(parsed.Transactions))
	for _, txn := range parsed.Transactions {
		transactions = append(transactions, txn.toModel())
	}

	return transactions, nil
}

// ListAccounts возвращает счета, доступные по текущему токену.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var parsed accountsResponse
	if err := c.get(ctx, "/accounts", &parsed); err != nil {
		return nil, err
	}

	accounts := make([]models.Account, 0, len(parsed.Accounts))
	for _, account := range parsed.Accounts {
		accounts = append(accounts, account.toModel())
	}

	return accounts, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return ErrNoAccessToken
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("remote request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("read remote response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return parseError(response.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode remote response: %w: %w", ErrMalformedBody, err)
	}

	return nil
}

func parseError(status int, body []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	case status == http.StatusBadRequest && apiErr.Code == codeInvalidTimeRange:
		return fmt.Errorf("%w: %s", ErrInvalidTimeRange, apiErr.Message)
	}

	return &APIError{StatusCode: status, Code: apiErr.Code, Message: apiErr.Message}
}

// IsTransient сообщает, что запрос стоит повторить с задержкой.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedBody) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}

	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrInvalidTimeRange) && !errors.Is(err, ErrNoAccessToken)
}
