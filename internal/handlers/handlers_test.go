package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/repository"
	"example.com/finance-dashboard/internal/settings"
)

var handlerNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

type testValidator struct {
	validate *validator.Validate
}

func (v testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = testValidator{validate: validator.New()}
	return e
}

func newRequest(e *echo.Echo, method, target string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type memoryPreferences map[string]string

func (m memoryPreferences) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := m[key]
	return value, ok, nil
}

func (m memoryPreferences) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func (m memoryPreferences) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

type stubTransactions struct {
	txns    []models.Transaction
	filters []repository.TransactionFilter
}

func (s *stubTransactions) List(_ context.Context, filter repository.TransactionFilter) ([]models.Transaction, error) {
	s.filters = append(s.filters, filter)
	return s.txns, nil
}

type stubAccounts []models.Account

func (s stubAccounts) List(context.Context) ([]models.Account, error) {
	return s, nil
}

func newSpendingHandler(txns ...models.Transaction) (*SpendingHandler, *stubTransactions) {
	lister := &stubTransactions{txns: txns}
	handler := NewSpendingHandler(lister, stubAccounts{{ID: "acc_1", Type: models.AccountTypeRetail, Description: "Current"}}, settings.NewService(memoryPreferences{}, nil))
	handler.Now = func() time.Time { return handlerNow }
	return handler, lister
}
