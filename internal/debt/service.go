package debt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"example.com/finance-dashboard/internal/models"
)

// Допустимое расхождение остатка, при котором запись не обновляется.
const balanceTolerance = 1

var (
	ErrMatchConflict   = errors.New("transaction already confirmed as a debt payment")
	ErrMatchNotPending = errors.New("only pending matches can be rejected")
	ErrInvalidPayment  = errors.New("payment amount must be greater than 0")
)

// Store хранит долги, правила, совпадения и историю платежей.
type Store interface {
	CreateDebt(ctx context.Context, d models.Debt, rules []models.CreditorMatchingRule) (models.Debt, error)
	ListDebts(ctx context.Context) ([]models.Debt, error)
	GetDebt(ctx context.Context, id uuid.UUID) (models.Debt, error)
	UpdateDebtBalance(ctx context.Context, id uuid.UUID, balance int64, status models.DebtStatus) error
	ListRules(ctx context.Context) ([]models.CreditorMatchingRule, error)
	ListMatches(ctx context.Context, debtID *uuid.UUID, status *models.MatchStatus) ([]models.DebtTransactionMatch, error)
	GetMatch(ctx context.Context, id uuid.UUID) (models.DebtTransactionMatch, error)
	CreateMatch(ctx context.Context, match models.DebtTransactionMatch) (models.DebtTransactionMatch, error)
	UpdateMatch(ctx context.Context, id uuid.UUID, status models.MatchStatus, matchType models.MatchType) (models.DebtTransactionMatch, error)
	AddPayment(ctx context.Context, payment models.DebtPaymentHistory) (models.DebtPaymentHistory, error)
	ListPayments(ctx context.Context, debtID uuid.UUID) ([]models.DebtPaymentHistory, error)
}

// TransactionReader читает сохраненные транзакции.
type TransactionReader interface {
	ListOutgoing(ctx context.Context, since time.Time) ([]models.Transaction, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Transaction, error)
}

type ProcessResult struct {
	Scanned   int `json:"scanned"`
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
	Updated   int `json:"balances_updated"`
}

type ManualPayment struct {
	Amount      int64
	PaymentDate time.Time
	PaymentType models.PaymentType
}

// Service ведет сопоставление платежей и остатки долгов.
type Service struct {
	store        Store
	transactions TransactionReader
	matcher      *Matcher
	logger       *slog.Logger
	now          func() time.Time
}

// NewService создает сервис долгов.
func NewService(store Store, transactions TransactionReader, matcher *Matcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		transactions: transactions,
		matcher:      matcher,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateDebt сохраняет долг вместе с правилами по умолчанию.
func (s *Service) CreateDebt(ctx context.Context, d models.Debt) (models.Debt, []models.CreditorMatchingRule, error) {
	d.ID = uuid.New()
	if d.Status == "" {
		d.Status = models.DebtStatusActive
	}
	if d.CurrentBalance == 0 {
		d.CurrentBalance = d.OriginalAmount
	}

	rules := CreateDefaultRules(d)
	created, err := s.store.CreateDebt(ctx, d, rules)
	if err != nil {
		return models.Debt{}, nil, err
	}

	return created, rules, nil
}

// ProcessTransactions прогоняет исходящие транзакции через правила.
// Уверенные совпадения подтверждаются с записью в историю, остальные ждут ревью.
func (s *Service) ProcessTransactions(ctx context.Context, since time.Time) (ProcessResult, error) {
	debts, err := s.store.ListDebts(ctx)
	if err != nil {
		return ProcessResult{}, err
	}

	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return ProcessResult{}, err
	}

	transactions, err := s.transactions.ListOutgoing(ctx, since)
	if err != nil {
		return ProcessResult{}, err
	}

	existing, err := s.store.ListMatches(ctx, nil, nil)
	if err != nil {
		return ProcessResult{}, err
	}

	type matchKey struct {
		debtID        uuid.UUID
		transactionID string
	}
	seen := make(map[matchKey]struct{}, len(existing))
	confirmedTxns := make(map[string]struct{})
	for _, match := range existing {
		seen[matchKey{match.DebtID, match.TransactionID}] = struct{}{}
		if match.MatchStatus == models.MatchStatusConfirmed {
			confirmedTxns[match.TransactionID] = struct{}{}
		}
	}

	byID := make(map[uuid.UUID]*models.Debt, len(debts))
	for i := range debts {
		byID[debts[i].ID] = &debts[i]
	}

	result := ProcessResult{Scanned: len(transactions)}
	for _, txn := range transactions {
		if _, done := confirmedTxns[txn.ID]; done {
			continue
		}

		matches := s.matcher.FindMatches(txn, debts, rules)
		if len(matches) == 0 {
			continue
		}

		if top := matches[0]; top.Status == models.MatchStatusConfirmed {
			if _, ok := seen[matchKey{top.DebtID, txn.ID}]; ok {
				continue
			}
			if err := s.confirmAutomatic(ctx, byID[top.DebtID], txn, top); err != nil {
				return result, err
			}
			result.Confirmed++
			continue
		}

		for _, candidate := range matches {
			if _, ok := seen[matchKey{candidate.DebtID, txn.ID}]; ok {
				continue
			}
			if _, err := s.store.CreateMatch(ctx, newMatch(txn.ID, candidate, models.MatchStatusPending)); err != nil {
				return result, fmt.Errorf("create pending match: %w", err)
			}
			result.Pending++
		}
	}

	updated, err := s.SyncBalances(ctx)
	if err != nil {
		return result, err
	}
	result.Updated = updated

	s.logger.Info("debt matching finished", "scanned", result.Scanned, "confirmed", result.Confirmed, "pending", result.Pending)
	return result, nil
}

// ConfirmMatch подтверждает совпадение вручную и пишет платеж в историю.
// Транзакция, уже подтвержденная для любого долга, повторно не засчитывается.
func (s *Service) ConfirmMatch(ctx context.Context, id uuid.UUID) (models.DebtTransactionMatch, error) {
	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return models.DebtTransactionMatch{}, err
	}
	if match.MatchStatus == models.MatchStatusConfirmed {
		return match, nil
	}

	status := models.MatchStatusConfirmed
	confirmed, err := s.store.ListMatches(ctx, nil, &status)
	if err != nil {
		return models.DebtTransactionMatch{}, err
	}
	for _, other := range confirmed {
		if other.TransactionID == match.TransactionID {
			return models.DebtTransactionMatch{}, ErrMatchConflict
		}
	}

	d, err := s.store.GetDebt(ctx, match.DebtID)
	if err != nil {
		return models.DebtTransactionMatch{}, err
	}

	txns, err := s.transactions.GetByIDs(ctx, []string{match.TransactionID})
	if err != nil {
		return models.DebtTransactionMatch{}, err
	}

	updated, err := s.store.UpdateMatch(ctx, id, models.MatchStatusConfirmed, models.MatchTypeManual)
	if err != nil {
		return models.DebtTransactionMatch{}, err
	}

	stored := d
	if len(txns) > 0 {
		txn := txns[0]
		if _, err := s.recordPayment(ctx, &d, &txn.ID, txn.Amount, txn.Created, "", false); err != nil {
			return updated, err
		}
	}

	if _, err := s.syncDebt(ctx, stored); err != nil {
		return updated, err
	}

	return updated, nil
}

// RejectMatch отклоняет ожидающее совпадение.
func (s *Service) RejectMatch(ctx context.Context, id uuid.UUID) (models.DebtTransactionMatch, error) {
	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return models.DebtTransactionMatch{}, err
	}

	switch match.MatchStatus {
	case models.MatchStatusRejected:
		return match, nil
	case models.MatchStatusConfirmed:
		return models.DebtTransactionMatch{}, ErrMatchNotPending
	}

	return s.store.UpdateMatch(ctx, id, models.MatchStatusRejected, models.MatchTypeManual)
}

// AddManualPayment добавляет платеж, внесенный пользователем, и пересчитывает остаток.
func (s *Service) AddManualPayment(ctx context.Context, debtID uuid.UUID, payment ManualPayment) (models.DebtPaymentHistory, error) {
	if payment.Amount <= 0 {
		return models.DebtPaymentHistory{}, ErrInvalidPayment
	}

	d, err := s.store.GetDebt(ctx, debtID)
	if err != nil {
		return models.DebtPaymentHistory{}, err
	}

	date := payment.PaymentDate
	if date.IsZero() {
		date = s.now()
	}

	stored := d
	entry, err := s.recordPayment(ctx, &d, nil, payment.Amount, date, payment.PaymentType, false)
	if err != nil {
		return models.DebtPaymentHistory{}, err
	}

	if _, err := s.syncDebt(ctx, stored); err != nil {
		return entry, err
	}

	return entry, nil
}

// BalanceInfo пересчитывает остаток долга по данным хранилища.
func (s *Service) BalanceInfo(ctx context.Context, debtID uuid.UUID) (BalanceInfo, error) {
	d, err := s.store.GetDebt(ctx, debtID)
	if err != nil {
		return BalanceInfo{}, err
	}
	return s.balanceInfo(ctx, d)
}

// SyncBalances сверяет сохраненные остатки с пересчитанными и возвращает
// число обновленных долгов.
func (s *Service) SyncBalances(ctx context.Context) (int, error) {
	debts, err := s.store.ListDebts(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, d := range debts {
		changed, err := s.syncDebt(ctx, d)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}

	return updated, nil
}

func (s *Service) syncDebt(ctx context.Context, d models.Debt) (bool, error) {
	info, err := s.balanceInfo(ctx, d)
	if err != nil {
		return false, err
	}

	status := d.Status
	switch {
	case info.CurrentBalance == 0:
		status = models.DebtStatusPaidOff
	case d.Status == models.DebtStatusPaidOff:
		status = models.DebtStatusActive
	}

	if abs(info.CurrentBalance-d.CurrentBalance) <= balanceTolerance && status == d.Status {
		return false, nil
	}

	if err := s.store.UpdateDebtBalance(ctx, d.ID, info.CurrentBalance, status); err != nil {
		return false, fmt.Errorf("update debt balance: %w", err)
	}

	s.logger.Info("debt balance updated", "debt_id", d.ID, "balance", info.CurrentBalance, "status", status)
	return true, nil
}

func (s *Service) balanceInfo(ctx context.Context, d models.Debt) (BalanceInfo, error) {
	status := models.MatchStatusConfirmed
	matches, err := s.store.ListMatches(ctx, &d.ID, &status)
	if err != nil {
		return BalanceInfo{}, err
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.TransactionID)
	}

	var transactions []models.Transaction
	if len(ids) > 0 {
		transactions, err = s.transactions.GetByIDs(ctx, ids)
		if err != nil {
			return BalanceInfo{}, err
		}
	}

	history, err := s.store.ListPayments(ctx, d.ID)
	if err != nil {
		return BalanceInfo{}, err
	}

	return CalculateActualBalance(d, matches, transactions, history), nil
}

func (s *Service) confirmAutomatic(ctx context.Context, d *models.Debt, txn models.Transaction, result MatchResult) error {
	if d == nil {
		return nil
	}

	if _, err := s.store.CreateMatch(ctx, newMatch(txn.ID, result, models.MatchStatusConfirmed)); err != nil {
		return fmt.Errorf("create confirmed match: %w", err)
	}

	_, err := s.recordPayment(ctx, d, &txn.ID, txn.Amount, txn.Created, "", true)
	return err
}

// recordPayment добавляет запись в историю и сдвигает d.CurrentBalance.
func (s *Service) recordPayment(ctx context.Context, d *models.Debt, transactionID *string, amount int64, date time.Time, paymentType models.PaymentType, automatic bool) (models.DebtPaymentHistory, error) {
	amount = abs(amount)
	change := CalculateNewBalance(*d, amount, d.InterestRate)
	if paymentType == "" {
		paymentType = classifyPayment(*d, amount, change)
	}

	entry, err := s.store.AddPayment(ctx, models.DebtPaymentHistory{
		ID:              uuid.New(),
		DebtID:          d.ID,
		TransactionID:   transactionID,
		Amount:          amount,
		PaymentDate:     date,
		PrincipalAmount: change.PrincipalPaid,
		InterestAmount:  change.InterestPaid,
		BalanceAfter:    change.NewBalance,
		PaymentType:     paymentType,
		IsAutomatic:     automatic,
	})
	if err != nil {
		return models.DebtPaymentHistory{}, fmt.Errorf("add payment history: %w", err)
	}

	d.CurrentBalance = change.NewBalance
	return entry, nil
}

func classifyPayment(d models.Debt, amount int64, change BalanceChange) models.PaymentType {
	switch {
	case change.NewBalance == 0:
		return models.PaymentTypeFinal
	case d.MinimumPayment == nil:
		return models.PaymentTypeRegular
	case amount == *d.MinimumPayment:
		return models.PaymentTypeMinimum
	case amount > *d.MinimumPayment:
		return models.PaymentTypeExtra
	default:
		return models.PaymentTypeRegular
	}
}

func newMatch(transactionID string, result MatchResult, status models.MatchStatus) models.DebtTransactionMatch {
	ruleID := result.RuleID
	return models.DebtTransactionMatch{
		ID:              uuid.New(),
		TransactionID:   transactionID,
		DebtID:          result.DebtID,
		RuleID:          &ruleID,
		MatchConfidence: result.Confidence,
		MatchStatus:     status,
		MatchType:       models.MatchTypeAutomatic,
	}
}
