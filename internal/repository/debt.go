package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-dashboard/internal/models"
)

const (
	debtColumns    = `id, creditor, original_amount, current_balance, status, interest_rate, minimum_payment, created_at, updated_at`
	ruleColumns    = `id, debt_id, type, field, value, pattern, confidence_threshold, enabled`
	matchColumns   = `id, transaction_id, debt_id, rule_id, match_confidence, match_status, match_type, created_at, updated_at`
	paymentColumns = `id, debt_id, transaction_id, amount, payment_date, principal_amount, interest_amount, balance_after, payment_type, is_automatic, created_at`
)

type DebtRepository struct {
	db *pgxpool.Pool
}

// NewDebtRepository создает репозиторий долгов.
func NewDebtRepository(db *pgxpool.Pool) *DebtRepository {
	return &DebtRepository{db: db}
}

// CreateDebt сохраняет долг и его правила в одной транзакции.
func (r *DebtRepository) CreateDebt(ctx context.Context, d models.Debt, rules []models.CreditorMatchingRule) (models.Debt, error) {
	var created models.Debt

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return created, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	created, err = scanDebt(tx.QueryRow(ctx,
		`INSERT INTO debts (id, creditor, original_amount, current_balance, status, interest_rate, minimum_payment)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+debtColumns,
		d.ID, d.Creditor, d.OriginalAmount, d.CurrentBalance, d.Status, d.InterestRate, d.MinimumPayment,
	))
	if err != nil {
		return created, mapError(err)
	}

	for _, rule := range rules {
		if err := insertRule(ctx, tx, rule); err != nil {
			return created, mapError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return created, err
	}

	return created, nil
}

// ListDebts возвращает все долги.
func (r *DebtRepository) ListDebts(ctx context.Context) ([]models.Debt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+debtColumns+`
		 FROM debts
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	debts := []models.Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return debts, nil
}

// GetDebt возвращает долг по идентификатору.
func (r *DebtRepository) GetDebt(ctx context.Context, id uuid.UUID) (models.Debt, error) {
	d, err := scanDebt(r.db.QueryRow(ctx,
		`SELECT `+debtColumns+`
		 FROM debts
		 WHERE id = $1`,
		id,
	))
	if err != nil {
		return d, mapError(err)
	}

	return d, nil
}

// UpdateDebtBalance обновляет остаток и статус долга.
func (r *DebtRepository) UpdateDebtBalance(ctx context.Context, id uuid.UUID, balance int64, status models.DebtStatus) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE debts
		 SET current_balance = $2, status = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, balance, status,
	)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteDebt удаляет долг вместе с правилами, совпадениями и историей.
func (r *DebtRepository) DeleteDebt(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM debts WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListRules возвращает правила всех долгов.
func (r *DebtRepository) ListRules(ctx context.Context) ([]models.CreditorMatchingRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+`
		 FROM creditor_matching_rules
		 ORDER BY created_at`,
	)
}

// ListRulesForDebt возвращает правила одного долга.
func (r *DebtRepository) ListRulesForDebt(ctx context.Context, debtID uuid.UUID) ([]models.CreditorMatchingRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+`
		 FROM creditor_matching_rules
		 WHERE debt_id = $1
		 ORDER BY created_at`,
		debtID,
	)
}

// CreateRule добавляет правило сопоставления.
func (r *DebtRepository) CreateRule(ctx context.Context, rule models.CreditorMatchingRule) (models.CreditorMatchingRule, error) {
	if err := insertRule(ctx, r.db, rule); err != nil {
		return models.CreditorMatchingRule{}, mapError(err)
	}
	return rule, nil
}

// ListMatches возвращает совпадения с необязательными фильтрами по долгу и статусу.
func (r *DebtRepository) ListMatches(ctx context.Context, debtID *uuid.UUID, status *models.MatchStatus) ([]models.DebtTransactionMatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM debt_transaction_matches
		 WHERE ($1::uuid IS NULL OR debt_id = $1)
		   AND ($2::text IS NULL OR match_status = $2)
		 ORDER BY created_at DESC`,
		debtID, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []models.DebtTransactionMatch{}
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return matches, nil
}

// GetMatch возвращает совпадение по идентификатору.
func (r *DebtRepository) GetMatch(ctx context.Context, id uuid.UUID) (models.DebtTransactionMatch, error) {
	match, err := scanMatch(r.db.QueryRow(ctx,
		`SELECT `+matchColumns+`
		 FROM debt_transaction_matches
		 WHERE id = $1`,
		id,
	))
	if err != nil {
		return match, mapError(err)
	}

	return match, nil
}

// CreateMatch сохраняет совпадение.
func (r *DebtRepository) CreateMatch(ctx context.Context, match models.DebtTransactionMatch) (models.DebtTransactionMatch, error) {
	created, err := scanMatch(r.db.QueryRow(ctx,
		`INSERT INTO debt_transaction_matches (id, transaction_id, debt_id, rule_id, match_confidence, match_status, match_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+matchColumns,
		match.ID, match.TransactionID, match.DebtID, match.RuleID, match.MatchConfidence, match.MatchStatus, match.MatchType,
	))
	if err != nil {
		return created, mapError(err)
	}

	return created, nil
}

// UpdateMatch меняет статус и тип совпадения.
func (r *DebtRepository) UpdateMatch(ctx context.Context, id uuid.UUID, status models.MatchStatus, matchType models.MatchType) (models.DebtTransactionMatch, error) {
	match, err := scanMatch(r.db.QueryRow(ctx,
		`UPDATE debt_transaction_matches
		 SET match_status = $2, match_type = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+matchColumns,
		id, status, matchType,
	))
	if err != nil {
		return match, mapError(err)
	}

	return match, nil
}

// AddPayment добавляет запись в историю платежей.
func (r *DebtRepository) AddPayment(ctx context.Context, payment models.DebtPaymentHistory) (models.DebtPaymentHistory, error) {
	created, err := scanPayment(r.db.QueryRow(ctx,
		`INSERT INTO debt_payment_history (id, debt_id, transaction_id, amount, payment_date, principal_amount, interest_amount, balance_after, payment_type, is_automatic)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+paymentColumns,
		payment.ID, payment.DebtID, payment.TransactionID, payment.Amount, payment.PaymentDate,
		payment.PrincipalAmount, payment.InterestAmount, payment.BalanceAfter, payment.PaymentType, payment.IsAutomatic,
	))
	if err != nil {
		return created, mapError(err)
	}

	return created, nil
}

// ListPayments возвращает историю платежей долга.
func (r *DebtRepository) ListPayments(ctx context.Context, debtID uuid.UUID) ([]models.DebtPaymentHistory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM debt_payment_history
		 WHERE debt_id = $1
		 ORDER BY payment_date, created_at`,
		debtID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.DebtPaymentHistory{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *DebtRepository) queryRules(ctx context.Context, sql string, args ...any) ([]models.CreditorMatchingRule, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.CreditorMatchingRule{}
	for rows.Next() {
		var rule models.CreditorMatchingRule
		err := rows.Scan(&rule.ID, &rule.DebtID, &rule.Type, &rule.Field, &rule.Value, &rule.Pattern, &rule.ConfidenceThreshold, &rule.Enabled)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRule(ctx context.Context, db execer, rule models.CreditorMatchingRule) error {
	_, err := db.Exec(ctx,
		`INSERT INTO creditor_matching_rules (`+ruleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rule.ID, rule.DebtID, rule.Type, rule.Field, rule.Value, rule.Pattern, rule.ConfidenceThreshold, rule.Enabled,
	)
	return err
}

func scanDebt(row pgx.Row) (models.Debt, error) {
	var d models.Debt
	err := row.Scan(&d.ID, &d.Creditor, &d.OriginalAmount, &d.CurrentBalance, &d.Status, &d.InterestRate, &d.MinimumPayment, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func scanMatch(row pgx.Row) (models.DebtTransactionMatch, error) {
	var m models.DebtTransactionMatch
	err := row.Scan(&m.ID, &m.TransactionID, &m.DebtID, &m.RuleID, &m.MatchConfidence, &m.MatchStatus, &m.MatchType, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func scanPayment(row pgx.Row) (models.DebtPaymentHistory, error) {
	var p models.DebtPaymentHistory
	err := row.Scan(&p.ID, &p.DebtID, &p.TransactionID, &p.Amount, &p.PaymentDate, &p.PrincipalAmount, &p.InterestAmount, &p.BalanceAfter, &p.PaymentType, &p.IsAutomatic, &p.CreatedAt)
	return p, err
}
