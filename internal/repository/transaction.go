package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-dashboard/internal/models"
)

const transactionColumns = `id, account_id, amount, currency, created, settled, category, merchant, counterparty, include_in_spending, description`

type TransactionRepository struct {
	db *pgxpool.Pool
}

type TransactionFilter struct {
	Start     time.Time
	End       time.Time
	AccountID string
}

// NewTransactionRepository создает репозиторий транзакций.
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// BulkUpsert сохраняет транзакции по идентификатору, не теряя отметку клиринга.
func (r *TransactionRepository) BulkUpsert(ctx context.Context, txns []models.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, txn := range txns {
		batch.Queue(
			`INSERT INTO transactions (`+transactionColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (id) DO UPDATE
			 SET account_id = EXCLUDED.account_id,
			     amount = EXCLUDED.amount,
			     currency = EXCLUDED.currency,
			     created = EXCLUDED.created,
			     settled = COALESCE(EXCLUDED.settled, transactions.settled),
			     category = EXCLUDED.category,
			     merchant = EXCLUDED.merchant,
			     counterparty = EXCLUDED.counterparty,
			     include_in_spending = EXCLUDED.include_in_spending,
			     description = EXCLUDED.description`,
			txn.ID, txn.AccountID, txn.Amount, txn.Currency, txn.Created, txn.Settled,
			txn.Category, txn.Merchant, txn.Counterparty, txn.IncludeInSpending, txn.Description,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	saved := 0
	for _, txn := range txns {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return saved, fmt.Errorf("upsert transaction %s: %w", txn.ID, err)
		}
		saved += int(tag.RowsAffected())
	}

	if err := results.Close(); err != nil {
		return saved, err
	}

	return saved, nil
}

// Latest возвращает самую свежую сохраненную транзакцию счета.
func (r *TransactionRepository) Latest(ctx context.Context, accountID string) (models.Transaction, bool, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE account_id = $1
		 ORDER BY created DESC, id DESC
		 LIMIT 1`,
		accountID,
	)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Transaction{}, false, nil
		}
		return models.Transaction{}, false, err
	}

	return txn, true, nil
}

// List возвращает транзакции за интервал, при необходимости только по одному счету.
func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var accountID *string
	if filter.AccountID != "" {
		accountID = &filter.AccountID
	}

	return r.query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE created >= $1 AND created <= $2
		   AND ($3::text IS NULL OR account_id = $3)
		 ORDER BY created DESC, id`,
		filter.Start, filter.End, accountID,
	)
}

// ListOutgoing возвращает исходящие транзакции начиная с момента since.
func (r *TransactionRepository) ListOutgoing(ctx context.Context, since time.Time) ([]models.Transaction, error) {
	return r.query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE amount < 0 AND created >= $1
		 ORDER BY created, id`,
		since,
	)
}

// GetByIDs возвращает транзакции по списку идентификаторов.
func (r *TransactionRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Transaction, error) {
	if len(ids) == 0 {
		return []models.Transaction{}, nil
	}

	return r.query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE id = ANY($1)`,
		ids,
	)
}

func (r *TransactionRepository) query(ctx context.Context, sql string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return txns, nil
}

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var txn models.Transaction

	err := row.Scan(
		&txn.ID, &txn.AccountID, &txn.Amount, &txn.Currency, &txn.Created, &txn.Settled,
		&txn.Category, &txn.Merchant, &txn.Counterparty, &txn.IncludeInSpending, &txn.Description,
	)
	if err != nil {
		return txn, err
	}

	txn.Created = txn.Created.UTC()
	if txn.Settled != nil {
		settled := txn.Settled.UTC()
		txn.Settled = &settled
	}

	return txn, nil
}
