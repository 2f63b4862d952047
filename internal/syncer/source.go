package syncer

//go:generate mockgen -source=source.go -destination=source_mock.go -package=syncer

import (
	"context"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/remote"
)

// Source отдает счета и страницы транзакций удаленного API.
type Source interface {
	ListTransactions(ctx context.Context, query remote.TransactionQuery) ([]models.Transaction, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// TransactionStore хранит транзакции с upsert по идентификатору.
type TransactionStore interface {
	BulkUpsert(ctx context.Context, transactions []models.Transaction) (int, error)
	Latest(ctx context.Context, accountID string) (models.Transaction, bool, error)
}

// AccountStore хранит счета, полученные при синхронизации.
type AccountStore interface {
	UpsertAccounts(ctx context.Context, accounts []models.Account) error
}

// TokenHolder принимает новый bearer-токен банковского API.
type TokenHolder interface {
	SetAccessToken(token string)
}
