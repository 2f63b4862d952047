package remote

import (
	"strings"
	"time"

	"example.com/finance-dashboard/internal/models"
)

type TransactionQuery struct {
	AccountID     string
	Since         time.Time
	Before        time.Time
	StartingAfter string
	Limit         int
}

type transactionsResponse struct {
	Transactions []wireTransaction `json:"transactions"`
}

type accountsResponse struct {
	Accounts []wireAccount `json:"accounts"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireMerchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireCounterparty struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	SortCode      string `json:"sort_code"`
}

// API отдает settled пустой строкой, пока транзакция не прошла клиринг.
type wireTransaction struct {
	ID                string            `json:"id"`
	AccountID         string            `json:"account_id"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Created           time.Time         `json:"created"`
	Settled           string            `json:"settled"`
	Category          string            `json:"category"`
	Merchant          *wireMerchant     `json:"merchant"`
	Counterparty      *wireCounterparty `json:"counterparty"`
	IncludeInSpending bool              `json:"include_in_spending"`
	Description       string            `json:"description"`
}

type wireOwner struct {
	PreferredName string `json:"preferred_name"`
}

type wireAccount struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Owners      []wireOwner `json:"owners"`
}

func (w wireTransaction) toModel() models.Transaction {
	txn := models.Transaction{
		ID:                w.ID,
		AccountID:         w.AccountID,
		Amount:            w.Amount,
		Currency:          w.Currency,
		Created:           w.Created,
		Category:          w.Category,
		IncludeInSpending: w.IncludeInSpending,
		Description:       w.Description,
	}

	if settled := strings.TrimSpace(w.Settled); settled != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, settled); err == nil {
			txn.Settled = &parsed
		}
	}

	if w.Merchant != nil && (w.Merchant.ID != "" || w.Merchant.Name != "") {
		txn.Merchant = &models.Merchant{ID: w.Merchant.ID, Name: w.Merchant.Name}
	}

	if w.Counterparty != nil && (w.Counterparty.Name != "" || w.Counterparty.AccountNumber != "") {
		txn.Counterparty = &models.Counterparty{
			Name:          w.Counterparty.Name,
			AccountNumber: w.Counterparty.AccountNumber,
			SortCode:      w.Counterparty.SortCode,
		}
	}

	return txn
}

func (w wireAccount) toModel() models.Account {
	owners := make([]string, 0, len(w.Owners))
	for _, owner := range w.Owners {
		if name := strings.TrimSpace(owner.PreferredName); name != "" {
			owners = append(owners, name)
		}
	}

	return models.Account{
		ID:          w.ID,
		Type:        mapAccountType(w.Type),
		Description: w.Description,
		Owners:      owners,
	}
}

func mapAccountType(value string) models.AccountType {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "joint"):
		return models.AccountTypeJoint
	case strings.Contains(lower, "business"):
		return models.AccountTypeBusiness
	case strings.Contains(lower, "loan"):
		return models.AccountTypeLoan
	case strings.Contains(lower, "flex"):
		return models.AccountTypeFlex
	case strings.Contains(lower, "retail"):
		return models.AccountTypeRetail
	default:
		return models.AccountTypeOther
	}
}
