package models

import (
	"time"

	"github.com/google/uuid"
)

type AccountType string

type CycleType string

type DebtStatus string

type RuleType string

type MatchStatus string

type MatchType string

type PaymentType string

const (
	AccountTypeRetail   AccountType = "retail"
	AccountTypeJoint    AccountType = "joint"
	AccountTypeBusiness AccountType = "business"
	AccountTypeLoan     AccountType = "loan"
	AccountTypeFlex     AccountType = "flex"
	AccountTypeOther    AccountType = "other"

	CycleSpecificDate   CycleType = "specific_date"
	CycleLastWorkingDay CycleType = "last_working_day"
	CycleClosestWorkday CycleType = "closest_workday"

	DebtStatusActive   DebtStatus = "active"
	DebtStatusPaidOff  DebtStatus = "paid_off"
	DebtStatusDeferred DebtStatus = "deferred"

	RuleTypeExact   RuleType = "exact"
	RuleTypeFuzzy   RuleType = "fuzzy"
	RuleTypePattern RuleType = "pattern"
	RuleTypeAccount RuleType = "account"

	MatchStatusPending   MatchStatus = "pending"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusRejected  MatchStatus = "rejected"

	MatchTypeAutomatic MatchType = "automatic"
	MatchTypeManual    MatchType = "manual"

	PaymentTypeRegular PaymentType = "regular"
	PaymentTypeExtra   PaymentType = "extra"
	PaymentTypeMinimum PaymentType = "minimum"
	PaymentTypeFinal   PaymentType = "final"
)

// Поля транзакции, по которым работают правила сопоставления с долгами.
const (
	FieldMerchantName     = "merchant_name"
	FieldCounterpartyName = "counterparty_name"
	FieldDescription      = "description"
	FieldAccountNumber    = "account_number"
)

// OtherCategory собирает пустые и скрытые категории.
const OtherCategory = "other"

type Merchant struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Counterparty struct {
	Name          string `json:"name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	SortCode      string `json:"sort_code,omitempty"`
}

type Transaction struct {
	ID                string        `json:"id"`
	AccountID         string        `json:"account_id"`
	Amount            int64         `json:"amount"`
	Currency          string        `json:"currency,omitempty"`
	Created           time.Time     `json:"created"`
	Settled           *time.Time    `json:"settled,omitempty"`
	Category          string        `json:"category"`
	Merchant          *Merchant     `json:"merchant,omitempty"`
	Counterparty      *Counterparty `json:"counterparty,omitempty"`
	IncludeInSpending bool          `json:"include_in_spending"`
	Description       string        `json:"description"`
}

// IsSettled сообщает, что транзакция уже прошла клиринг.
func (t Transaction) IsSettled() bool {
	return t.Settled != nil && !t.Settled.IsZero()
}

// IsSpending сообщает, что транзакция учитывается в расходах.
func (t Transaction) IsSpending() bool {
	return t.Amount < 0 && t.IncludeInSpending
}

type Account struct {
	ID          string      `json:"id"`
	Type        AccountType `json:"type"`
	Description string      `json:"description"`
	Owners      []string    `json:"owners"`
}

type MonthlyCycleConfig struct {
	Type CycleType `json:"type"`
	Date int       `json:"date,omitempty"`
}

// DefaultMonthlyCycleConfig возвращает календарный цикл с началом первого числа.
func DefaultMonthlyCycleConfig() MonthlyCycleConfig {
	return MonthlyCycleConfig{Type: CycleSpecificDate, Date: 1}
}

type MonthlyPeriod struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	DisplayName string    `json:"display_name"`
}

type Budget struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BudgetCategory struct {
	ID              uuid.UUID `json:"id"`
	BudgetID        uuid.UUID `json:"budget_id"`
	Category        string    `json:"category"`
	AllocatedAmount int64     `json:"allocated_amount"`
	SpentAmount     int64     `json:"spent_amount"`
	Color           string    `json:"color"`
}

type Debt struct {
	ID             uuid.UUID  `json:"id"`
	Creditor       string     `json:"creditor"`
	OriginalAmount int64      `json:"original_amount"`
	CurrentBalance int64      `json:"current_balance"`
	Status         DebtStatus `json:"status"`
	InterestRate   *float64   `json:"interest_rate,omitempty"`
	MinimumPayment *int64     `json:"minimum_payment,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type CreditorMatchingRule struct {
	ID                  uuid.UUID `json:"id"`
	DebtID              uuid.UUID `json:"debt_id"`
	Type                RuleType  `json:"type"`
	Field               string    `json:"field"`
	Value               string    `json:"value"`
	Pattern             *string   `json:"pattern,omitempty"`
	ConfidenceThreshold int       `json:"confidence_threshold"`
	Enabled             bool      `json:"enabled"`
}

type DebtTransactionMatch struct {
	ID              uuid.UUID   `json:"id"`
	TransactionID   string      `json:"transaction_id"`
	DebtID          uuid.UUID   `json:"debt_id"`
	RuleID          *uuid.UUID  `json:"rule_id,omitempty"`
	MatchConfidence int         `json:"match_confidence"`
	MatchStatus     MatchStatus `json:"match_status"`
	MatchType       MatchType   `json:"match_type"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type DebtPaymentHistory struct {
	ID              uuid.UUID   `json:"id"`
	DebtID          uuid.UUID   `json:"debt_id"`
	TransactionID   *string     `json:"transaction_id,omitempty"`
	Amount          int64       `json:"amount"`
	PaymentDate     time.Time   `json:"payment_date"`
	PrincipalAmount int64       `json:"principal_amount"`
	InterestAmount  int64       `json:"interest_amount"`
	BalanceAfter    int64       `json:"balance_after"`
	PaymentType     PaymentType `json:"payment_type"`
	IsAutomatic     bool        `json:"is_automatic"`
	CreatedAt       time.Time   `json:"created_at"`
}
