package debt

import (
	"github.com/shopspring/decimal"

	"example.com/finance-dashboard/internal/models"
)

type BalanceChange struct {
	NewBalance    int64 `json:"new_balance"`
	PrincipalPaid int64 `json:"principal_paid"`
	InterestPaid  int64 `json:"interest_paid"`
}

type BalanceInfo struct {
	DebtID             string  `json:"debt_id"`
	OriginalAmount     int64   `json:"original_amount"`
	CurrentBalance     int64   `json:"current_balance"`
	TotalPaid          int64   `json:"total_paid"`
	AutomaticPaid      int64   `json:"automatic_paid"`
	ManualPaid         int64   `json:"manual_paid"`
	PaymentCount       int     `json:"payment_count"`
	ProgressPercentage float64 `json:"progress_percentage"`
	IsFullyPaid        bool    `json:"is_fully_paid"`
}

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// CalculateNewBalance делит платеж на проценты и основной долг. Платеж не
// больше месячных процентов целиком уходит в проценты.
func CalculateNewBalance(d models.Debt, payment int64, annualRate *float64) BalanceChange {
	payment = abs(payment)
	balance := d.CurrentBalance

	if annualRate == nil || *annualRate <= 0 {
		principal := min(payment, balance)
		return BalanceChange{NewBalance: max(balance-payment, 0), PrincipalPaid: max(principal, 0)}
	}

	interest := decimal.NewFromInt(balance).
		Mul(decimal.NewFromFloat(*annualRate)).
		Div(hundred).
		Div(monthsPerYear).
		Round(0).
		IntPart()

	if payment <= interest {
		return BalanceChange{NewBalance: balance, InterestPaid: payment}
	}

	principal := payment - interest
	return BalanceChange{
		NewBalance:    max(balance-principal, 0),
		PrincipalPaid: min(principal, balance),
		InterestPaid:  interest,
	}
}

// CalculateActualBalance пересчитывает остаток от исходной суммы по
// подтвержденным совпадениям и истории платежей. Записи истории, за которыми
// уже стоит подтвержденное совпадение, не учитываются второй раз.
func CalculateActualBalance(d models.Debt, matches []models.DebtTransactionMatch, transactions []models.Transaction, history []models.DebtPaymentHistory) BalanceInfo {
	byID := make(map[string]models.Transaction, len(transactions))
	for _, txn := range transactions {
		byID[txn.ID] = txn
	}

	info := BalanceInfo{DebtID: d.ID.String(), OriginalAmount: d.OriginalAmount}
	represented := make(map[string]struct{})

	for _, match := range matches {
		if match.DebtID != d.ID || match.MatchStatus != models.MatchStatusConfirmed {
			continue
		}
		if _, dup := represented[match.TransactionID]; dup {
			continue
		}
		txn, ok := byID[match.TransactionID]
		if !ok {
			continue
		}
		represented[match.TransactionID] = struct{}{}

		paid := abs(txn.Amount)
		info.TotalPaid += paid
		info.PaymentCount++
		if match.MatchType == models.MatchTypeAutomatic {
			info.AutomaticPaid += paid
		} else {
			info.ManualPaid += paid
		}
	}

	for _, entry := range history {
		if entry.DebtID != d.ID {
			continue
		}
		if entry.TransactionID != nil {
			if _, ok := represented[*entry.TransactionID]; ok {
				continue
			}
		}

		paid := abs(entry.Amount)
		info.TotalPaid += paid
		info.PaymentCount++
		if entry.IsAutomatic {
			info.AutomaticPaid += paid
		} else {
			info.ManualPaid += paid
		}
	}

	info.CurrentBalance = max(d.OriginalAmount-info.TotalPaid, 0)
	info.IsFullyPaid = info.CurrentBalance == 0

	if d.OriginalAmount > 0 {
		progress := decimal.NewFromInt(info.TotalPaid).Div(decimal.NewFromInt(d.OriginalAmount)).Mul(hundred)
		info.ProgressPercentage = min(progress.Round(2).InexactFloat64(), 100)
	}

	return info
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
