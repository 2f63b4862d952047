package debt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"example.com/finance-dashboard/internal/models"
)

func TestCalculateNewBalanceWithoutInterest(t *testing.T) {
	d := models.Debt{CurrentBalance: 100000}

	got := CalculateNewBalance(d, -20000, nil)
	assert.Equal(t, BalanceChange{NewBalance: 80000, PrincipalPaid: 20000}, got)

	got = CalculateNewBalance(d, 150000, nil)
	assert.Equal(t, int64(0), got.NewBalance)
	assert.Equal(t, int64(100000), got.PrincipalPaid)
}

func TestCalculateNewBalanceWithInterest(t *testing.T) {
	rate := 12.0
	d := models.Debt{CurrentBalance: 100000}

	// 12% годовых от 1000.00 дают 10.00 процентов в месяц.
	got := CalculateNewBalance(d, 5000, &rate)
	assert.Equal(t, BalanceChange{NewBalance: 96000, PrincipalPaid: 4000, InterestPaid: 1000}, got)

	got = CalculateNewBalance(d, 800, &rate)
	assert.Equal(t, BalanceChange{NewBalance: 100000, InterestPaid: 800}, got)
}

func TestCalculateActualBalanceScenario(t *testing.T) {
	d := models.Debt{ID: uuid.New(), OriginalAmount: 100000, Status: models.DebtStatusActive}
	first := models.Transaction{ID: "tx_1", Amount: -20000}
	matches := []models.DebtTransactionMatch{
		{DebtID: d.ID, TransactionID: "tx_1", MatchStatus: models.MatchStatusConfirmed, MatchType: models.MatchTypeAutomatic},
		{DebtID: d.ID, TransactionID: "tx_x", MatchStatus: models.MatchStatusPending, MatchType: models.MatchTypeAutomatic},
	}

	info := CalculateActualBalance(d, matches, []models.Transaction{first}, nil)
	assert.Equal(t, int64(80000), info.CurrentBalance)
	assert.Equal(t, 20.0, info.ProgressPercentage)
	assert.False(t, info.IsFullyPaid)
	assert.Equal(t, int64(20000), info.AutomaticPaid)

	second := models.Transaction{ID: "tx_2", Amount: -80000}
	matches = append(matches, models.DebtTransactionMatch{DebtID: d.ID, TransactionID: "tx_2", MatchStatus: models.MatchStatusConfirmed, MatchType: models.MatchTypeManual})

	info = CalculateActualBalance(d, matches, []models.Transaction{first, second}, nil)
	assert.Equal(t, int64(0), info.CurrentBalance)
	assert.Equal(t, 100.0, info.ProgressPercentage)
	assert.True(t, info.IsFullyPaid)
	assert.Equal(t, int64(80000), info.ManualPaid)
}

func TestCalculateActualBalanceSkipsRepresentedHistory(t *testing.T) {
	d := models.Debt{ID: uuid.New(), OriginalAmount: 50000}
	txID := "tx_1"
	matches := []models.DebtTransactionMatch{{DebtID: d.ID, TransactionID: txID, MatchStatus: models.MatchStatusConfirmed, MatchType: models.MatchTypeAutomatic}}
	history := []models.DebtPaymentHistory{
		{DebtID: d.ID, TransactionID: &txID, Amount: 10000, IsAutomatic: true, PaymentDate: time.Now()},
		{DebtID: d.ID, Amount: 5000, PaymentDate: time.Now()},
		{DebtID: uuid.New(), Amount: 7000, PaymentDate: time.Now()},
	}

	info := CalculateActualBalance(d, matches, []models.Transaction{{ID: txID, Amount: -10000}}, history)
	assert.Equal(t, int64(15000), info.TotalPaid)
	assert.Equal(t, int64(35000), info.CurrentBalance)
	assert.Equal(t, 2, info.PaymentCount)
	assert.Equal(t, int64(10000), info.AutomaticPaid)
	assert.Equal(t, int64(5000), info.ManualPaid)
}

func TestCalculateActualBalanceCapsProgress(t *testing.T) {
	d := models.Debt{ID: uuid.New(), OriginalAmount: 1000}
	history := []models.DebtPaymentHistory{{DebtID: d.ID, Amount: 2500}}

	info := CalculateActualBalance(d, nil, nil, history)
	assert.Equal(t, int64(0), info.CurrentBalance)
	assert.Equal(t, 100.0, info.ProgressPercentage)
}
