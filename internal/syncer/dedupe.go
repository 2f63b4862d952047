package syncer

import "example.com/finance-dashboard/internal/models"

// Dedupe схлопывает транзакции с одинаковым id. Остается первая копия,
// но проведенная копия заменяет ожидающую.
func Dedupe(transactions []models.Transaction) []models.Transaction {
	index := make(map[string]int, len(transactions))
	out := make([]models.Transaction, 0, len(transactions))

	for _, txn := range transactions {
		pos, seen := index[txn.ID]
		if !seen {
			index[txn.ID] = len(out)
			out = append(out, txn)
			continue
		}
		if !out[pos].IsSettled() && txn.IsSettled() {
			out[pos] = txn
		}
	}

	return out
}
