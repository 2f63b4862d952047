// Package debt сопоставляет исходящие платежи с долгами и пересчитывает остатки.
package debt

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"example.com/finance-dashboard/internal/models"
)

type MatchConfig struct {
	AutoConfirmThreshold int
	ReviewThreshold      int
	MaxFuzzyDistance     int
}

// DefaultMatchConfig возвращает пороги сопоставления по умолчанию.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		AutoConfirmThreshold: 90,
		ReviewThreshold:      70,
		MaxFuzzyDistance:     3,
	}
}

type MatchResult struct {
	DebtID     uuid.UUID          `json:"debt_id"`
	RuleID     uuid.UUID          `json:"rule_id"`
	RuleType   models.RuleType    `json:"rule_type"`
	Confidence int                `json:"confidence"`
	Status     models.MatchStatus `json:"status"`
}

// Matcher оценивает транзакции по правилам кредиторов.
type Matcher struct {
	cfg        MatchConfig
	strategies map[models.RuleType]MatchStrategy
}

// NewMatcher создает сопоставитель со стандартными стратегиями.
func NewMatcher(cfg MatchConfig, logger *slog.Logger) *Matcher {
	return &Matcher{
		cfg: cfg,
		strategies: map[models.RuleType]MatchStrategy{
			models.RuleTypeExact:   ExactStrategy{},
			models.RuleTypeFuzzy:   FuzzyStrategy{MaxDistance: cfg.MaxFuzzyDistance},
			models.RuleTypePattern: NewPatternStrategy(logger),
			models.RuleTypeAccount: AccountStrategy{},
		},
	}
}

// Use заменяет стратегию для типа правила.
func (m *Matcher) Use(ruleType models.RuleType, strategy MatchStrategy) {
	m.strategies[ruleType] = strategy
}

// FindMatches возвращает лучшие совпадения по каждому активному долгу,
// отсортированные по убыванию уверенности. Результаты ниже порога правила
// или порога ревью отбрасываются.
func (m *Matcher) FindMatches(txn models.Transaction, debts []models.Debt, rules []models.CreditorMatchingRule) []MatchResult {
	if txn.Amount >= 0 {
		return nil
	}

	active := make(map[uuid.UUID]struct{}, len(debts))
	for _, d := range debts {
		if d.Status == models.DebtStatusActive {
			active[d.ID] = struct{}{}
		}
	}

	best := make(map[uuid.UUID]MatchResult)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if _, ok := active[rule.DebtID]; !ok {
			continue
		}

		strategy, ok := m.strategies[rule.Type]
		if !ok {
			continue
		}

		value := FieldValue(txn, rule.Field)
		if strings.TrimSpace(value) == "" {
			continue
		}

		score := strategy.Score(rule, value)
		if score < rule.ConfidenceThreshold || score < m.cfg.ReviewThreshold {
			continue
		}

		if current, seen := best[rule.DebtID]; seen && current.Confidence >= score {
			continue
		}
		best[rule.DebtID] = MatchResult{
			DebtID:     rule.DebtID,
			RuleID:     rule.ID,
			RuleType:   rule.Type,
			Confidence: score,
			Status:     m.statusFor(score),
		}
	}

	results := make([]MatchResult, 0, len(best))
	for _, result := range best {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].DebtID.String() < results[j].DebtID.String()
	})

	return results
}

func (m *Matcher) statusFor(score int) models.MatchStatus {
	if score >= m.cfg.AutoConfirmThreshold {
		return models.MatchStatusConfirmed
	}
	return models.MatchStatusPending
}

// FieldValue достает из транзакции поле, на которое ссылается правило.
func FieldValue(txn models.Transaction, field string) string {
	switch field {
	case models.FieldMerchantName:
		if txn.Merchant != nil {
			return txn.Merchant.Name
		}
	case models.FieldCounterpartyName:
		if txn.Counterparty != nil {
			return txn.Counterparty.Name
		}
	case models.FieldAccountNumber:
		if txn.Counterparty != nil {
			return txn.Counterparty.AccountNumber
		}
	case models.FieldDescription:
		return txn.Description
	}
	return ""
}
