package debt

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"example.com/finance-dashboard/internal/models"
)

const (
	defaultExactThreshold   = 85
	defaultFuzzyThreshold   = 75
	defaultPatternThreshold = 70
)

// Шаблоны платежей по кредитным картам по ключевому слову эмитента.
var issuerPatterns = []struct {
	keyword string
	pattern string
}{
	{keyword: "amex", pattern: `(amex|american\s+express)`},
	{keyword: "american express", pattern: `(amex|american\s+express)`},
	{keyword: "barclaycard", pattern: `barclay\s*card`},
	{keyword: "capital one", pattern: `capital\s*one`},
	{keyword: "mbna", pattern: `mbna`},
	{keyword: "vanquis", pattern: `vanquis`},
	{keyword: "aqua", pattern: `aqua\s*(card)?`},
	{keyword: "tesco bank", pattern: `tesco\s*(bank|credit\s*card)`},
	{keyword: "virgin money", pattern: `virgin\s*money`},
}

// CreateDefaultRules создает стартовые правила по имени кредитора: точное,
// нечеткое и при необходимости шаблонное.
func CreateDefaultRules(d models.Debt) []models.CreditorMatchingRule {
	creditor := strings.TrimSpace(d.Creditor)
	if creditor == "" {
		return nil
	}

	rules := []models.CreditorMatchingRule{
		newRule(d.ID, models.RuleTypeExact, models.FieldMerchantName, creditor, nil, defaultExactThreshold),
		newRule(d.ID, models.RuleTypeFuzzy, models.FieldCounterpartyName, creditor, nil, defaultFuzzyThreshold),
	}

	if pattern, ok := creditorPattern(creditor); ok {
		rules = append(rules, newRule(d.ID, models.RuleTypePattern, models.FieldDescription, creditor, &pattern, defaultPatternThreshold))
	}

	return rules
}

func creditorPattern(creditor string) (string, bool) {
	lower := strings.ToLower(creditor)
	for _, issuer := range issuerPatterns {
		if strings.Contains(lower, issuer.keyword) {
			return issuer.pattern + `.*(payment|pymt|card)?`, true
		}
	}

	words := strings.Fields(lower)
	if len(words) < 2 {
		return "", false
	}

	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = regexp.QuoteMeta(word)
	}
	return strings.Join(quoted, `\W*`), true
}

func newRule(debtID uuid.UUID, ruleType models.RuleType, field, value string, pattern *string, threshold int) models.CreditorMatchingRule {
	return models.CreditorMatchingRule{
		ID:                  uuid.New(),
		DebtID:              debtID,
		Type:                ruleType,
		Field:               field,
		Value:               value,
		Pattern:             pattern,
		ConfidenceThreshold: threshold,
		Enabled:             true,
	}
}
