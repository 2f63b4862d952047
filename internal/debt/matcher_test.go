package debt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/finance-dashboard/internal/models"
)

func activeDebt(creditor string) models.Debt {
	return models.Debt{ID: uuid.New(), Creditor: creditor, OriginalAmount: 100000, CurrentBalance: 100000, Status: models.DebtStatusActive}
}

func rule(debtID uuid.UUID, ruleType models.RuleType, field, value string, threshold int) models.CreditorMatchingRule {
	return models.CreditorMatchingRule{ID: uuid.New(), DebtID: debtID, Type: ruleType, Field: field, Value: value, ConfidenceThreshold: threshold, Enabled: true}
}

func payment(merchant string) models.Transaction {
	return models.Transaction{ID: uuid.NewString(), Amount: -2500, Merchant: &models.Merchant{Name: merchant}}
}

func TestFindMatchesExactThresholdScenario(t *testing.T) {
	matcher := NewMatcher(DefaultMatchConfig(), nil)
	d := activeDebt("Tesco")
	rules := []models.CreditorMatchingRule{rule(d.ID, models.RuleTypeExact, models.FieldMerchantName, "Tesco", 85)}

	got := matcher.FindMatches(payment("Tesco"), []models.Debt{d}, rules)
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Confidence)
	assert.Equal(t, models.MatchStatusConfirmed, got[0].Status)

	assert.Empty(t, matcher.FindMatches(payment("ASDA"), []models.Debt{d}, rules))
}

func TestFindMatchesSkipsIncomingInactiveAndDisabled(t *testing.T) {
	matcher := NewMatcher(DefaultMatchConfig(), nil)
	d := activeDebt("Tesco")
	paid := activeDebt("Tesco")
	paid.Status = models.DebtStatusPaidOff

	enabled := rule(d.ID, models.RuleTypeExact, models.FieldMerchantName, "Tesco", 50)
	disabled := rule(d.ID, models.RuleTypeExact, models.FieldMerchantName, "Tesco", 50)
	disabled.Enabled = false

	incoming := payment("Tesco")
	incoming.Amount = 2500
	assert.Empty(t, matcher.FindMatches(incoming, []models.Debt{d}, []models.CreditorMatchingRule{enabled}))

	assert.Empty(t, matcher.FindMatches(payment("Tesco"), []models.Debt{d}, []models.CreditorMatchingRule{disabled}))

	onPaid := rule(paid.ID, models.RuleTypeExact, models.FieldMerchantName, "Tesco", 50)
	assert.Empty(t, matcher.FindMatches(payment("Tesco"), []models.Debt{paid}, []models.CreditorMatchingRule{onPaid}))
}

func TestFindMatchesBandsAndOrdering(t *testing.T) {
	matcher := NewMatcher(DefaultMatchConfig(), nil)
	strong := activeDebt("Barclaycard")
	weak := activeDebt("Barclays Loan")

	rules := []models.CreditorMatchingRule{
		rule(strong.ID, models.RuleTypeExact, models.FieldMerchantName, "Barclaycard", 70),
		rule(weak.ID, models.RuleTypeExact, models.FieldMerchantName, "Barclaycard Payments", 70),
	}

	got := matcher.FindMatches(payment("Barclaycard"), []models.Debt{weak, strong}, rules)
	require.Len(t, got, 2)
	assert.Equal(t, strong.ID, got[0].DebtID)
	assert.Equal(t, models.MatchStatusConfirmed, got[0].Status)
	assert.Equal(t, weak.ID, got[1].DebtID)
	assert.Equal(t, 85, got[1].Confidence)
	assert.Equal(t, models.MatchStatusPending, got[1].Status)
}

func TestFindMatchesKeepsBestRulePerDebt(t *testing.T) {
	matcher := NewMatcher(DefaultMatchConfig(), nil)
	d := activeDebt("Tesco")
	rules := []models.CreditorMatchingRule{
		rule(d.ID, models.RuleTypeExact, models.FieldMerchantName, "Tesco Stores", 70),
		rule(d.ID, models.RuleTypeExact, models.FieldMerchantName, "Tesco", 70),
	}

	got := matcher.FindMatches(payment("Tesco"), []models.Debt{d}, rules)
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Confidence)
	assert.Equal(t, rules[1].ID, got[0].RuleID)
}

func TestExactStrategy(t *testing.T) {
	s := ExactStrategy{}
	assert.Equal(t, 100, s.Score(models.CreditorMatchingRule{Value: "tesco"}, " TESCO "))
	assert.Equal(t, 85, s.Score(models.CreditorMatchingRule{Value: "Tesco"}, "Tesco Bank Card Payment"))
	assert.Equal(t, 0, s.Score(models.CreditorMatchingRule{Value: "Tesco"}, "ASDA"))
	assert.Equal(t, 0, s.Score(models.CreditorMatchingRule{Value: ""}, "ASDA"))
}

func TestFuzzyStrategy(t *testing.T) {
	s := FuzzyStrategy{MaxDistance: 3}
	assert.Equal(t, 100, s.Score(models.CreditorMatchingRule{Value: "Barclaycard"}, "barclaycard"))
	assert.Equal(t, 75, s.Score(models.CreditorMatchingRule{Value: "Barclaycard"}, "Barclaycrd"))
	assert.Equal(t, 100, s.Score(models.CreditorMatchingRule{Value: "Capital One"}, "DD CAPITAL ONE REF 123"))
	assert.Equal(t, 0, s.Score(models.CreditorMatchingRule{Value: "Barclaycard"}, "Sainsburys"))
}

func TestPatternStrategy(t *testing.T) {
	s := NewPatternStrategy(nil)
	pattern := `amex`
	full := `amex payment`

	assert.Equal(t, 100, s.Score(models.CreditorMatchingRule{Pattern: &full}, "AMEX PAYMENT"))
	assert.Equal(t, 80, s.Score(models.CreditorMatchingRule{Pattern: &pattern}, "AMEX PAYMENT"))
	assert.Equal(t, 0, s.Score(models.CreditorMatchingRule{Pattern: &pattern}, "VISA"))

	broken := `amex(`
	assert.Equal(t, 0, s.Score(models.CreditorMatchingRule{Pattern: &broken}, "amex("))
}

func TestAccountStrategy(t *testing.T) {
	s := AccountStrategy{}
	assert.Equal(t, 100, s.Score(models.CreditorMatchingRule{Value: "12-34-5678"}, "12345678"))
	assert.Equal(t, 80, s.Score(models.CreditorMatchingRule{Value: "99995678"}, "12345678"))
	assert.Equal(t, 0, s.Score(models.CreditorMatchingRule{Value: "99991111"}, "12345678"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("", ""))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "amex"))
}

func TestCreateDefaultRules(t *testing.T) {
	single := CreateDefaultRules(activeDebt("Klarna"))
	require.Len(t, single, 2)
	assert.Equal(t, models.RuleTypeExact, single[0].Type)
	assert.Equal(t, 85, single[0].ConfidenceThreshold)
	assert.Equal(t, models.RuleTypeFuzzy, single[1].Type)

	card := CreateDefaultRules(activeDebt("American Express"))
	require.Len(t, card, 3)
	assert.Equal(t, models.RuleTypePattern, card[2].Type)
	require.NotNil(t, card[2].Pattern)

	s := NewPatternStrategy(nil)
	assert.GreaterOrEqual(t, s.Score(card[2], "AMEX PAYMENT RECEIVED"), 70)

	multi := CreateDefaultRules(activeDebt("Student Loans Company"))
	require.Len(t, multi, 3)
	assert.Equal(t, 0, s.Score(multi[2], "STUDENT LOANS CO"))
	assert.Equal(t, 100, s.Score(multi[2], "student loans company"))

	assert.Empty(t, CreateDefaultRules(activeDebt("  ")))
}
