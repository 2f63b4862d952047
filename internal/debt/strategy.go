package debt

import (
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"example.com/finance-dashboard/internal/models"
)

// MatchStrategy оценивает совпадение значения поля транзакции с правилом по шкале 0-100.
type MatchStrategy interface {
	Score(rule models.CreditorMatchingRule, value string) int
}

type ExactStrategy struct{}

// Score дает 100 за равенство без учета регистра и 85 за вхождение.
func (ExactStrategy) Score(rule models.CreditorMatchingRule, value string) int {
	target := strings.ToLower(strings.TrimSpace(rule.Value))
	text := strings.ToLower(strings.TrimSpace(value))
	if target == "" || text == "" {
		return 0
	}

	switch {
	case text == target:
		return 100
	case strings.Contains(text, target), strings.Contains(target, text):
		return 85
	default:
		return 0
	}
}

type FuzzyStrategy struct {
	MaxDistance int
}

// Score ищет минимальное расстояние Левенштейна между значением правила и
// текстом целиком или окном из такого же числа слов.
func (s FuzzyStrategy) Score(rule models.CreditorMatchingRule, value string) int {
	target := strings.ToLower(strings.TrimSpace(rule.Value))
	text := strings.ToLower(strings.TrimSpace(value))
	if target == "" || text == "" {
		return 0
	}

	distance := levenshtein(target, text)

	words := strings.Fields(text)
	size := len(strings.Fields(target))
	for i := 0; size > 0 && i+size <= len(words); i++ {
		window := strings.Join(words[i:i+size], " ")
		distance = min(distance, levenshtein(target, window))
	}

	if distance > s.MaxDistance {
		return 0
	}
	return 100 - distance*100/(s.MaxDistance+1)
}

type PatternStrategy struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewPatternStrategy создает стратегию регулярных выражений с кэшем компиляции.
func NewPatternStrategy(logger *slog.Logger) *PatternStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternStrategy{logger: logger, cache: make(map[string]*regexp.Regexp)}
}

// Score дает от 70 до 100 в зависимости от доли текста, покрытой совпадением.
// Некорректное выражение дает 0.
func (s *PatternStrategy) Score(rule models.CreditorMatchingRule, value string) int {
	expr := rule.Value
	if rule.Pattern != nil && strings.TrimSpace(*rule.Pattern) != "" {
		expr = *rule.Pattern
	}

	text := strings.TrimSpace(value)
	if text == "" || strings.TrimSpace(expr) == "" {
		return 0
	}

	re, err := s.compile(expr)
	if err != nil {
		s.logger.Warn("invalid creditor pattern", "rule_id", rule.ID, "pattern", expr, "error", err)
		return 0
	}

	loc := re.FindStringIndex(text)
	if loc == nil {
		return 0
	}

	coverage := float64(loc[1]-loc[0]) / float64(len(text))
	return 70 + int(math.Round(coverage*30))
}

func (s *PatternStrategy) compile(expr string) (*regexp.Regexp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if re, ok := s.cache[expr]; ok {
		return re, nil
	}

	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, err
	}
	s.cache[expr] = re
	return re, nil
}

type AccountStrategy struct{}

// Score дает 100 за совпадение номера счета и 80 за совпадение последних четырех цифр.
func (AccountStrategy) Score(rule models.CreditorMatchingRule, value string) int {
	target := digits(rule.Value)
	text := digits(value)
	if target == "" || text == "" {
		return 0
	}

	if target == text {
		return 100
	}
	if len(target) >= 4 && len(text) >= 4 && target[len(target)-4:] == text[len(text)-4:] {
		return 80
	}
	return 0
}

func digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
