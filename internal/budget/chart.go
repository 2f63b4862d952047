package budget

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"example.com/finance-dashboard/internal/models"
)

const (
	NodeKindAccount  = "account"
	NodeKindCategory = "category"
)

type ChartNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type ChartLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int64  `json:"value"`
}

type ChartData struct {
	Nodes []ChartNode `json:"nodes"`
	Links []ChartLink `json:"links"`
}

type flowKey struct {
	accountID string
	category  string
}

// CategoryChartData строит граф потоков счет -> категория за период.
// Связи меньше minimum отбрасываются.
func CategoryChartData(transactions []models.Transaction, accounts []models.Account, p models.MonthlyPeriod, omitted []string, minimum int64) ChartData {
	hidden := toSet(omitted)
	flows := make(map[flowKey]int64)
	categories := map[string]struct{}{models.OtherCategory: {}}

	for _, txn := range transactions {
		if !isSpendingIn(txn, p) {
			continue
		}
		category := bucket(txn.Category, hidden)
		categories[category] = struct{}{}
		flows[flowKey{accountID: txn.AccountID, category: category}] += -txn.Amount
	}

	title := cases.Title(language.English)
	data := ChartData{Nodes: []ChartNode{}, Links: []ChartLink{}}

	known := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		known[account.ID] = struct{}{}
		data.Nodes = append(data.Nodes, ChartNode{
			ID:    accountNodeID(account.ID),
			Label: accountLabel(account, title),
			Kind:  NodeKindAccount,
		})
	}

	// Счета, которых нет в списке, получают узел с идентификатором вместо названия.
	var unknown []string
	for key, value := range flows {
		if value < minimum {
			continue
		}
		if _, ok := known[key.accountID]; ok {
			continue
		}
		known[key.accountID] = struct{}{}
		unknown = append(unknown, key.accountID)
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		data.Nodes = append(data.Nodes, ChartNode{ID: accountNodeID(id), Label: id, Kind: NodeKindAccount})
	}

	names := make([]string, 0, len(categories))
	for category := range categories {
		names = append(names, category)
	}
	sort.Strings(names)

	for _, category := range names {
		data.Nodes = append(data.Nodes, ChartNode{
			ID:    categoryNodeID(category),
			Label: title.String(strings.ReplaceAll(category, "_", " ")),
			Kind:  NodeKindCategory,
		})
	}

	for key, value := range flows {
		if value < minimum {
			continue
		}
		data.Links = append(data.Links, ChartLink{
			Source: accountNodeID(key.accountID),
			Target: categoryNodeID(key.category),
			Value:  value,
		})
	}

	sort.Slice(data.Links, func(i, j int) bool {
		if data.Links[i].Source != data.Links[j].Source {
			return data.Links[i].Source < data.Links[j].Source
		}
		return data.Links[i].Target < data.Links[j].Target
	})

	return data
}

func accountLabel(account models.Account, title cases.Caser) string {
	if strings.TrimSpace(account.Description) != "" {
		return account.Description
	}
	return title.String(string(account.Type))
}

func accountNodeID(id string) string {
	return "account:" + id
}

func categoryNodeID(category string) string {
	return "category:" + category
}
