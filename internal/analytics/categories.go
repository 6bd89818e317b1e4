package analytics

import (
	"strings"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// Uncategorized labels records whose category is blank.
const Uncategorized = "Sem categoria"

// CategoryShare is one slice of a category distribution.
type CategoryShare struct {
	Category   string
	Amount     core.Money
	Percentage decimal.Decimal // rounded half-up to one decimal
}

// CategoryDistribution groups income transactions by category and returns
// each category's share of total income, in first-seen order.
func CategoryDistribution(txs []core.Transaction) []CategoryShare {
	return distribution(txs, core.Type.IsIncome, func(t core.Transaction) string { return t.Category })
}

// ExpenseCategoryDistribution is CategoryDistribution over expenses.
func ExpenseCategoryDistribution(txs []core.Transaction) []CategoryShare {
	return distribution(txs, core.Type.IsExpense, func(t core.Transaction) string { return t.Category })
}

// PaymentMethodDistribution groups every transaction by payment method.
func PaymentMethodDistribution(txs []core.Transaction) []CategoryShare {
	all := func(core.Type) bool { return true }
	return distribution(txs, all, func(t core.Transaction) string { return t.PaymentMethod })
}

func distribution(txs []core.Transaction, include func(core.Type) bool, key func(core.Transaction) string) []CategoryShare {
	index := make(map[string]int)
	var (
		shares []CategoryShare
		total  core.Money
	)
	for _, t := range txs {
		if !include(t.Type) {
			continue
		}
		name := strings.TrimSpace(key(t))
		if name == "" {
			name = Uncategorized
		}
		i, seen := index[name]
		if !seen {
			i = len(shares)
			index[name] = i
			shares = append(shares, CategoryShare{Category: name})
		}
		shares[i].Amount = shares[i].Amount.Add(t.Amount)
		total = total.Add(t.Amount)
	}
	for i := range shares {
		shares[i].Percentage = percentage(shares[i].Amount, total).Round(1)
	}
	if shares == nil {
		return []CategoryShare{}
	}
	return shares
}
