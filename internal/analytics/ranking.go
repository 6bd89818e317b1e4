package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// PodiumSize is the number of leading positions shown as a podium.
const PodiumSize = 3

// SellerRank is one row of the seller leaderboard.
type SellerRank struct {
	Position         int
	Seller           string
	TotalSales       core.Money
	TotalCommissions core.Money
	SalesCount       int
	AverageSale      decimal.Decimal
}

// OnPodium reports whether the position is one of the top three.
func (r SellerRank) OnPodium() bool {
	return r.Position >= 1 && r.Position <= PodiumSize
}

// RankSellers attributes income_sale lines to their sellers and sorts them
// by total sales, descending. Lines without a seller are skipped. Ties keep
// the order in which sellers were first seen.
func RankSellers(lines []SaleLine) []SellerRank {
	index := make(map[string]int)
	ranks := []SellerRank{}
	for _, l := range lines {
		if l.Transaction.Type != core.IncomeSale {
			continue
		}
		seller := l.Transaction.Seller()
		if seller == "" {
			continue
		}
		i, seen := index[seller]
		if !seen {
			i = len(ranks)
			index[seller] = i
			ranks = append(ranks, SellerRank{Seller: seller})
		}
		ranks[i].TotalSales = ranks[i].TotalSales.Add(l.SaleValue)
		ranks[i].TotalCommissions = ranks[i].TotalCommissions.Add(l.Commission)
		ranks[i].SalesCount++
	}

	sort.SliceStable(ranks, func(a, b int) bool {
		return ranks[a].TotalSales.Cents > ranks[b].TotalSales.Cents
	})
	for i := range ranks {
		ranks[i].Position = i + 1
		ranks[i].AverageSale = average(ranks[i].TotalSales, ranks[i].SalesCount)
	}
	return ranks
}

// RankSellersFromTransactions is a shortcut over AnalyzeSales + RankSellers.
func RankSellersFromTransactions(txs []core.Transaction) []SellerRank {
	return RankSellers(AnalyzeSales(txs).Lines)
}
