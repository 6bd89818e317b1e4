// Package analytics turns transaction snapshots into totals, sales metrics,
// category shares and seller rankings.
//
// Every function here is pure: it reads the slice it is given, never
// mutates it and never performs I/O. Callers fetch the snapshot from the
// store (already filtered by date range) and may cache the results.
package analytics

import (
	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// Summary holds the period totals of an arbitrary transaction subset.
type Summary struct {
	TotalIncome   core.Money
	TotalExpense  core.Money
	Balance       core.Money
	Count         int
	IncomeCount   int
	ExpenseCount  int
	AverageTicket decimal.Decimal // reais per income transaction
}

// Dashboard extends Summary with the figures shown on the cash-flow home.
type Dashboard struct {
	Summary
	TodayCount    int
	ClientsServed int
}

// Summarize computes income, expense, balance, counts and the average
// ticket. The average ticket is zero when there is no income transaction.
func Summarize(txs []core.Transaction) Summary {
	var s Summary
	for _, t := range txs {
		s.Count++
		switch {
		case t.Type.IsIncome():
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			s.IncomeCount++
		case t.Type.IsExpense():
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			s.ExpenseCount++
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	s.AverageTicket = average(s.TotalIncome, s.IncomeCount)
	return s
}

// SummarizeDashboard adds the number of transactions dated today and the
// number of distinct clients attached to income records.
func SummarizeDashboard(txs []core.Transaction, today core.Date) Dashboard {
	d := Dashboard{Summary: Summarize(txs)}
	clients := make(map[string]struct{})
	for _, t := range txs {
		if t.Date.Equal(today.Time) {
			d.TodayCount++
		}
		if c := t.Client(); c != "" && t.Type.IsIncome() {
			clients[c] = struct{}{}
		}
	}
	d.ClientsServed = len(clients)
	return d
}

// Reais converts cents into an exact decimal amount.
func Reais(m core.Money) decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func average(total core.Money, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return Reais(total).Div(decimal.NewFromInt(int64(n)))
}

// percentage returns part/whole*100, or zero when whole is zero.
func percentage(part, whole core.Money) decimal.Decimal {
	if whole.Cents == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part.Cents).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(whole.Cents))
}
