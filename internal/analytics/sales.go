package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// SaleLine is the per-transaction attribution of a sale.
type SaleLine struct {
	Transaction          core.Transaction
	SaleValue            core.Money
	SupplierCost         core.Money
	Commission           core.Money
	Profit               core.Money
	CommissionPercentage decimal.Decimal // unrounded
}

// SalesMetrics aggregates the income_sale transactions of a period.
// Sale-related expenses (expense_sale) are reported on their own and are
// not folded into the sale totals.
type SalesMetrics struct {
	TotalSales            core.Money
	TotalSupplierPayments core.Money
	TotalCommissions      core.Money
	NetSalesProfit        core.Money
	SalesCount            int
	AverageSale           decimal.Decimal
	SaleExpenses          core.Money
	SaleExpenseCount      int
}

// SalesReport is the metrics plus the attributed lines they were built from.
type SalesReport struct {
	Metrics SalesMetrics
	Lines   []SaleLine
}

// CommissionPercentage returns commission/saleValue*100 for display and
// audit. It is zero when the sale value is zero and is never rounded.
func CommissionPercentage(t core.Transaction) decimal.Decimal {
	return percentage(t.Commission(), t.SaleValue())
}

// Attribute builds the SaleLine of a single transaction.
func Attribute(t core.Transaction) SaleLine {
	return SaleLine{
		Transaction:          t,
		SaleValue:            t.SaleValue(),
		SupplierCost:         t.SupplierCost(),
		Commission:           t.Commission(),
		Profit:               t.Profit(),
		CommissionPercentage: CommissionPercentage(t),
	}
}

// AnalyzeSales computes the sales metrics of a snapshot. Only sale-typed
// records are considered; everything else is ignored.
func AnalyzeSales(txs []core.Transaction) SalesReport {
	var r SalesReport
	r.Lines = []SaleLine{}
	for _, t := range txs {
		switch t.Type {
		case core.IncomeSale:
			line := Attribute(t)
			r.Lines = append(r.Lines, line)
			m := &r.Metrics
			m.TotalSales = m.TotalSales.Add(line.SaleValue)
			m.TotalSupplierPayments = m.TotalSupplierPayments.Add(line.SupplierCost)
			m.TotalCommissions = m.TotalCommissions.Add(line.Commission)
			m.NetSalesProfit = m.NetSalesProfit.Add(line.Profit)
			m.SalesCount++
		case core.ExpenseSale:
			r.Metrics.SaleExpenses = r.Metrics.SaleExpenses.Add(t.Amount)
			r.Metrics.SaleExpenseCount++
		}
	}
	r.Metrics.AverageSale = average(r.Metrics.TotalSales, r.Metrics.SalesCount)
	return r
}

// SaleTransactions keeps only the sale-typed records, preserving order.
func SaleTransactions(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type.IsSale() {
			out = append(out, t)
		}
	}
	return out
}

// Change is the direction and magnitude of a metric between two periods.
type Change struct {
	Percent    decimal.Decimal
	IsPositive bool
}

// PercentChange returns |current-previous|/previous*100 with its direction.
// With a zero previous value the percentage is zero whatever current is.
func PercentChange(current, previous decimal.Decimal) Change {
	c := Change{IsPositive: current.GreaterThanOrEqual(previous), Percent: decimal.Zero}
	if previous.IsZero() {
		return c
	}
	c.Percent = current.Sub(previous).Abs().Div(previous.Abs()).Mul(decimal.NewFromInt(100))
	return c
}

// SalesComparison holds two periods and the change of every metric.
type SalesComparison struct {
	Current               SalesMetrics
	Previous              SalesMetrics
	TotalSales            Change
	TotalSupplierPayments Change
	TotalCommissions      Change
	NetSalesProfit        Change
	SalesCount            Change
	AverageSale           Change
}

// ComparePeriods applies PercentChange to every sales metric.
func ComparePeriods(current, previous SalesMetrics) SalesComparison {
	count := func(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
	return SalesComparison{
		Current:               current,
		Previous:              previous,
		TotalSales:            PercentChange(Reais(current.TotalSales), Reais(previous.TotalSales)),
		TotalSupplierPayments: PercentChange(Reais(current.TotalSupplierPayments), Reais(previous.TotalSupplierPayments)),
		TotalCommissions:      PercentChange(Reais(current.TotalCommissions), Reais(previous.TotalCommissions)),
		NetSalesProfit:        PercentChange(Reais(current.NetSalesProfit), Reais(previous.NetSalesProfit)),
		SalesCount:            PercentChange(count(current.SalesCount), count(previous.SalesCount)),
		AverageSale:           PercentChange(current.AverageSale, previous.AverageSale),
	}
}

// PreviousPeriod returns the inclusive range of equal length that ends the
// day before start.
func PreviousPeriod(start, end core.Date) (core.Date, core.Date) {
	days := int(end.Sub(start.Time)/(24*time.Hour)) + 1
	if days < 1 {
		days = 1
	}
	prevEnd := core.Date{Time: start.AddDate(0, 0, -1)}
	prevStart := core.Date{Time: prevEnd.AddDate(0, 0, -(days - 1))}
	return prevStart, prevEnd
}
