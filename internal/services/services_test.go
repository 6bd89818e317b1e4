package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/store"
	"cashflow/internal/store/memory"
)

type recordedEvent struct {
	kind     amqp.EventKind
	id       string
	typ      core.Type
	previous core.Type
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, kind amqp.EventKind, t core.Transaction, previous core.Type) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind, t.ID, t.Type, previous})
	return nil
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.kind
	}
	return out
}

func june(day int) core.Date { return core.NewDate(2024, 6, day) }

func sale(day int, seller string, value, suppliers, commission int64) core.Transaction {
	return core.Transaction{
		Type:     core.IncomeSale,
		Date:     june(day),
		Amount:   core.Money{Cents: value},
		Category: "Pacotes",
		Sale: &core.SaleDetails{
			SaleValue:       core.MoneyPtr(value),
			SupplierValue:   core.MoneyPtr(suppliers),
			CommissionValue: core.MoneyPtr(commission),
			Seller:          seller,
			Client:          "Cliente " + seller,
		},
	}
}

type fixture struct {
	store   *memory.Store
	events  *recordingPublisher
	reports *cache.LocalReportCache
	txs     *TransactionService
	rep     *ReportService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := memory.New(nil, nil)
	pub := &recordingPublisher{}
	rc := cache.NewLocalReportCache(32, time.Minute)
	return fixture{
		store:   st,
		events:  pub,
		reports: rc,
		txs:     NewTransactionService(st, nil, pub, rc),
		rep:     NewReportService(st, rc),
	}
}

func TestTransactionService_CreatePublishesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := Period{Start: june(1), End: june(30)}

	before, err := f.rep.Summary(ctx, p)
	require.NoError(t, err)
	assert.Zero(t, before.Count)

	created, err := f.txs.Create(ctx, sale(3, "Ana", 100000, 60000, 10000))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []amqp.EventKind{amqp.EventCreated}, f.events.kinds())

	after, err := f.rep.Summary(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Count, "cached summary must be invalidated by the write")
	assert.Equal(t, int64(100000), after.TotalIncome.Cents)
}

func TestTransactionService_CreateRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.txs.Create(context.Background(), core.Transaction{Type: core.IncomeOther, Date: june(1), Amount: core.Money{Cents: -1}, Category: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Empty(t, f.events.kinds())
}

func TestTransactionService_UpdateWithTypeChangeMigrates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.txs.Create(ctx, core.Transaction{
		Type: core.IncomeOther, Date: june(2), Amount: core.Money{Cents: 5000}, Category: "Passagens", Description: "Passagem",
	})
	require.NoError(t, err)

	edit := created
	edit.Type = core.IncomeSale
	edit.Description = "Passagem GRU-REC"
	res, err := f.txs.Update(ctx, edit, false)
	require.NoError(t, err)

	assert.True(t, res.Migrated)
	assert.Equal(t, core.IncomeSale, res.Transaction.Type)
	assert.True(t, res.Transaction.IsMigrated())
	assert.Equal(t, "Passagem GRU-REC", res.Transaction.Description)
	assert.Contains(t, f.events.kinds(), amqp.EventMigrated)

	// A later type change on a migrated record keeps the stored type.
	edit.Type = core.IncomeOther
	res, err = f.txs.Update(ctx, edit, false)
	require.NoError(t, err)
	assert.False(t, res.Migrated)
	assert.Equal(t, core.IncomeSale, res.Transaction.Type)
}

func TestTransactionService_UpdateDirectionChangeRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.txs.Create(ctx, core.Transaction{Type: core.IncomeOther, Date: june(2), Amount: core.Money{Cents: 1}, Category: "Outros"})
	require.NoError(t, err)

	created.Type = core.ExpenseSale
	_, err = f.txs.Update(ctx, created, false)
	assert.ErrorIs(t, err, core.ErrDirectionChange)

	got, err := f.txs.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.IncomeOther, got.Type)
	assert.False(t, got.IsMigrated())
}

func TestTransactionService_UpdatePlainKeepsType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.txs.Create(ctx, core.Transaction{Type: core.ExpenseOther, Date: june(2), Amount: core.Money{Cents: 1}, Category: "Aluguel"})
	require.NoError(t, err)

	edit := created
	edit.Type = ""
	edit.Amount = core.Money{Cents: 250}
	res, err := f.txs.Update(ctx, edit, false)
	require.NoError(t, err)
	assert.False(t, res.Migrated)
	assert.Equal(t, core.ExpenseOther, res.Transaction.Type)
	assert.False(t, res.Transaction.IsMigrated())
	assert.Equal(t, int64(250), res.Transaction.Amount.Cents)
}

func TestTransactionService_MigrateAcceptsSuggestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.txs.Create(ctx, core.Transaction{
		Type: core.ExpenseOther, Date: june(4), Amount: core.Money{Cents: 900}, Category: "Operacional",
		Sale: &core.SaleDetails{Supplier: "Hotel Mar"},
	})
	require.NoError(t, err)

	candidates, err := f.txs.Candidates(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, core.ExpenseSale, candidates[0].Suggestion.Suggested)

	res, err := f.txs.Migrate(ctx, created.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, core.ExpenseSale, res.Transaction.Type)

	candidates, err = f.txs.Candidates(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestTransactionService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created, err := f.txs.Create(ctx, sale(1, "Ana", 100, 0, 0))
	require.NoError(t, err)

	require.NoError(t, f.txs.Delete(ctx, created.ID))
	assert.ErrorIs(t, f.txs.Delete(ctx, created.ID), store.ErrNotFound)
	assert.Equal(t, []amqp.EventKind{amqp.EventCreated, amqp.EventDeleted}, f.events.kinds())
}

func TestTransactionService_ListValidatesRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.txs.List(context.Background(), store.Filter{Start: june(30), End: june(1)})
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
}

func TestReportService_SalesAndRanking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, tx := range []core.Transaction{
		sale(2, "Ana", 100000, 60000, 10000),
		sale(3, "Bruno", 300000, 200000, 30000),
		sale(4, "Ana", 50000, 20000, 5000),
		{Type: core.ExpenseSale, Date: june(5), Amount: core.Money{Cents: 5000}, Category: "Taxas"},
	} {
		_, err := f.txs.Create(ctx, tx)
		require.NoError(t, err)
	}
	p := Period{Start: june(1), End: june(30)}

	report, err := f.rep.SalesAnalysis(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Metrics.SalesCount)
	assert.Equal(t, int64(450000), report.Metrics.TotalSales.Cents)
	assert.Equal(t, int64(5000), report.Metrics.SaleExpenses.Cents)

	cachedReport, err := f.rep.SalesAnalysis(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, report.Metrics.TotalSales, cachedReport.Metrics.TotalSales)
	assert.True(t, report.Metrics.AverageSale.Equal(cachedReport.Metrics.AverageSale))

	ranking, err := f.rep.SellerRanking(ctx, p)
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, "Bruno", ranking[0].Seller)
	assert.Equal(t, "Ana", ranking[1].Seller)
	assert.Equal(t, 2, ranking[1].SalesCount)
}

func TestReportService_SalesComparison(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.txs.Create(ctx, sale(10, "Ana", 20000, 0, 0))
	require.NoError(t, err)
	prev := sale(10, "Ana", 10000, 0, 0)
	prev.Date = core.NewDate(2024, 5, 10)
	_, err = f.txs.Create(ctx, prev)
	require.NoError(t, err)

	cmp, err := f.rep.SalesComparison(ctx, Period{Start: june(1), End: june(30)})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), cmp.Current.TotalSales.Cents)
	assert.Equal(t, int64(10000), cmp.Previous.TotalSales.Cents)
	assert.True(t, cmp.TotalSales.IsPositive)
	assert.Equal(t, "100", cmp.TotalSales.Percent.String())
}

func TestReportService_CategoriesAndComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, tx := range []core.Transaction{
		{Type: core.IncomeOther, Date: june(1), Amount: core.Money{Cents: 200}, Category: "Passagens", PaymentMethod: "PIX"},
		{Type: core.IncomeOther, Date: june(2), Amount: core.Money{Cents: 100}, Category: "Hotéis", PaymentMethod: "PIX"},
		{Type: core.ExpenseOther, Date: june(3), Amount: core.Money{Cents: 50}, Category: "Aluguel", PaymentMethod: "Boleto"},
	} {
		_, err := f.txs.Create(ctx, tx)
		require.NoError(t, err)
	}
	p := Period{Start: june(1), End: june(30)}

	cats, err := f.rep.Categories(ctx, p)
	require.NoError(t, err)
	require.Len(t, cats.Income, 2)
	assert.Equal(t, "Passagens", cats.Income[0].Category)
	assert.Equal(t, "66.7", cats.Income[0].Percentage.String())
	require.Len(t, cats.Expense, 1)

	complete, err := f.rep.CompleteAnalysis(ctx, p)
	require.NoError(t, err)
	assert.Len(t, complete.Transactions, 3)
	assert.Equal(t, int64(250), complete.Summary.Balance.Cents)
}

func TestReportService_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.rep.Summary(context.Background(), Period{Start: june(30), End: june(1)})
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
}

func TestMonthOfAndPrevious(t *testing.T) {
	p := MonthOf(time.Date(2024, 2, 17, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String())

	prev := Period{Start: core.NewDate(2024, 3, 1), End: core.NewDate(2024, 3, 31)}.Previous()
	assert.Equal(t, "2024-01-30", prev.Start.String())
	assert.Equal(t, "2024-02-29", prev.End.String())
}
