package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "cashflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func saleTx(day int) core.Transaction {
	return core.Transaction{
		Type:          core.IncomeSale,
		Date:          core.NewDate(2024, 6, day),
		Time:          "10:30",
		Description:   "Pacote Nordeste",
		Amount:        core.Money{Cents: 100000},
		Category:      "Pacotes",
		PaymentMethod: "PIX",
		Sale: &core.SaleDetails{
			SaleValue:       core.MoneyPtr(100000),
			Suppliers:       []core.SupplierCost{{Name: "Hotel", Value: core.Money{Cents: 40000}}, {Name: "Aéreo", Value: core.Money{Cents: 20000}}},
			CommissionValue: core.MoneyPtr(10000),
			Client:          "Maria",
			Seller:          "Ana",
		},
	}
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.Create(ctx, saleTx(10))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.IncomeSale, got.Type)
	assert.Equal(t, "2024-06-10", got.Date.String())
	assert.Equal(t, "10:30", got.Time)
	require.NotNil(t, got.Sale)
	assert.Equal(t, core.Money{Cents: 60000}, got.SupplierCost())
	assert.Equal(t, core.Money{Cents: 30000}, got.Profit())
	assert.Equal(t, "Ana", got.Seller())
	assert.False(t, got.IsMigrated())
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, tx := range []core.Transaction{
		saleTx(15),
		{Type: core.ExpenseOther, Date: core.NewDate(2024, 6, 1), Amount: core.Money{Cents: 500}, Category: "Aluguel"},
		{Type: core.IncomeOther, Date: core.NewDate(2024, 6, 30), Amount: core.Money{Cents: 700}, Category: "Outros"},
		{Type: core.IncomeOther, Date: core.NewDate(2024, 7, 1), Amount: core.Money{Cents: 900}, Category: "Outros"},
	} {
		_, err := repo.Create(ctx, tx)
		require.NoError(t, err)
	}

	june, err := repo.List(ctx, store.Filter{Start: core.NewDate(2024, 6, 1), End: core.NewDate(2024, 6, 30)})
	require.NoError(t, err)
	require.Len(t, june, 3)
	assert.Equal(t, "2024-06-01", june[0].Date.String())
	assert.Equal(t, "2024-06-30", june[2].Date.String())

	income, err := repo.List(ctx, store.Filter{Type: core.IncomeOther})
	require.NoError(t, err)
	assert.Len(t, income, 2)

	candidates, err := repo.List(ctx, store.Filter{UnmigratedLegacy: true})
	require.NoError(t, err)
	assert.Len(t, candidates, 3)

	empty, err := repo.List(ctx, store.Filter{Start: core.NewDate(2030, 1, 1)})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = repo.List(ctx, store.Filter{Start: core.NewDate(2024, 7, 1), End: core.NewDate(2024, 6, 1)})
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
}

func TestSQLiteRepository_ListKeepsInsertionOrderOnTies(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	fixed := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	var want []string
	for _, seller := range []string{"Bruno", "Ana", "Carla", "Ana", "Bruno"} {
		tx := saleTx(10)
		tx.Sale.Seller = seller
		created, err := repo.Create(ctx, tx)
		require.NoError(t, err)
		want = append(want, created.ID)
	}

	got, err := repo.List(ctx, store.Filter{})
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, tx := range got {
		ids[i] = tx.ID
	}
	assert.Equal(t, want, ids)
}

func TestSQLiteRepository_MarkMigratedIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created, err := repo.Create(ctx, core.Transaction{
		Type: core.IncomeOther, Date: core.NewDate(2024, 6, 2), Amount: core.Money{Cents: 100}, Category: "Passagens",
	})
	require.NoError(t, err)

	at := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	ok, err := repo.MarkMigrated(ctx, created.ID, core.IncomeSale, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkMigrated(ctx, created.ID, core.IncomeOther, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.IncomeSale, got.Type)
	assert.True(t, got.IsMigrated())
	assert.True(t, got.MigratedAt.Equal(at))

	_, err = repo.MarkMigrated(ctx, "missing", core.IncomeSale, at)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteRepository_UpdateKeepsMigration(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created, err := repo.Create(ctx, core.Transaction{
		Type: core.ExpenseOther, Date: core.NewDate(2024, 6, 2), Amount: core.Money{Cents: 100}, Category: "Fornecedores",
	})
	require.NoError(t, err)
	_, err = repo.MarkMigrated(ctx, created.ID, core.ExpenseSale, time.Now())
	require.NoError(t, err)

	edit := created
	edit.Type = core.ExpenseSale
	edit.Description = "Repasse operadora"
	updated, err := repo.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "Repasse operadora", updated.Description)
	assert.True(t, updated.IsMigrated())

	edit.ID = "missing"
	_, err = repo.Update(ctx, edit)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created, err := repo.Create(ctx, saleTx(1))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), store.ErrNotFound)
}

func TestSQLiteRepository_LenientMoneyColumns(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := formatTime(time.Now())

	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions
		(id, type, date, amount_cents, category, sale_value_cents, commission_value_cents, suppliers_json, created_at, updated_at)
		VALUES
		('legacy-1', 'entrada_vendas', '2024-06-05', 'n/a', 'Passagens', '1.500,00', -10, 'not json', ?, ?),
		('legacy-2', 'saida', '2024-06-06', '12,50', 'Aluguel', NULL, NULL, NULL, ?, ?),
		('legacy-3', 'entrada', '2024-06-07', NULL, 'Outros', NULL, NULL, NULL, ?, ?)`,
		now, now, now, now, now, now)
	require.NoError(t, err)

	txs, err := repo.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, core.IncomeSale, txs[0].Type)
	assert.Zero(t, txs[0].Amount.Cents)
	require.NotNil(t, txs[0].Sale)
	assert.Zero(t, txs[0].SaleValue().Cents)
	assert.Zero(t, txs[0].Commission().Cents)
	assert.Empty(t, txs[0].Sale.Suppliers)

	assert.Equal(t, core.ExpenseOther, txs[1].Type)
	assert.Equal(t, int64(1250), txs[1].Amount.Cents)
	assert.Nil(t, txs[1].Sale)

	assert.Zero(t, txs[2].Amount.Cents)
}

func TestSQLiteRepository_Directories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Contains(t, cats, "Passagens")
	assert.Equal(t, "Passagens", cats[0])

	methods, err := repo.PaymentMethods(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PIX", methods[0])
}

func TestSQLiteRepository_EventsAndMirror(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created, err := repo.Create(ctx, saleTx(3))
	require.NoError(t, err)

	ev := EventRecord{EventID: "e-1", Kind: "transaction.created", TransactionID: created.ID, Type: "income_sale", OccurredAt: time.Now()}
	inserted, err := repo.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = repo.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted, "redelivered event must be ignored")

	events, err := repo.Events(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "transaction.created", events[0].Kind)

	pending, err := repo.PendingMirror(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, pending)

	require.NoError(t, repo.MarkMirrored(ctx, created.ID))
	pending, err = repo.PendingMirror(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.MarkMirrorError(ctx, created.ID))
	status, err := repo.MirrorStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, MirrorError, status)
}

func TestSQLiteRepository_PendingMirrorPrefersPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	var failing []string
	for day := 1; day <= 3; day++ {
		created, err := repo.Create(ctx, saleTx(day))
		require.NoError(t, err)
		require.NoError(t, repo.MarkMirrorError(ctx, created.ID))
		failing = append(failing, created.ID)
	}
	fresh, err := repo.Create(ctx, saleTx(4))
	require.NoError(t, err)

	batch, err := repo.PendingMirror(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID, failing[0]}, batch)

	require.NoError(t, repo.MarkMirrored(ctx, fresh.ID))
	batch, err = repo.PendingMirror(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, failing, batch)
}
