package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/store"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC timestamps so text ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Mirror states of a transaction in the spreadsheet ledger.
const (
	MirrorPending = "pending"
	MirrorDone    = "mirrored"
	MirrorError   = "error"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectColumns = `id, type, date, time, description, amount_cents, category, payment_method,
	sale_value_cents, supplier_value_cents, suppliers_json, commission_value_cents,
	client, reservation, supplier, seller, migrated, migrated_at, created_at, updated_at`

type supplierRow struct {
	Name       string `json:"name"`
	ValueCents int64  `json:"value_cents"`
}

func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := r.now().UTC()
	t = t.Clone()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.IsMigrated() && t.MigratedAt.IsZero() {
		t.MigratedAt = now
	}

	args, err := writeArgs(t)
	if err != nil {
		return core.Transaction{}, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO transactions (
		type, date, time, description, amount_cents, category, payment_method,
		sale_value_cents, supplier_value_cents, suppliers_json, commission_value_cents,
		client, reservation, supplier, seller, id, migrated, migrated_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, t.ID, boolInt(t.IsMigrated()), nullableTime(t.MigratedAt), formatTime(now), formatTime(now))...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f store.Filter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if !f.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.Start.String())
	}
	if !f.End.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.End.String())
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.UnmigratedLegacy {
		where = append(where, "migrated = 0", "type IN (?, ?)")
		args = append(args, string(core.IncomeOther), string(core.ExpenseOther))
	}
	query := `SELECT ` + selectColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, time, created_at, rowid"
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update rewrites the editable fields and flags the record for mirroring.
// Migration columns are left alone.
func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	args, err := writeArgs(t)
	if err != nil {
		return core.Transaction{}, err
	}
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET
		type = ?, date = ?, time = ?, description = ?, amount_cents = ?, category = ?, payment_method = ?,
		sale_value_cents = ?, supplier_value_cents = ?, suppliers_json = ?, commission_value_cents = ?,
		client = ?, reservation = ?, supplier = ?, seller = ?,
		mirror_status = 'pending', updated_at = ?
		WHERE id = ?`, append(args, formatTime(now), t.ID)...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, fmt.Errorf("%w: %s", store.ErrNotFound, t.ID)
	}
	return r.Get(ctx, t.ID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// MarkMigrated is a conditional update: only rows with migrated = 0 change.
func (r *SQLiteRepository) MarkMigrated(ctx context.Context, id string, target core.Type, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET type = ?, migrated = 1, migrated_at = ?, updated_at = ?, mirror_status = 'pending'
		WHERE id = ? AND migrated = 0`,
		string(target), formatTime(at.UTC()), formatTime(at.UTC()), id)
	if err != nil {
		return false, fmt.Errorf("mark migrated %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark migrated %s: %w", id, err)
	}
	if n == 1 {
		return true, nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("check transaction %s: %w", id, err)
	}
	return false, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	return r.names(ctx, `SELECT name FROM categories ORDER BY position, name`)
}

func (r *SQLiteRepository) PaymentMethods(ctx context.Context) ([]string, error) {
	return r.names(ctx, `SELECT name FROM payment_methods ORDER BY position, name`)
}

func (r *SQLiteRepository) names(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads a row. Money columns go through core.LenientCents so
// imported garbage degrades to zero with a warning instead of an error.
func scanTransaction(ctx context.Context, s scanner) (core.Transaction, error) {
	var (
		t                                     core.Transaction
		typ, date, migratedAt                 sql.NullString
		amount, saleValue, supplierValue      any
		commission                            any
		suppliersJSON                         sql.NullString
		client, reservation, supplier, seller string
		migrated                              int64
		createdAt, updatedAt                  string
	)
	err := s.Scan(&t.ID, &typ, &date, &t.Time, &t.Description, &amount, &t.Category, &t.PaymentMethod,
		&saleValue, &supplierValue, &suppliersJSON, &commission,
		&client, &reservation, &supplier, &seller, &migrated, &migratedAt, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Type, err = core.ParseType(typ.String)
	if err != nil {
		slog.WarnContext(ctx, "Stored transaction has unknown type", "id", t.ID, "type", typ.String)
		t.Type = core.Type(typ.String)
	}
	if d, err := core.ParseDate(date.String); err == nil {
		t.Date = d
	} else {
		slog.WarnContext(ctx, "Stored transaction has malformed date", "id", t.ID, "date", date.String)
	}

	var ok bool
	if t.Amount, ok = core.LenientCents(amount); !ok {
		slog.WarnContext(ctx, "Malformed amount read as zero", "id", t.ID, "value", amount)
	}

	sale := &core.SaleDetails{
		SaleValue:       lenientPtr(ctx, t.ID, "sale_value", saleValue),
		SupplierValue:   lenientPtr(ctx, t.ID, "supplier_value", supplierValue),
		CommissionValue: lenientPtr(ctx, t.ID, "commission_value", commission),
		Client:          client,
		Reservation:     reservation,
		Supplier:        supplier,
		Seller:          seller,
	}
	if suppliersJSON.Valid && suppliersJSON.String != "" {
		var rows []supplierRow
		if err := json.Unmarshal([]byte(suppliersJSON.String), &rows); err != nil {
			slog.WarnContext(ctx, "Malformed suppliers list ignored", "id", t.ID, "error", err)
		}
		for _, row := range rows {
			v := row.ValueCents
			if v < 0 {
				v = 0
			}
			sale.Suppliers = append(sale.Suppliers, core.SupplierCost{Name: row.Name, Value: core.Money{Cents: v}})
		}
	}
	if !sale.IsEmpty() {
		t.Sale = sale
	}

	if migrated == 1 {
		t.Migration = core.Migrated
		t.MigratedAt = parseTime(migratedAt.String)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func lenientPtr(ctx context.Context, id, column string, v any) *core.Money {
	if v == nil {
		return nil
	}
	m, ok := core.LenientCents(v)
	if !ok {
		slog.WarnContext(ctx, "Malformed money column read as zero", "id", id, "column", column, "value", v)
	}
	return &m
}

// writeArgs returns the 15 editable column values in statement order.
func writeArgs(t core.Transaction) ([]any, error) {
	var (
		saleValue, supplierValue, commission  any
		suppliersJSON                         any
		client, reservation, supplier, seller string
	)
	if s := t.Sale; s != nil {
		saleValue = moneyArg(s.SaleValue)
		supplierValue = moneyArg(s.SupplierValue)
		commission = moneyArg(s.CommissionValue)
		if len(s.Suppliers) > 0 {
			rows := make([]supplierRow, len(s.Suppliers))
			for i, sc := range s.Suppliers {
				rows[i] = supplierRow{Name: sc.Name, ValueCents: sc.Value.Cents}
			}
			raw, err := json.Marshal(rows)
			if err != nil {
				return nil, fmt.Errorf("encode suppliers: %w", err)
			}
			suppliersJSON = string(raw)
		}
		client, reservation, supplier, seller = s.Client, s.Reservation, s.Supplier, s.Seller
	}
	return []any{
		string(t.Type), t.Date.String(), t.Time, t.Description, t.Amount.Cents, t.Category, t.PaymentMethod,
		saleValue, supplierValue, suppliersJSON, commission,
		client, reservation, supplier, seller,
	}, nil
}

func moneyArg(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(tsLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
