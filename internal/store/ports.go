// Package store declares the Transaction Store contract shared by the SQLite
// repository and the in-memory store.
package store

import (
	"context"
	"errors"
	"time"

	"cashflow/internal/core"
)

var (
	ErrNotFound = errors.New("transaction not found")
	ErrConflict = errors.New("transaction write conflict")
)

// Filter selects transactions by inclusive date range and optional type.
// Zero values mean "no bound".
type Filter struct {
	Start core.Date
	End   core.Date
	Type  core.Type
	// UnmigratedLegacy restricts the result to income_other/expense_other
	// records that were never migrated.
	UnmigratedLegacy bool
}

// Validate rejects an inverted range and unknown types.
func (f Filter) Validate() error {
	if !f.Start.IsZero() && !f.End.IsZero() && f.Start.After(f.End.Time) {
		return core.ErrInvalidDateRange
	}
	if f.Type != "" && !f.Type.IsValid() {
		return core.ErrInvalidType
	}
	return nil
}

// Match reports whether t satisfies the filter.
func (f Filter) Match(t core.Transaction) bool {
	if !t.Date.Between(f.Start, f.End) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.UnmigratedLegacy && (t.IsMigrated() || !t.Type.IsLegacy()) {
		return false
	}
	return true
}

// Ports for the transaction store.
type (
	TransactionReader interface {
		// Get returns ErrNotFound when the id is unknown.
		Get(ctx context.Context, id string) (core.Transaction, error)
		// List returns matching transactions ordered by date, time,
		// creation and then insertion order, so equal keys keep the order
		// they were stored in. An empty result is not an error.
		List(ctx context.Context, f Filter) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		// Create assigns ID and timestamps and returns the stored record.
		Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// Update replaces the mutable fields of an existing record. The
		// migration state is never changed by Update.
		Update(ctx context.Context, t core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id string) error
	}

	// TransactionMigrator persists the one-way migration transition.
	TransactionMigrator interface {
		// MarkMigrated sets the type and migrated marker only if the record
		// is still unmigrated. It reports false when another writer got
		// there first.
		MarkMigrated(ctx context.Context, id string, target core.Type, at time.Time) (bool, error)
	}

	// DirectoryReader lists the known categories and payment methods.
	DirectoryReader interface {
		Categories(ctx context.Context) ([]string, error)
		PaymentMethods(ctx context.Context) ([]string, error)
	}

	Store interface {
		TransactionReader
		TransactionWriter
		TransactionMigrator
		DirectoryReader
		Close() error
	}
)

// Less orders transactions by date, then time, then creation. Stores break
// the remaining ties by insertion order.
func Less(a, b core.Transaction) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.Before(b.Date.Time)
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
