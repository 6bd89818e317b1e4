// Package services orchestrates the store, the migration controller, the
// event publisher and the report cache behind the HTTP handlers and CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/migration"
	"cashflow/internal/store"
)

// TransactionService is the write path for transactions. Every write
// invalidates cached reports and publishes a transaction event.
type TransactionService struct {
	store      store.Store
	migrations *migration.Controller
	events     migration.EventPublisher
	reports    cache.ReportCache
}

// NewTransactionService wires the service. events and reports may be nil;
// pass an untyped nil, not a nil *amqp.Client.
func NewTransactionService(st store.Store, migrations *migration.Controller, events migration.EventPublisher, reports cache.ReportCache) *TransactionService {
	if migrations == nil {
		migrations = migration.NewController(st, nil, events)
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	return &TransactionService{store: st, migrations: migrations, events: events, reports: reports}
}

// UpdateResult reports what an update did.
type UpdateResult struct {
	Transaction core.Transaction
	// Migrated is true when this request performed the migration.
	Migrated bool
}

func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Sale.IsEmpty() {
		t.Sale = nil
	}
	created, err := s.store.Create(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction created", "id", created.ID, "type", created.Type, "amount", created.Amount.String())
	s.afterWrite(ctx, amqp.EventCreated, created, "")
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f store.Filter) ([]core.Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

// Update applies field corrections to an existing record. A type different
// from the stored one, or migrate set, runs the migration transition first;
// the type is never changed by a plain update. On a record that was already
// migrated the stored type wins.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction, migrate bool) (UpdateResult, error) {
	if t.ID == "" {
		return UpdateResult{}, migration.ErrNoID
	}
	cur, err := s.store.Get(ctx, t.ID)
	if err != nil {
		return UpdateResult{}, err
	}
	previous := cur.Type

	var migrated bool
	if (t.Type != "" && t.Type != cur.Type) || migrate {
		target := t.Type
		if target == "" {
			target = cur.Type
		}
		res, err := s.migrations.Migrate(ctx, t.ID, target)
		if err != nil {
			return UpdateResult{}, err
		}
		cur, migrated = res.Transaction, res.Changed
		if migrated {
			s.invalidate(ctx)
		}
	}

	t.Type = cur.Type
	if t.Sale.IsEmpty() {
		t.Sale = nil
	}
	updated, err := s.store.Update(ctx, t)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction updated", "id", updated.ID, "type", updated.Type, "migrated", migrated)
	s.afterWrite(ctx, amqp.EventUpdated, updated, previous)
	return UpdateResult{Transaction: updated, Migrated: migrated}, nil
}

// Migrate runs the explicit per-record transition. An empty target accepts
// the classifier's suggestion.
func (s *TransactionService) Migrate(ctx context.Context, id string, target core.Type) (migration.Result, error) {
	var (
		res migration.Result
		err error
	)
	if target == "" {
		res, err = s.migrations.AcceptSuggestion(ctx, id)
	} else {
		res, err = s.migrations.Migrate(ctx, id, target)
	}
	if err != nil {
		return migration.Result{}, err
	}
	if res.Changed {
		s.invalidate(ctx)
	}
	return res, nil
}

func (s *TransactionService) Candidates(ctx context.Context, f store.Filter) ([]migration.Candidate, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.migrations.Candidates(ctx, f)
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.afterWrite(ctx, amqp.EventDeleted, cur, "")
	return nil
}

func (s *TransactionService) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

func (s *TransactionService) PaymentMethods(ctx context.Context) ([]string, error) {
	return s.store.PaymentMethods(ctx)
}

func (s *TransactionService) afterWrite(ctx context.Context, kind amqp.EventKind, t core.Transaction, previous core.Type) {
	s.invalidate(ctx)
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, kind, t, previous); err != nil {
		// The write succeeded; the worker back-fills from mirror_status.
		slog.ErrorContext(ctx, "Failed to publish transaction event", "id", t.ID, "kind", kind, "error", err)
	}
}

func (s *TransactionService) invalidate(ctx context.Context) {
	if err := s.reports.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate report cache", "error", err)
	}
}

// Close releases the store and the event publisher when it can be closed.
func (s *TransactionService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.events.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}
	return errors.Join(errs...)
}
