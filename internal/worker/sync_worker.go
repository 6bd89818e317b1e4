// Package worker consumes transaction events: it appends them to the audit
// table and keeps the spreadsheet ledger mirror in step with the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/sheets"
	"cashflow/internal/storage"
	"cashflow/internal/store"
)

// Repository is the part of the SQLite repository the worker needs.
type Repository interface {
	Get(ctx context.Context, id string) (core.Transaction, error)
	RecordEvent(ctx context.Context, e storage.EventRecord) (bool, error)
	PendingMirror(ctx context.Context, limit int) ([]string, error)
	MarkMirrored(ctx context.Context, id string) error
	MarkMirrorError(ctx context.Context, id string) error
}

var _ Repository = (*storage.SQLiteRepository)(nil)

type SyncWorker struct {
	repo      Repository
	mirror    sheets.LedgerMirror
	batchSize int
}

// NewSyncWorker wires the worker. A nil mirror only records events.
func NewSyncWorker(repo Repository, mirror sheets.LedgerMirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{repo: repo, mirror: mirror, batchSize: batchSize}
}

// HandleEvent processes one transaction event. Redelivered events are
// recognised by their ID and skipped.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"event_id", ev.EventID,
		"kind", ev.Kind,
		"transaction_id", ev.TransactionID)

	inserted, err := w.repo.RecordEvent(ctx, storage.EventRecord{
		EventID:       ev.EventID,
		Kind:          string(ev.Kind),
		TransactionID: ev.TransactionID,
		Type:          ev.Type,
		PreviousType:  ev.PreviousType,
		OccurredAt:    ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	if !inserted {
		slog.InfoContext(ctx, "Duplicate event ignored", "event_id", ev.EventID)
		return nil
	}
	if w.mirror == nil {
		return nil
	}

	if ev.Kind == amqp.EventDeleted {
		if err := w.mirror.Remove(ctx, ev.TransactionID); err != nil {
			return fmt.Errorf("remove ledger row: %w", err)
		}
		slog.InfoContext(ctx, "Removed transaction from ledger mirror", "id", ev.TransactionID)
		return nil
	}

	t, err := w.repo.Get(ctx, ev.TransactionID)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted after the event was published; the delete event follows.
		slog.WarnContext(ctx, "Transaction no longer exists, skipping mirror", "id", ev.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	return w.mirrorTransaction(ctx, t)
}

// ProcessPending mirrors up to one batch of transactions whose mirror is
// pending. It backs up lost events and returns how many were synced.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger back-fill when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	if w.mirror == nil {
		return 0, nil
	}
	ids, err := w.repo.PendingMirror(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	slog.InfoContext(ctx, "Processing pending transactions", "count", len(ids))

	synced := 0
	for _, id := range ids {
		t, err := w.repo.Get(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", id, "error", err)
			if err := w.repo.MarkMirrorError(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark mirror error", "id", id, "error", err)
			}
			continue
		}
		if err := w.mirrorTransaction(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction", "id", id, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) mirrorTransaction(ctx context.Context, t core.Transaction) error {
	ref, err := w.mirror.Upsert(ctx, t)
	if err != nil {
		if markErr := w.repo.MarkMirrorError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error", "id", t.ID, "error", markErr)
		}
		return fmt.Errorf("upsert ledger row: %w", err)
	}
	if err := w.repo.MarkMirrored(ctx, t.ID); err != nil {
		// The row was written; the next back-fill rewrites it harmlessly.
		slog.ErrorContext(ctx, "Failed to mark as mirrored", "id", t.ID, "error", err)
	}
	slog.InfoContext(ctx, "Mirrored transaction",
		"id", t.ID,
		"sheets_ref", ref,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)
	return nil
}
