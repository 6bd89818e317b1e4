package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventRecord is one row of the transaction_events audit table.
type EventRecord struct {
	EventID       string
	Kind          string
	TransactionID string
	Type          string
	PreviousType  string
	OccurredAt    time.Time
	ReceivedAt    time.Time
}

// RecordEvent appends an audit row. Redelivered events are ignored and
// reported with inserted false.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e EventRecord) (bool, error) {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO transaction_events
		(event_id, kind, transaction_id, type, previous_type, occurred_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Kind, e.TransactionID, e.Type, e.PreviousType, formatTime(e.OccurredAt), formatTime(e.ReceivedAt))
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", e.EventID, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// Events returns the audit trail of a transaction, oldest first.
func (r *SQLiteRepository) Events(ctx context.Context, transactionID string) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT event_id, kind, transaction_id, type, previous_type, occurred_at, received_at
		FROM transaction_events WHERE transaction_id = ? ORDER BY occurred_at, received_at`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := []EventRecord{}
	for rows.Next() {
		var (
			e                  EventRecord
			occurred, received string
		)
		if err := rows.Scan(&e.EventID, &e.Kind, &e.TransactionID, &e.Type, &e.PreviousType, &occurred, &received); err != nil {
			return nil, err
		}
		e.OccurredAt, e.ReceivedAt = parseTime(occurred), parseTime(received)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PendingMirror returns ids of transactions not yet mirrored to the ledger:
// pending rows first, then rows whose mirror failed, each least recently
// updated first. Failing rows never crowd out pending ones.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM transactions
		WHERE mirror_status IN (?, ?)
		ORDER BY CASE mirror_status WHEN ? THEN 0 ELSE 1 END, updated_at, rowid
		LIMIT ?`, MirrorPending, MirrorError, MirrorPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending mirror: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id string) error {
	if err := r.setMirror(ctx, id, MirrorDone); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction marked as mirrored", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id string) error {
	if err := r.setMirror(ctx, id, MirrorError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Transaction marked with mirror error", "id", id)
	return nil
}

func (r *SQLiteRepository) setMirror(ctx context.Context, id, status string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET mirror_status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set mirror status %s: %w", id, err)
	}
	return nil
}

// MirrorStatus returns the ledger mirror state of a transaction.
func (r *SQLiteRepository) MirrorStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT mirror_status FROM transactions WHERE id = ?`, id).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("get mirror status %s: %w", id, err)
	}
	return status, nil
}
