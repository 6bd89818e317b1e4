// Package migration applies the one-way reclassification of legacy
// income_other/expense_other records.
//
// Every transition is explicitly requested for one record. The store write
// is conditional on the record still being unmigrated, so retries and
// concurrent requests never apply twice.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/classify"
	"cashflow/internal/core"
	"cashflow/internal/store"
)

var ErrNoID = errors.New("transaction id is required")

// Result is the outcome of a migration request.
type Result struct {
	Transaction core.Transaction
	// Changed is false when the record had already been migrated and was
	// returned untouched.
	Changed    bool
	Suggestion classify.Suggestion
}

// Candidate is an unmigrated legacy record with its suggested type.
type Candidate struct {
	Transaction core.Transaction
	Suggestion  classify.Suggestion
}

type Controller struct {
	repo       Repository
	classifier *classify.Classifier
	events     EventPublisher
	now        func() time.Time
}

// NewController wires the controller. A nil classifier uses the default
// keywords; a nil publisher disables events.
func NewController(repo Repository, classifier *classify.Classifier, events EventPublisher) *Controller {
	if classifier == nil {
		classifier = classify.Default()
	}
	return &Controller{repo: repo, classifier: classifier, events: events, now: time.Now}
}

// Migrate moves the record to target and marks it migrated. Re-running it
// on a migrated record returns the stored record with Changed false.
func (c *Controller) Migrate(ctx context.Context, id string, target core.Type) (Result, error) {
	if id == "" {
		return Result{}, ErrNoID
	}
	cur, err := c.repo.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", id, err)
	}
	return c.apply(ctx, cur, target, c.classifier.Explain(cur))
}

// AcceptSuggestion migrates the record to the classifier's suggestion.
// When nothing matches the record is confirmed as its current type.
func (c *Controller) AcceptSuggestion(ctx context.Context, id string) (Result, error) {
	if id == "" {
		return Result{}, ErrNoID
	}
	cur, err := c.repo.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", id, err)
	}
	s := c.classifier.Explain(cur)
	return c.apply(ctx, cur, s.Suggested, s)
}

func (c *Controller) apply(ctx context.Context, cur core.Transaction, target core.Type, s classify.Suggestion) (Result, error) {
	next, changed, err := cur.Migrate(target, c.now())
	if err != nil {
		return Result{}, err
	}
	if !changed {
		slog.DebugContext(ctx, "Migration skipped, record already migrated", "id", cur.ID, "type", cur.Type)
		return Result{Transaction: cur, Suggestion: s}, nil
	}
	next.UpdatedAt = next.MigratedAt

	won, err := c.repo.MarkMigrated(ctx, cur.ID, next.Type, next.MigratedAt)
	if err != nil {
		return Result{}, fmt.Errorf("mark migrated %s: %w", cur.ID, err)
	}
	if !won {
		// Another request migrated it between our read and write.
		stored, err := c.repo.Get(ctx, cur.ID)
		if err != nil {
			return Result{}, fmt.Errorf("reload %s: %w", cur.ID, err)
		}
		slog.InfoContext(ctx, "Concurrent migration detected, returning stored record", "id", cur.ID, "type", stored.Type)
		return Result{Transaction: stored, Suggestion: s}, nil
	}

	slog.InfoContext(ctx, "Transaction migrated",
		"id", cur.ID,
		"from", cur.Type,
		"to", next.Type,
		"suggested", s.Suggested,
		"reason", s.Reason)

	if c.events != nil {
		if err := c.events.PublishTransactionEvent(ctx, amqp.EventMigrated, next, cur.Type); err != nil {
			slog.ErrorContext(ctx, "Failed to publish migration event", "id", cur.ID, "error", err)
		}
	}
	return Result{Transaction: next, Changed: true, Suggestion: s}, nil
}

// Candidates lists unmigrated legacy records matching f with their
// suggestions, in store order.
func (c *Controller) Candidates(ctx context.Context, f store.Filter) ([]Candidate, error) {
	f.UnmigratedLegacy = true
	txs, err := c.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	out := make([]Candidate, 0, len(txs))
	for _, t := range txs {
		out = append(out, Candidate{Transaction: t, Suggestion: c.classifier.Explain(t)})
	}
	return out, nil
}

// Suggest exposes the classifier for a single record.
func (c *Controller) Suggest(t core.Transaction) classify.Suggestion {
	return c.classifier.Explain(t)
}
