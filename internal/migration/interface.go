package migration

import (
	"context"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/store"
)

// Repository is the slice of the transaction store the controller needs.
//
//go:generate mockgen -destination=mocks/mock_interface.go -package=mocks -source=interface.go
type Repository interface {
	Get(ctx context.Context, id string) (core.Transaction, error)
	List(ctx context.Context, f store.Filter) ([]core.Transaction, error)
	MarkMigrated(ctx context.Context, id string, target core.Type, at time.Time) (bool, error)
}

// EventPublisher announces completed migrations.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, kind amqp.EventKind, t core.Transaction, previous core.Type) error
}
