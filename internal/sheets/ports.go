// Package sheets declares the outbound port for the spreadsheet ledger
// mirror maintained by the worker.
package sheets

import (
	"context"

	"cashflow/internal/core"
)

type (
	// LedgerMirror keeps one spreadsheet row per transaction, keyed by ID.
	LedgerMirror interface {
		// Upsert writes t to its row, appending one if the ID is new.
		Upsert(ctx context.Context, t core.Transaction) (rowRef string, err error)
		// Remove clears the row of id. An unknown id is not an error.
		Remove(ctx context.Context, id string) error
	}
)
