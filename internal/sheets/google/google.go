// Package google mirrors the ledger into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashflow/internal/core"
	ports "cashflow/internal/sheets"
)

const defaultSheet = "Lancamentos"

var _ ports.LedgerMirror = (*Client)(nil)

// Config selects the spreadsheet and the credentials to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheet
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id, ledgerSheet: sheet}, nil
}

// newSheetsService prefers inline JSON, then the file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var creds []byte
	switch {
	case inline != "":
		creds = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "inline_credentials", inline != "")
	return svc, nil
}

// Upsert writes the ledger row of t. Rows are located by the ID in column A.
func (c *Client) Upsert(ctx context.Context, t core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if t.ID == "" {
		return "", errors.New("transaction id is required")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return "", err
		}
	}
	row := rowFor(ids, t.ID)
	rng := fmt.Sprintf("%s!A%d:%s%d", c.ledgerSheet, row, lastColumn, row)
	vr := &gsheet.ValueRange{Values: [][]any{ledgerRow(t)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write %s: %w", rng, err)
	}
	return rng, nil
}

// Remove clears the row holding id.
func (c *Client) Remove(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(ids, id)
	if idx < 0 {
		slog.DebugContext(ctx, "Ledger row not found, nothing to remove", "id", id)
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", c.ledgerSheet, idx+1, lastColumn, idx+1)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:%s1", c.ledgerSheet, lastColumn)
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}
