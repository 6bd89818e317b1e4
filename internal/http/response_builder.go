// Package http exposes the cash-flow core as a JSON REST API.
//
// This file implements the response side: JSON encoding and the single
// mapping from domain errors to HTTP status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/migration"
	"cashflow/internal/store"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// number renders a decimal as an unquoted JSON number.
type number struct{ decimal.Decimal }

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(n.String()), nil
}

func num(d decimal.Decimal) number { return number{d} }

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", log.FieldError, err, log.FieldStatusCode, status)
	}
}

// StatusFor maps domain and request errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidTime),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrDirectionChange),
		errors.Is(err, core.ErrInvalidDateRange),
		errors.Is(err, migration.ErrNoID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the JSON error body for err. Internal errors are
// logged and reported without their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error()}

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		body.Details = reqErr.details
	}

	switch {
	case status >= 500:
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentHTTP)
		body = ErrorBody{Error: http.StatusText(status)}
	case status != http.StatusNotFound:
		slog.WarnContext(r.Context(), "Request rejected",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status)
	}
	WriteJSON(w, status, body)
}
