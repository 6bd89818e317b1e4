package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/migration"
	"cashflow/internal/store"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("load x: %w", store.ErrNotFound), http.StatusNotFound},
		{store.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: income_other -> expense_sale", core.ErrDirectionChange), http.StatusBadRequest},
		{core.ErrInvalidDateRange, http.StatusBadRequest},
		{core.ErrInvalidAmount, http.StatusBadRequest},
		{migration.ErrNoID, http.StatusBadRequest},
		{badRequest("nope"), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteError_HidesInternalMessages(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/transactions", nil)

	w := httptest.NewRecorder()
	WriteError(w, r, errors.New("sqlite: database is locked"))
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusInternalServerError || body.Error != "Internal Server Error" {
		t.Errorf("got %d %q", w.Code, body.Error)
	}

	w = httptest.NewRecorder()
	WriteError(w, r, &requestError{msg: "validation failed", details: []string{"amount is required"}})
	body = ErrorBody{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusBadRequest || len(body.Details) != 1 {
		t.Errorf("got %d %+v", w.Code, body)
	}
}

func TestNumberMarshalsUnquoted(t *testing.T) {
	raw, err := json.Marshal(map[string]number{"v": reais(core.Money{Cents: 15050})})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"v":150.5}` {
		t.Errorf("got %s", raw)
	}
}

func TestCentsRoundsHalfUp(t *testing.T) {
	tests := map[string]int64{"10": 1000, "10.005": 1001, "10.004": 1000, "0.1": 10}
	for in, want := range tests {
		got, err := cents("amount", decimal.RequireFromString(in))
		if err != nil || got.Cents != want {
			t.Errorf("cents(%s) = %d, %v; want %d", in, got.Cents, err, want)
		}
	}
}

func TestCentsRejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"184467440737095526.16", "1000000000000.01", "-1"} {
		_, err := cents("amount", decimal.RequireFromString(in))
		if !errors.Is(err, ErrBadRequest) {
			t.Errorf("cents(%s) err = %v, want ErrBadRequest", in, err)
		}
	}
}
