package http

import (
	"net/http"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query(), s.now(), true)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), f)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTransactions(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTransaction(t))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, s.validate, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := req.requireForCreate(); err != nil {
		WriteError(w, r, err)
		return
	}
	t, err := req.apply(core.Transaction{})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.appMetrics.writes.Add(1)
	s.audit.LogTransactionWritten(r.Context(), log.OpCreate, created.ID, created.Type.String(), created.Amount.Cents, created.Category)

	w.Header().Set("Location", "/transactions/"+created.ID)
	WriteJSON(w, http.StatusCreated, newTransaction(created))
}

// handleUpdateTransaction applies field corrections. A type different from
// the stored one, or migrate/migrated=true, runs the one-way migration first.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req transactionRequest
	if err := DecodeJSON(w, r, s.validate, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	cur, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	next, err := req.apply(cur)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := s.transactions.Update(r.Context(), next, req.wantsMigration())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.appMetrics.writes.Add(1)
	if res.Migrated {
		s.appMetrics.migrations.Add(1)
		s.audit.LogMigration(r.Context(), id, cur.Type.String(), res.Transaction.Type.String())
	}
	s.audit.LogTransactionWritten(r.Context(), log.OpUpdate, id, res.Transaction.Type.String(), res.Transaction.Amount.Cents, res.Transaction.Category)

	WriteJSON(w, http.StatusOK, newTransaction(res.Transaction))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.transactions.Delete(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	s.appMetrics.writes.Add(1)
	s.audit.LogTransactionWritten(r.Context(), log.OpDelete, id, "", 0, "")
	w.WriteHeader(http.StatusNoContent)
}

// handleMigrateTransaction migrates one record to the requested type, or to
// the classifier's suggestion when the body carries no type.
func (s *Server) handleMigrateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req migrateRequest
	if err := DecodeJSON(w, r, s.validate, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	var target core.Type
	if v := strings.TrimSpace(req.Type); v != "" {
		t, err := core.ParseType(v)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		target = t
	}

	res, err := s.transactions.Migrate(r.Context(), id, target)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if res.Changed {
		s.appMetrics.migrations.Add(1)
		s.audit.LogMigration(r.Context(), id, res.Suggestion.Current.String(), res.Transaction.Type.String())
	}
	WriteJSON(w, http.StatusOK, newMigration(res))
}

func (s *Server) handleMigrationCandidates(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query(), s.now(), false)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	cs, err := s.transactions.Candidates(r.Context(), f)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newCandidates(cs))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	d, err := s.reports.Summary(r.Context(), p)
	if err != nil {
		s.reportFailed(w, r, "summary", p, err)
		return
	}
	WriteJSON(w, http.StatusOK, newSummary(d))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.transactions.Categories(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNil(cats))
}

func (s *Server) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.transactions.PaymentMethods(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNil(methods))
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
