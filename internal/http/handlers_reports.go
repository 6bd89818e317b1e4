package http

import (
	"net/http"

	"cashflow/internal/log"
	"cashflow/internal/services"
)

// withPeriod parses the report period and hands it to fn. Parse errors
// answer 400 before any store access.
func (s *Server) withPeriod(fn func(http.ResponseWriter, *http.Request, services.Period)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ParsePeriod(r.URL.Query(), s.now())
		if err != nil {
			WriteError(w, r, err)
			return
		}
		fn(w, r, p)
	}
}

func (s *Server) reportFailed(w http.ResponseWriter, r *http.Request, report string, p services.Period, err error) {
	s.appMetrics.reportErrors.Add(1)
	if StatusFor(err) >= 500 {
		fields := log.NewFields().WithPeriod(p.Start.String(), p.End.String())
		fields[log.FieldReport] = report
		s.audit.LogError(r.Context(), "Report failed", err, log.ComponentReports, log.OpReport, fields)
	}
	WriteError(w, r, err)
}

func (s *Server) handleSalesAnalysis(w http.ResponseWriter, r *http.Request) {
	s.withPeriod(func(w http.ResponseWriter, r *http.Request, p services.Period) {
		report, err := s.reports.SalesAnalysis(r.Context(), p)
		if err != nil {
			s.reportFailed(w, r, "sales-analysis", p, err)
			return
		}
		WriteJSON(w, http.StatusOK, newSalesAnalysis(p, report, true))
	})(w, r)
}

// handleSalesPerformance is the metrics-only view of the sales analysis.
func (s *Server) handleSalesPerformance(w http.ResponseWriter, r *http.Request) {
	s.withPeriod(func(w http.ResponseWriter, r *http.Request, p services.Period) {
		report, err := s.reports.SalesAnalysis(r.Context(), p)
		if err != nil {
			s.reportFailed(w, r, "sales-performance", p, err)
			return
		}
		WriteJSON(w, http.StatusOK, newSalesAnalysis(p, report, false))
	})(w, r)
}

func (s *Server) handleSalesComparison(w http.ResponseWriter, r *http.Request) {
	s.withPeriod(func(w http.ResponseWriter, r *http.Request, p services.Period) {
		cmp, err := s.reports.SalesComparison(r.Context(), p)
		if err != nil {
			s.reportFailed(w, r, "sales-comparison", p, err)
			return
		}
		WriteJSON(w, http.StatusOK, newSalesComparison(p, cmp))
	})(w, r)
}

func (s *Server) handleCompleteAnalysis(w http.ResponseWriter, r *http.Request) {
	s.withPeriod(func(w http.ResponseWriter, r *http.Request, p services.Period) {
		a, err := s.reports.CompleteAnalysis(r.Context(), p)
		if err != nil {
			s.reportFailed(w, r, "complete-analysis", p, err)
			return
		}
		WriteJSON(w, http.StatusOK, newCompleteAnalysis(a))
	})(w, r)
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	s.withPeriod(func(w http.ResponseWriter, r *http.Request, p services.Period) {
		rep, err := s.reports.Categories(r.Context(), p)
		if err != nil {
			s.reportFailed(w, r, "categories", p, err)
			return
		}
		WriteJSON(w, http.StatusOK, newCategories(rep))
	})(w, r)
}

func (s *Server) handleSellerRanking(w http.ResponseWriter, r *http.Request) {
	s.withPeriod(func(w http.ResponseWriter, r *http.Request, p services.Period) {
		ranks, err := s.reports.SellerRanking(r.Context(), p)
		if err != nil {
			s.reportFailed(w, r, "seller-ranking", p, err)
			return
		}
		WriteJSON(w, http.StatusOK, newRanking(p, ranks))
	})(w, r)
}
