package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"cashflow/internal/analytics"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/store"
)

// Period is an inclusive date range.
type Period struct {
	Start core.Date
	End   core.Date
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Period {
	start := core.NewDate(t.Year(), int(t.Month()), 1)
	return Period{Start: start, End: core.Date{Time: start.AddDate(0, 1, -1)}}
}

func (p Period) Validate() error {
	if p.Start.After(p.End.Time) {
		return core.ErrInvalidDateRange
	}
	return nil
}

func (p Period) String() string {
	return p.Start.String() + ".." + p.End.String()
}

// Previous is the period of equal length ending the day before p starts.
func (p Period) Previous() Period {
	start, end := analytics.PreviousPeriod(p.Start, p.End)
	return Period{Start: start, End: end}
}

// CompleteAnalysis is the summary together with the records it came from.
type CompleteAnalysis struct {
	Period       Period
	Summary      analytics.Summary
	Transactions []core.Transaction
}

// CategoryReport splits the distribution by direction.
type CategoryReport struct {
	Period         Period
	Income         []analytics.CategoryShare
	Expense        []analytics.CategoryShare
	PaymentMethods []analytics.CategoryShare
}

// ReportService answers the read-only report queries over a store
// snapshot, reading through the report cache.
type ReportService struct {
	reader store.TransactionReader
	cache  cache.ReportCache
	group  singleflight.Group
	now    func() time.Time
}

func NewReportService(reader store.TransactionReader, reports cache.ReportCache) *ReportService {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	return &ReportService{reader: reader, cache: reports, now: time.Now}
}

// WithClock replaces the clock used to decide which records are dated
// today. It returns s for chaining.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

func (s *ReportService) Summary(ctx context.Context, p Period) (analytics.Dashboard, error) {
	today := core.DateOf(s.now())
	key := "summary:" + p.String() + ":" + today.String()
	return cached(ctx, s, key, func(ctx context.Context) (analytics.Dashboard, error) {
		txs, err := s.snapshot(ctx, p)
		if err != nil {
			return analytics.Dashboard{}, err
		}
		return analytics.SummarizeDashboard(txs, today), nil
	})
}

func (s *ReportService) SalesAnalysis(ctx context.Context, p Period) (analytics.SalesReport, error) {
	return cached(ctx, s, "sales:"+p.String(), func(ctx context.Context) (analytics.SalesReport, error) {
		txs, err := s.snapshot(ctx, p)
		if err != nil {
			return analytics.SalesReport{}, err
		}
		return analytics.AnalyzeSales(txs), nil
	})
}

// SalesComparison compares p with the preceding period of equal length.
// Both periods are read concurrently.
func (s *ReportService) SalesComparison(ctx context.Context, p Period) (analytics.SalesComparison, error) {
	if err := p.Validate(); err != nil {
		return analytics.SalesComparison{}, err
	}
	var current, previous analytics.SalesReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.SalesAnalysis(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.SalesAnalysis(gctx, p.Previous())
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.SalesComparison{}, err
	}
	return analytics.ComparePeriods(current.Metrics, previous.Metrics), nil
}

func (s *ReportService) CompleteAnalysis(ctx context.Context, p Period) (CompleteAnalysis, error) {
	return cached(ctx, s, "complete:"+p.String(), func(ctx context.Context) (CompleteAnalysis, error) {
		txs, err := s.snapshot(ctx, p)
		if err != nil {
			return CompleteAnalysis{}, err
		}
		return CompleteAnalysis{Period: p, Summary: analytics.Summarize(txs), Transactions: txs}, nil
	})
}

func (s *ReportService) Categories(ctx context.Context, p Period) (CategoryReport, error) {
	return cached(ctx, s, "categories:"+p.String(), func(ctx context.Context) (CategoryReport, error) {
		txs, err := s.snapshot(ctx, p)
		if err != nil {
			return CategoryReport{}, err
		}
		return CategoryReport{
			Period:         p,
			Income:         analytics.CategoryDistribution(txs),
			Expense:        analytics.ExpenseCategoryDistribution(txs),
			PaymentMethods: analytics.PaymentMethodDistribution(txs),
		}, nil
	})
}

func (s *ReportService) SellerRanking(ctx context.Context, p Period) ([]analytics.SellerRank, error) {
	report, err := s.SalesAnalysis(ctx, p)
	if err != nil {
		return nil, err
	}
	return analytics.RankSellers(report.Lines), nil
}

func (s *ReportService) snapshot(ctx context.Context, p Period) ([]core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.reader.List(ctx, store.Filter{Start: p.Start, End: p.End})
	if err != nil {
		return nil, fmt.Errorf("read period %s: %w", p, err)
	}
	return txs, nil
}

// cached serves key from the report cache, computing it at most once per
// key across concurrent callers on a miss. Cache failures degrade to a
// direct computation.
func cached[T any](ctx context.Context, s *ReportService, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "Report cache read failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		slog.WarnContext(ctx, "Discarding undecodable cached report", "key", key)
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(ctx, key, raw); err != nil {
				slog.WarnContext(ctx, "Report cache write failed", "key", key, "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		slog.DebugContext(ctx, "Report computation shared", "key", key)
	}
	return v.(T), nil
}
