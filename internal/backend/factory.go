package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/classify"
	"cashflow/internal/migration"
	"cashflow/internal/services"
	"cashflow/internal/storage"
	"cashflow/internal/store"
	"cashflow/internal/store/memory"
)

const localReportEntries = 256

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the store, the optional event publisher and report
// cache, and the services over them. Optional collaborators that fail to
// start are logged and skipped; the store failing is fatal.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	classifier, err := f.createClassifier(config)
	if err != nil {
		return nil, err
	}

	st, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	// Keep the interface nil when AMQP is off so nil checks downstream hold.
	var events migration.EventPublisher
	if client := f.createPublisher(config); client != nil {
		events = client
	}

	reports, closeReports := f.createReportCache(ctx, config)

	migrations := migration.NewController(st, classifier, events)
	txs := services.NewTransactionService(st, migrations, events, reports)

	return &BackendResult{
		Store:        st,
		Events:       events,
		Reports:      reports,
		Classifier:   classifier,
		Migrations:   migrations,
		Transactions: txs,
		ReportQuery:  services.NewReportService(st, reports),
		Cleanup: func() error {
			return errors.Join(txs.Close(), closeReports())
		},
	}, nil
}

func (f *DefaultFactory) createStore(config Config) (store.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		dir := config.SeedDir
		if dir == "" {
			dir = "."
		}
		f.logger.Info("Initialized memory backend", "seed_dir", dir)
		return memory.NewFromFiles(dir), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createClassifier(config Config) (*classify.Classifier, error) {
	if config.ClassifierKeywordsFile == "" {
		return classify.Default(), nil
	}
	kw, err := classify.LoadKeywords(config.ClassifierKeywordsFile)
	if err != nil {
		return nil, err
	}
	c, err := classify.New(kw)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	f.logger.Info("Loaded classifier keywords",
		"file", config.ClassifierKeywordsFile,
		"sale_keywords", len(kw.Sale),
		"supplier_keywords", len(kw.Supplier))
	return c, nil
}

func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
	return client
}

// createReportCache falls back to the local cache when Redis is
// unreachable at startup.
func (f *DefaultFactory) createReportCache(ctx context.Context, config Config) (cache.ReportCache, func() error) {
	noop := func() error { return nil }
	switch config.ReportCache {
	case NoCache:
		return cache.NoopReportCache{}, noop
	case RedisCache:
		rc, err := cache.NewRedisReportCache(ctx, config.RedisURL, "", config.ReportCacheTTL)
		if err == nil {
			f.logger.Info("Using Redis report cache", "ttl", config.ReportCacheTTL)
			return rc, rc.Close
		}
		f.logger.Warn("Redis report cache unavailable, using local cache", "error", err)
	}

	local := cache.NewLocalReportCache(localReportEntries, config.ReportCacheTTL)
	manager := cache.NewManager()
	manager.Register(local)
	manager.StartCleanup(config.ReportCacheTTL)
	return local, func() error {
		manager.Stop()
		return nil
	}
}
