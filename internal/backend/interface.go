package backend

import (
	"context"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/classify"
	"cashflow/internal/migration"
	"cashflow/internal/services"
	"cashflow/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired store, its collaborators and the services
// built on top of them.
type BackendResult struct {
	Store        store.Store
	Events       migration.EventPublisher // nil when AMQP is not configured
	Reports      cache.ReportCache
	Classifier   *classify.Classifier
	Migrations   *migration.Controller
	Transactions *services.TransactionService
	ReportQuery  *services.ReportService
	Cleanup      CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend seed files
	SeedDir string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report cache
	ReportCache    CacheType
	ReportCacheTTL time.Duration
	RedisURL       string

	ClassifierKeywordsFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CacheType selects the report cache implementation.
type CacheType string

const (
	NoCache     CacheType = "none"
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (ct CacheType) IsValid() bool {
	switch ct {
	case NoCache, MemoryCache, RedisCache:
		return true
	default:
		return false
	}
}
