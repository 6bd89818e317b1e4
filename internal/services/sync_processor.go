package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// Backfiller mirrors one batch of pending transactions.
type Backfiller interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Locker obtains a distributed lock. *redislock.Client satisfies it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// SyncProcessorConfig holds configuration for the sync processor.
type SyncProcessorConfig struct {
	// PollInterval is how often pending mirrors are back-filled (default: 30s).
	PollInterval time.Duration
	// LockKey names the lock shared by all worker instances.
	LockKey string
	// LockTTL bounds how long one instance may hold the lock (default: 2m).
	LockTTL time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		LockKey:      "cashflow:lock:mirror-backfill",
		LockTTL:      2 * time.Minute,
	}
}

// SyncProcessor periodically back-fills the ledger mirror. With a Locker,
// only the instance holding the lock runs a given cycle.
type SyncProcessor struct {
	backfill Backfiller
	locker   Locker
	config   SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor wires the processor; locker may be nil for a single
// worker deployment.
func NewSyncProcessor(backfill Backfiller, locker Locker, config SyncProcessorConfig) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.LockKey == "" {
		config.LockKey = def.LockKey
	}
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}
	return &SyncProcessor{backfill: backfill, locker: locker, config: config}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"distributed_lock", p.locker != nil)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Mirror back-fill failed", "error", err)
			}
		}
	}
}

// RunOnce performs one back-fill cycle. It reports false without error
// when another instance holds the lock.
func (p *SyncProcessor) RunOnce(ctx context.Context) (bool, error) {
	if p.locker != nil {
		lock, err := p.locker.Obtain(ctx, p.config.LockKey, p.config.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			slog.DebugContext(ctx, "Back-fill lock held by another worker", "key", p.config.LockKey)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("obtain back-fill lock: %w", err)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				slog.WarnContext(ctx, "Failed to release back-fill lock", "error", err)
			}
		}()
	}

	synced, err := p.backfill.ProcessPending(ctx)
	if err != nil {
		return true, err
	}
	if synced > 0 {
		slog.InfoContext(ctx, "Mirror back-fill cycle completed", "synced", synced)
	}
	return true, nil
}
