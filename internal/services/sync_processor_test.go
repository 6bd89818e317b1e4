package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
)

type countingBackfill struct {
	calls atomic.Int32
	err   error
}

func (b *countingBackfill) ProcessPending(context.Context) (int, error) {
	b.calls.Add(1)
	return 1, b.err
}

type busyLocker struct{ err error }

func (l busyLocker) Obtain(context.Context, string, time.Duration, *redislock.Options) (*redislock.Lock, error) {
	return nil, l.err
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.LockTTL != 2*time.Minute {
		t.Errorf("expected LockTTL 2m, got %v", config.LockTTL)
	}
	if config.LockKey == "" {
		t.Error("expected a lock key")
	}
}

func TestNewSyncProcessor_FillsDefaults(t *testing.T) {
	p := NewSyncProcessor(&countingBackfill{}, nil, SyncProcessorConfig{})
	if p.config != DefaultSyncProcessorConfig() {
		t.Errorf("config = %+v, want defaults", p.config)
	}
}

func TestSyncProcessor_RunOnceWithoutLocker(t *testing.T) {
	b := &countingBackfill{}
	p := NewSyncProcessor(b, nil, DefaultSyncProcessorConfig())

	ran, err := p.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce() = %v, %v; want true, nil", ran, err)
	}
	if b.calls.Load() != 1 {
		t.Errorf("backfill calls = %d, want 1", b.calls.Load())
	}
}

func TestSyncProcessor_RunOnceSkipsWhenLockHeld(t *testing.T) {
	b := &countingBackfill{}
	p := NewSyncProcessor(b, busyLocker{err: redislock.ErrNotObtained}, DefaultSyncProcessorConfig())

	ran, err := p.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("RunOnce() = %v, %v; want false, nil", ran, err)
	}
	if b.calls.Load() != 0 {
		t.Error("backfill must not run without the lock")
	}
}

func TestSyncProcessor_RunOnceLockError(t *testing.T) {
	p := NewSyncProcessor(&countingBackfill{}, busyLocker{err: errors.New("redis down")}, DefaultSyncProcessorConfig())
	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Error("expected lock error to surface")
	}
}

func TestSyncProcessor_StartStop(t *testing.T) {
	b := &countingBackfill{}
	config := DefaultSyncProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	p := NewSyncProcessor(b, nil, config)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	if !p.IsRunning() {
		t.Error("processor should be running")
	}

	deadline := time.Now().Add(time.Second)
	for b.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if b.calls.Load() == 0 {
		t.Error("backfill never ran")
	}
}
