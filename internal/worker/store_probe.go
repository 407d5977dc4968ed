package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"todoTracker/internal/logger"

	"go.uber.org/zap"
)

var ErrNotChecked = errors.New("store has not been checked yet")

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StoreProbe pings the store on an interval and keeps the latest result so
// readiness requests never wait on the database.
type StoreProbe struct {
	store    HealthChecker
	interval time.Duration
	timeout  time.Duration

	mu        sync.RWMutex
	lastErr   error
	checkedAt time.Time
}

func NewStoreProbe(store HealthChecker, interval *time.Duration) *StoreProbe {
	intervalToSet := 15 * time.Second
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}

	return &StoreProbe{
		store:    store,
		interval: intervalToSet,
		timeout:  5 * time.Second,
		lastErr:  ErrNotChecked,
	}
}

func (p *StoreProbe) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ticker.C:
			p.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: store probe stopping")
			return
		}
	}
}

func (p *StoreProbe) Check(ctx context.Context) error {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.store.HealthCheck(checkCtx)

	p.mu.Lock()
	wasReady := p.lastErr == nil
	p.lastErr = err
	p.checkedAt = time.Now()
	p.mu.Unlock()

	switch {
	case err != nil && wasReady:
		logger.Warn("Worker: store became unavailable", zap.Error(err), zap.Duration("ms", time.Since(start)))
	case err != nil:
		logger.Debug("Worker: store still unavailable", zap.Error(err))
	case !wasReady:
		logger.Info("Worker: store is available", zap.Duration("ms", time.Since(start)))
	}
	return err
}

// Ready reports the result of the latest check.
func (p *StoreProbe) Ready() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *StoreProbe) CheckedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.checkedAt
}
