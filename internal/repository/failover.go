package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"slotbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverGuardRepository routes to the primary (Redis) store and falls back to the
// in-memory one while the primary is failing, retrying the primary every minute.
type FailoverGuardRepository struct {
	primary   domain.GuardRepository
	fallback  domain.GuardRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverGuardRepository(primary, fallback domain.GuardRepository, logger *zerolog.Logger) *FailoverGuardRepository {
	return &FailoverGuardRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverGuardRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary guard repository failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the call should go to the primary, allowing one probe per
// recovery interval while down.
func (r *FailoverGuardRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverGuardRepository) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary guard repository recovered")
	}
}

func (r *FailoverGuardRepository) AcquireSlot(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if r.usePrimary() {
		token, ok, err := r.primary.AcquireSlot(ctx, key, ttl)
		if err == nil {
			r.recovered()
			return token, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.AcquireSlot(ctx, key, ttl)
}

// ReleaseSlot releases on both stores since the guard may have been taken on either.
func (r *FailoverGuardRepository) ReleaseSlot(ctx context.Context, key, token string) error {
	if !r.isDown.Load() {
		if err := r.primary.ReleaseSlot(ctx, key, token); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.ReleaseSlot(ctx, key, token)
}

func (r *FailoverGuardRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
