package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type guardEntry struct {
	token     string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

const sweepInterval = time.Minute

// MemoryGuardRepository keeps guards and counters in process. It only serializes
// attempts within a single instance.
type MemoryGuardRepository struct {
	mu         sync.Mutex
	guards     map[string]guardEntry
	rateLimits map[string]*rateLimitEntry
	lastSweep  time.Time
	now        func() time.Time
}

func NewMemoryGuardRepository() *MemoryGuardRepository {
	return &MemoryGuardRepository{
		guards:     make(map[string]guardEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryGuardRepository) AcquireSlot(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)
	if g, ok := r.guards[key]; ok && now.Before(g.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	r.guards[key] = guardEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (r *MemoryGuardRepository) ReleaseSlot(_ context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.guards[key]; ok && g.token == token {
		delete(r.guards, key)
	}
	return nil
}

func (r *MemoryGuardRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// sweep drops expired guards and counters at most once per sweepInterval. Callers hold mu.
func (r *MemoryGuardRepository) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now

	for key, g := range r.guards {
		if !now.Before(g.expiresAt) {
			delete(r.guards, key)
		}
	}
	for key, e := range r.rateLimits {
		if now.After(e.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
}

// Len reports how many guards and counters are held.
func (r *MemoryGuardRepository) Len() (guards, rateLimits int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guards), len(r.rateLimits)
}
