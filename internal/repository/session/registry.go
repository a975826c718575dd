package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	"github.com/tablechat/tablechat/internal/metrics"
)

// Registry maps room identifiers to sessions. It is the only shared mutable
// state in the service: insertion is atomic with respect to readers, and a
// reader can never observe a partially constructed session because sessions
// are fully built before Put.
//
// Sessions are evicted when they exceed the TTL (janitor) or when the
// registry is at capacity (least recently used goes first).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	maxSessions int
	ttl         time.Duration
	logger      *zap.Logger

	janitorStop chan struct{}
	janitorOnce sync.Once

	now func() time.Time // overridable in tests
}

type entry struct {
	session    domain.Session
	lastAccess atomic.Int64 // unix nanos
}

// NewRegistry creates a session registry.
func NewRegistry(maxSessions int, ttl time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:    make(map[string]*entry),
		maxSessions: maxSessions,
		ttl:         ttl,
		logger:      logger,
		janitorStop: make(chan struct{}),
		now:         time.Now,
	}
}

// Put registers a fully built session under a fresh room identifier and
// returns the stored session. Evicts the least recently used session first
// when the registry is at capacity.
func (r *Registry) Put(index domain.Index, chunkCount int, filename string) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxSessions {
		r.evictLRULocked()
	}

	id := uuid.NewString()
	for _, exists := r.sessions[id]; exists; _, exists = r.sessions[id] {
		id = uuid.NewString()
	}

	s := domain.Session{
		ID:         id,
		Index:      index,
		ChunkCount: chunkCount,
		Filename:   filename,
		CreatedAt:  r.now(),
	}
	e := &entry{session: s}
	e.lastAccess.Store(r.now().UnixNano())
	r.sessions[id] = e

	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return s
}

// Get looks up a session by room identifier and refreshes its last-access
// time. Returns domain.ErrRoomNotFound for unknown identifiers.
func (r *Registry) Get(roomID string) (domain.Session, error) {
	r.mu.RLock()
	e, ok := r.sessions[roomID]
	r.mu.RUnlock()
	if !ok {
		return domain.Session{}, domain.ErrRoomNotFound
	}
	e.lastAccess.Store(r.now().UnixNano())
	return e.session, nil
}

// Evict removes a session explicitly. Returns true if it existed.
func (r *Registry) Evict(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[roomID]; !ok {
		return false
	}
	delete(r.sessions, roomID)
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartJanitor launches a goroutine that periodically evicts expired
// sessions. Stopped by Close.
func (r *Registry) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.janitorStop:
				return
			case <-ticker.C:
				r.EvictExpired()
			}
		}
	}()
}

// Close stops the janitor. Safe to call multiple times.
func (r *Registry) Close() {
	r.janitorOnce.Do(func() { close(r.janitorStop) })
}

// EvictExpired removes all sessions idle longer than the TTL and returns how
// many were evicted.
func (r *Registry) EvictExpired() int {
	cutoff := r.now().Add(-r.ttl).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.sessions {
		if e.lastAccess.Load() < cutoff {
			delete(r.sessions, id)
			evicted++
			metrics.SessionEvictionsTotal.WithLabelValues("ttl").Inc()
		}
	}

	if evicted > 0 {
		metrics.SessionsActive.Set(float64(len(r.sessions)))
		r.logger.Info("Evicted expired sessions",
			zap.Int("evicted", evicted),
			zap.Int("remaining", len(r.sessions)),
		)
	}
	return evicted
}

// evictLRULocked removes the least recently used session. Caller holds the lock.
func (r *Registry) evictLRULocked() {
	var (
		oldestID string
		oldest   int64
	)
	for id, e := range r.sessions {
		if last := e.lastAccess.Load(); oldestID == "" || last < oldest {
			oldestID = id
			oldest = last
		}
	}
	if oldestID == "" {
		return
	}

	delete(r.sessions, oldestID)
	metrics.SessionEvictionsTotal.WithLabelValues("capacity").Inc()
	r.logger.Warn("Registry at capacity, evicted least recently used session",
		zap.String("room_id", oldestID),
		zap.Int("max_sessions", r.maxSessions),
	)
}
