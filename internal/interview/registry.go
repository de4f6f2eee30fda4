package interview

import (
	"context"
	"sync"
	"time"

	"applicant-interview/internal/shared/telemetry"
)

// Registry holds the open sessions in memory.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry returns an empty registry. Sessions idle for longer than ttl are dropped
// by Sweep; a non-positive ttl disables expiry.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
	}
}

func (r *Registry) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns the open session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle past the TTL and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)
	candidates := r.idle(cutoff)
	if len(candidates) == 0 {
		return 0
	}
	return r.drop(candidates, cutoff)
}

// idle lists the sessions last active before cutoff.
func (r *Registry) idle(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// drop removes the candidates that are still idle past cutoff. A session touched after
// idle listed it stays.
func (r *Registry) drop(candidates []string, cutoff time.Time) int {
	r.mu.Lock()
	var dropped []string
	for _, id := range candidates {
		s, ok := r.sessions[id]
		if !ok || !s.idleSince().Before(cutoff) {
			continue
		}
		delete(r.sessions, id)
		dropped = append(dropped, id)
	}
	r.mu.Unlock()
	for _, id := range dropped {
		telemetry.Info("session.expired", map[string]any{"session_id": id})
	}
	return len(dropped)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
