package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// Store keeps extraction sessions in memory. File bytes never leave the
// process and idle sessions are evicted after the TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.ExtractionSession
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*domain.ExtractionSession),
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(_ context.Context, session *domain.ExtractionSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return domain.NewUserError(domain.ErrInvalidInput, "session already exists")
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.ExtractionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Update applies fn to a working copy and commits it only when fn succeeds,
// so a rejected transition leaves no partial changes behind.
func (s *Store) Update(_ context.Context, id string, fn func(*domain.ExtractionSession) error) (*domain.ExtractionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	working := session.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.sessions[id] = working
	return working.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run evicts idle sessions until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.cleanup(); evicted > 0 {
				s.logger.Info("sessions_evicted", "count", evicted)
			}
		}
	}
}

// cleanup drops sessions untouched for longer than the TTL. Sessions with an
// attempt in flight are kept so the attempt can finish.
func (s *Store) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, session := range s.sessions {
		if session.Phase.InFlight() {
			continue
		}
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
