package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/metrics"
	"audio-transcriber/internal/app/workflow"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one upload page: a controller plus bookkeeping for eviction.
type Session struct {
	ID         string
	Controller *workflow.Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen is the time of the most recent Get.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// ControllerFactory builds the controller for a new session.
type ControllerFactory func() *workflow.Controller

// Store keeps sessions in memory and evicts the idle ones.
type Store struct {
	newController ControllerFactory
	ttl           time.Duration
	logger        *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(factory ControllerFactory, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Store {
	return &Store{
		newController: factory,
		ttl:           ttl,
		logger:        logging.OrNop(logger),
		metrics:       m,
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// Create starts a new session in the Idle state.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Controller: s.newController(),
		CreatedAt:  now,
		lastSeen:   now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	s.logger.Debug("Session created", zap.String("session_id", sess.ID))
	return sess
}

// Get returns the session and marks it as seen.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete removes the session and closes its controller.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.Controller.Close()
	s.metrics.SetActiveSessions(n)
	s.logger.Debug("Session deleted", zap.String("session_id", id))
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions not seen for longer than the TTL. Sessions with a backend call
// still running or an open event stream are kept.
func (s *Store) Sweep(now time.Time) int {
	var evicted []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) <= s.ttl || sess.Controller.Busy() || sess.Controller.Watched() {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, sess)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.Controller.Close()
	}
	if len(evicted) > 0 {
		s.metrics.SetActiveSessions(n)
		s.logger.Info("Evicted idle sessions", zap.Int("evicted", len(evicted)), zap.Int("remaining", n))
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done, then closes every remaining session.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

func (s *Store) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close()
	}
	s.metrics.SetActiveSessions(0)
}
