package memory

import (
	"sync"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/engine/state"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

// LiveSession is the in-memory half of an active game session. The state
// manager belongs to whichever turn holds the session lock; readers use the
// last committed snapshot instead.
type LiveSession struct {
	ID       uuid.UUID
	PlayerID string

	mu        sync.RWMutex
	state     *state.Manager
	committed *store.SessionState
	chained   int
	logger    logger.ILogger
}

func NewLiveSession(id uuid.UUID, playerID string, st *store.SessionState, logger logger.ILogger) (*LiveSession, error) {
	ls := &LiveSession{ID: id, PlayerID: playerID, logger: logger}
	if err := ls.Replace(st); err != nil {
		return nil, err
	}
	return ls, nil
}

// State is the mutable manager. Only the turn holding the session lock may use it.
func (s *LiveSession) State() *state.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a private copy of the last committed state
func (s *LiveSession) Snapshot() (*store.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed.Clone()
}

// Commit publishes the live state as the new committed snapshot
func (s *LiveSession) Commit() (*store.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.state.Session().Clone()
	if err != nil {
		return nil, err
	}
	s.committed = snap
	return snap.Clone()
}

// Replace swaps in a whole new state, used on session start and restore
func (s *LiveSession) Replace(st *store.SessionState) error {
	committed, err := st.Clone()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.NewManager(st, s.logger)
	s.committed = committed
	return nil
}

// ChainedSimulated is the number of simulated turns since the last external one
func (s *LiveSession) ChainedSimulated() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chained
}

func (s *LiveSession) RecordTurn(simulated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if simulated {
		s.chained++
		return
	}
	s.chained = 0
}

// Rollback throws away uncommitted changes of the live state
func (s *LiveSession) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored, err := s.committed.Clone()
	if err != nil {
		return err
	}
	s.state = state.NewManager(restored, s.logger)
	return nil
}
