package service

import (
	"sync"

	"github.com/google/uuid"
)

// SessionLocks serializes turn creation, progression and restore per session
type SessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock blocks until the session's lock is held and returns its release func
func (l *SessionLocks) Lock(sessionID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// TryLock is Lock without waiting. ok is false when someone else holds it.
func (l *SessionLocks) TryLock(sessionID uuid.UUID) (unlock func(), ok bool) {
	l.mu.Lock()
	m, found := l.locks[sessionID]
	if !found {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}
