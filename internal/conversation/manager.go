package conversation

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Manager hands out sessions keyed by ID and serializes all work on a given
// session. Two concurrent sends for the same ID run one after the other; sends
// for different IDs do not block each other.
type Manager struct {
	repo Repository

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	mu      sync.Mutex
	session *Session
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo, sessions: make(map[string]*managedSession)}
}

// Acquire returns the session for the given ID, loading it from the
// repository on first use, and locks it. The caller must call the returned
// release function when done.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (*Session, func(), error) {
	m.mu.Lock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		ms = &managedSession{}
		m.sessions[sessionID] = ms
	}
	m.mu.Unlock()

	ms.mu.Lock()
	if ms.session == nil {
		sess := NewSession(sessionID)
		if m.repo != nil {
			hist, err := m.repo.LoadHistory(ctx, sessionID)
			if err != nil {
				ms.mu.Unlock()
				return nil, nil, err
			}
			sess.State = hist.State
			sess.Messages = hist.Messages
		}
		ms.session = sess
	}
	return ms.session, ms.mu.Unlock, nil
}

// Persist writes newly appended messages and the current state through to the
// repository. Callers must hold the session via Acquire.
func (m *Manager) Persist(ctx context.Context, sess *Session, added []*schema.Message) error {
	if m.repo == nil {
		return nil
	}
	for _, msg := range added {
		if err := m.repo.AddMessage(ctx, sess.ID, msg); err != nil {
			return err
		}
	}
	return m.repo.SaveState(ctx, sess.ID, sess.State)
}

// Reset drops the in-memory session and clears its stored history.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if m.repo == nil {
		return nil
	}
	return m.repo.ClearHistory(ctx, sessionID)
}
