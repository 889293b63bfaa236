package session

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph/engine"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

var ErrSessionNotFound = errors.New("session: not found")

// Summary describes a live session.
type Summary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// Manager keeps the live sessions of a process. Sessions never share a
// graph; the manager only hands them out by id.
type Manager struct {
	engine  *engine.Engine
	preview pipeline.PreviewProvider
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a Manager whose sessions use e. preview may be nil.
func NewManager(e *engine.Engine, preview pipeline.PreviewProvider, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		engine:   e,
		preview:  preview,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session. opts are applied after the manager's defaults.
func (m *Manager) Create(opts ...Option) *Session {
	base := []Option{WithLogger(m.log)}
	if m.preview != nil {
		base = append(base, WithPreviewProvider(m.preview))
	}
	s := New(m.engine, append(base, opts...)...)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Info("session created", zap.String("session", s.ID))
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close drops a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.log.Info("session closed", zap.String("session", id))
	return nil
}

// List returns a summary of every session, sorted by id.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		g := s.Graph()
		out = append(out, Summary{ID: s.ID, Name: s.Name, NodeCount: g.Len(), EdgeCount: len(g.Edges())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
