package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"birthday-templates/core"
	"birthday-templates/persistence"
	"birthday-templates/render"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// DefaultIdleTimeout closes sessions nobody has used for this long.
const DefaultIdleTimeout = 30 * time.Minute

type Option func(*Manager)

// WithIdleTimeout sets how long an unused session survives.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithDecoder replaces the image decoder.
func WithDecoder(d Decoder) Option {
	return func(m *Manager) { m.decode = d }
}

// Manager is the registry of open editor sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	adapter     *persistence.Adapter
	renderer    *render.Renderer
	decode      Decoder
	idleTimeout time.Duration
}

func NewManager(adapter *persistence.Adapter, renderer *render.Renderer, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		adapter:     adapter,
		renderer:    renderer,
		decode:      render.Decode,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Renderer returns the renderer shared by all sessions.
func (m *Manager) Renderer() *render.Renderer {
	return m.renderer
}

// Open starts a session and begins loading templateID. viewportWidth is
// the client's viewport in CSS pixels; zero selects the default.
func (m *Manager) Open(ctx context.Context, templateID string, viewportWidth float64) (*Session, error) {
	if viewportWidth < 0 || (viewportWidth != 0 && viewportWidth <= render.ViewportMargin) {
		return nil, fmt.Errorf("viewport width %g: %w", viewportWidth, core.ErrInvalidInput)
	}

	s := newSession(ulid.Make().String(), viewportWidth, m.adapter, m.renderer, m.decode)
	if err := s.Load(ctx, templateID); err != nil {
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id":  s.id,
		"template_id": templateID,
		"sessions":    count,
	}).Info("Editor session opened")
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	return s, nil
}

// Close closes and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, core.ErrNotFound)
	}
	s.Close()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle since before now minus the idle timeout.
func (m *Manager) Reap(now time.Time) int {
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		logrus.WithField("sessions", len(idle)).Info("Closed idle editor sessions")
	}
	return len(idle)
}

// Run reaps idle sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.Reap(now)
		case <-ctx.Done():
			m.Shutdown()
			return
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
