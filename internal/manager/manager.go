// Package manager owns at most one active streaming session and routes its
// events to the renderer and logger collaborators. Replacement is an
// exclusive-ownership swap: the old session is detached before the new one
// can emit anything.
package manager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/visiona/camlink/internal/session"
	"github.com/visiona/camlink/internal/source"
)

// Renderer receives the active session's output. The manager serializes all
// calls, so implementations need no locking of their own.
type Renderer interface {
	RenderFrame(pixels []byte, width, height int)
	RenderStats(text string)
	Clear()
}

// Logger receives timestamped, append-only text lines.
type Logger interface {
	Append(line string)
}

// Manager supervises the current session. Only the manager creates or
// detaches sessions; callers interact through StartSession/StopSession.
type Manager struct {
	src      source.Source
	renderer Renderer
	logger   Logger

	// mu guards current/detach ownership
	mu      sync.Mutex
	current *session.Session
	detach  chan struct{}

	// deliverMu serializes event dispatch against detachment: closing
	// detach under this lock guarantees no event from a detached session
	// reaches the collaborators after the detaching call returns.
	deliverMu sync.Mutex
}

// New constructs a manager. All sessions it starts read from src.
func New(src source.Source, renderer Renderer, logger Logger) *Manager {
	return &Manager{
		src:      src,
		renderer: renderer,
		logger:   logger,
	}
}

// StartSession replaces the current session, if any, with a fresh one. The
// old session is detached and told to stop but not waited for; it unwinds on
// its own. After StartSession returns, events reaching the renderer
// originate only from the new session.
func (m *Manager) StartSession(cfg session.Config) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detachLocked()

	s := session.New(cfg, m.src)
	detach := make(chan struct{})
	m.current = s
	m.detach = detach

	go m.forward(s, detach)
	s.Start()

	slog.Info("manager: session started", "id", s.ID(), "uri", cfg.SourceURI)
	return s.ID()
}

// StopSession detaches the current session and clears the displayed frame.
// Safe to call when no session is active.
func (m *Manager) StopSession() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}
	slog.Info("manager: session stopped", "id", m.current.ID())
	m.detachLocked()
	m.renderer.Clear()
}

// ActiveID returns the current session's ID, or "" when none is active.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.ID()
}

// Shutdown detaches the current session and, unlike every other path, waits
// up to grace for its loop to unwind. Used at process exit.
func (m *Manager) Shutdown(grace time.Duration) {
	m.mu.Lock()
	s := m.current
	m.detachLocked()
	m.mu.Unlock()

	if s == nil {
		return
	}

	select {
	case <-s.Done():
		slog.Info("manager: session unwound", "id", s.ID())
	case <-time.After(grace):
		slog.Warn("manager: session still unwinding after grace period", "id", s.ID(), "grace", grace)
	}
}

// detachLocked unsubscribes and stops the current session. Caller holds mu.
// Closing detach under deliverMu waits out any in-flight dispatch, so no
// straggling event can follow.
func (m *Manager) detachLocked() {
	if m.current == nil {
		return
	}

	m.deliverMu.Lock()
	close(m.detach)
	m.deliverMu.Unlock()

	m.current.Stop()
	m.current = nil
	m.detach = nil
}

// forward drains one session's events into the collaborators until the
// session ends or is detached.
func (m *Manager) forward(s *session.Session, detach <-chan struct{}) {
	for {
		select {
		case <-detach:
			return
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			m.deliver(detach, ev)
		}
	}
}

func (m *Manager) deliver(detach <-chan struct{}, ev session.Event) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	// Re-check under the lock: the session may have been detached between
	// receiving the event and getting here.
	select {
	case <-detach:
		return
	default:
	}

	switch e := ev.(type) {
	case session.FrameEvent:
		m.renderer.RenderFrame(e.Pixels, e.Width, e.Height)
	case session.StatsEvent:
		m.renderer.RenderStats(e.Text)
	case session.LogEvent:
		m.logger.Append(timestamped(e.Text))
	case session.EndedEvent:
		m.logger.Append(timestamped("session ended: " + e.Reason.String()))
	}
}

func timestamped(text string) string {
	return time.Now().Format("15:04:05") + " " + text
}
