package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/camlink/internal/source"
)

// RetryPolicy selects what a post-connect read failure means.
type RetryPolicy int

const (
	// RetryOnReadFailure releases the source, backs off and reopens.
	// Repeats until Stop or a reopen failure.
	RetryOnReadFailure RetryPolicy = iota
	// EndOnReadFailure treats any read failure as terminal end-of-stream.
	EndOnReadFailure
)

// DefaultRetryBackoff is the sleep between release and reopen when
// retrying.
const DefaultRetryBackoff = 500 * time.Millisecond

// Config describes one session. Immutable once passed to New.
type Config struct {
	SourceURI      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryPolicy    RetryPolicy
	RetryBackoff   time.Duration
}

// Session runs one decode loop against one video source. Events are
// delivered on Events() in production order; EndedEvent is always last and
// the channel is closed after it. Sources returning source.ErrEndOfStream
// from Read end the session regardless of policy.
type Session struct {
	id  string
	cfg Config
	src source.Source

	events chan Event

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	startOnce sync.Once
}

// New constructs a session. It does nothing until Start.
func New(cfg Config, src source.Source) *Session {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &Session{
		id:     uuid.New().String(),
		cfg:    cfg,
		src:    src,
		events: make(chan Event, 16),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Events returns the session's event channel. It is closed after the final
// EndedEvent.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the decode loop has fully unwound.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start launches the decode loop. Calling it more than once has no effect.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop requests cancellation. The loop observes it at each iteration
// boundary, so termination takes at most one read timeout plus one backoff
// interval. Idempotent, safe before Start and safe to call concurrently.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Session) stopRequested() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)

	// A stop that landed before the loop ran must not pay for a connect.
	if s.stopRequested() {
		s.finishStopped()
		return
	}

	slog.Info("session: connecting", "id", s.id, "uri", s.cfg.SourceURI)

	handle, err := s.src.Open(s.cfg.SourceURI, s.cfg.ConnectTimeout)
	if err != nil {
		slog.Error("session: connect failed", "id", s.id, "uri", s.cfg.SourceURI, "error", err)
		s.emit(LogEvent{SessionID: s.id, Text: "connect failed: " + err.Error()})
		s.emit(EndedEvent{SessionID: s.id, Reason: EndConnectFailure})
		return
	}
	defer func() { handle.Release() }()

	slog.Info("session: streaming", "id", s.id, "uri", s.cfg.SourceURI)
	window := newStatsWindow(time.Now())

	for {
		if s.stopRequested() {
			s.finishStopped()
			return
		}

		frame, err := handle.Read()
		if err != nil {
			if s.stopRequested() {
				s.finishStopped()
				return
			}

			if errors.Is(err, source.ErrEndOfStream) || s.cfg.RetryPolicy == EndOnReadFailure {
				slog.Info("session: end of stream", "id", s.id, "error", err)
				s.emit(LogEvent{SessionID: s.id, Text: "EOF"})
				s.emit(EndedEvent{SessionID: s.id, Reason: EndOfStream})
				return
			}

			slog.Warn("session: signal lost, retrying", "id", s.id, "error", err, "backoff", s.cfg.RetryBackoff)
			s.emit(LogEvent{SessionID: s.id, Text: "signal lost, retrying"})

			handle.Release()
			select {
			case <-time.After(s.cfg.RetryBackoff):
			case <-s.stopCh:
				s.finishStopped()
				return
			}

			handle, err = s.src.Open(s.cfg.SourceURI, s.cfg.ConnectTimeout)
			if err != nil {
				slog.Error("session: reopen failed", "id", s.id, "error", err)
				s.emit(LogEvent{SessionID: s.id, Text: "connect failed: " + err.Error()})
				s.emit(EndedEvent{SessionID: s.id, Reason: EndConnectFailure})
				// The deferred Release hits the dead handle; make it a no-op.
				handle = noopHandle{}
				return
			}
			continue
		}

		if s.stopRequested() {
			s.finishStopped()
			return
		}

		if ev, ok := window.observe(frame, time.Now()); ok {
			ev.SessionID = s.id
			s.emit(ev)
		}

		pixels, err := toRGB(frame)
		if err != nil {
			// A single bad frame never ends the session, and is not
			// surfaced to the operator to avoid log flooding.
			slog.Debug("session: dropping malformed frame", "id", s.id, "seq", frame.Seq, "error", err)
			continue
		}

		s.emit(FrameEvent{
			SessionID: s.id,
			Seq:       frame.Seq,
			Width:     frame.Width,
			Height:    frame.Height,
			Pixels:    pixels,
			TraceID:   frame.TraceID,
		})
	}
}

func (s *Session) finishStopped() {
	slog.Info("session: stopped", "id", s.id)
	s.emit(EndedEvent{SessionID: s.id, Reason: EndStopped})
}

// emit delivers without ever blocking the decode loop: a subscriber that
// stopped draining (a detached session) must not wedge the loop. A full
// channel drops a FrameEvent outright; Log, Stats and Ended evict the oldest
// queued event to make room, so the terminal EndedEvent always lands.
func (s *Session) emit(ev Event) {
	if _, frame := ev.(FrameEvent); frame {
		select {
		case s.events <- ev:
		default:
			slog.Debug("session: dropping frame, channel full", "id", s.id)
		}
		return
	}

	// Only the decode loop sends on events, so evicting one slot is enough
	// to guarantee the retried send succeeds.
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
			slog.Debug("session: evicted oldest event, channel full", "id", s.id)
		default:
		}
	}
}

// noopHandle stands in for a handle that was already released.
type noopHandle struct{}

func (noopHandle) Read() (source.Frame, error) { return source.Frame{}, source.ErrReleased }
func (noopHandle) Release()                    {}
