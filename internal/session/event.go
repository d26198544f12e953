// Package session owns one live-preview lifecycle: it opens a video source,
// runs the decode loop, retries or ends on read failures per policy, and
// emits frames, per-second statistics and log lines as typed events.
package session

// EndReason says why a session terminated.
type EndReason int

const (
	// EndStopped means Stop was called
	EndStopped EndReason = iota
	// EndConnectFailure means the source could not be opened (or reopened)
	EndConnectFailure
	// EndOfStream means the source was exhausted
	EndOfStream
)

// String returns a human-readable name for the end reason.
func (r EndReason) String() string {
	switch r {
	case EndStopped:
		return "stopped"
	case EndConnectFailure:
		return "connect_failure"
	case EndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Event is the tagged union delivered on a session's event channel. Within
// one session events arrive in production order and Ended is always last,
// after which the channel is closed.
type Event interface {
	sessionEvent()
}

// FrameEvent carries one decoded frame in RGB channel order.
type FrameEvent struct {
	SessionID string
	Seq       uint64
	Width     int
	Height    int
	Pixels    []byte
	TraceID   string
}

// StatsEvent carries one statistics window: resolution, measured fps and raw
// throughput, emitted once per ~1 second while frames flow.
type StatsEvent struct {
	SessionID   string
	Text        string
	Width       int
	Height      int
	FPS         float64
	BytesPerSec float64
}

// LogEvent carries one human-readable line about the session's progress.
type LogEvent struct {
	SessionID string
	Text      string
}

// EndedEvent is the final event of every session.
type EndedEvent struct {
	SessionID string
	Reason    EndReason
}

func (FrameEvent) sessionEvent() {}
func (StatsEvent) sessionEvent() {}
func (LogEvent) sessionEvent()   {}
func (EndedEvent) sessionEvent() {}
