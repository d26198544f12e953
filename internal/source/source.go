// Package source abstracts video stream acquisition behind an
// open/read/release contract so sessions can run against a real GStreamer
// pipeline or a synthetic generator interchangeably.
package source

import (
	"errors"
	"time"
)

// Public API errors
var (
	// ErrEndOfStream means the source is exhausted and reopening will not
	// produce more frames
	ErrEndOfStream = errors.New("source: end of stream")
	// ErrReadTimeout means no frame arrived within the read bound
	ErrReadTimeout = errors.New("source: read timed out")
	// ErrReleased means the handle was already released
	ErrReleased = errors.New("source: handle released")
)

// PixelFormat identifies the channel order of frame data.
type PixelFormat int

const (
	// FormatRGB is the renderer's expected channel order
	FormatRGB PixelFormat = iota
	// FormatBGR is emitted by sources that decode in OpenCV channel order
	FormatBGR
)

// Frame is one decoded video frame.
type Frame struct {
	// Seq is the monotonic sequence number within one handle's lifetime
	Seq uint64
	// Timestamp is when the frame was decoded
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Format is the channel order of Data
	Format PixelFormat
	// Data contains packed 8-bit pixel data
	Data []byte
	// TraceID is a unique identifier for correlating log lines
	TraceID string
}

// Handle is one open stream. Read blocks until a frame is available, the
// read bound elapses (ErrReadTimeout), or the stream ends (ErrEndOfStream).
// Release is idempotent and frees the underlying resources.
type Handle interface {
	Read() (Frame, error)
	Release()
}

// Source opens video streams. Open blocks up to connectTimeout and returns
// an error if the stream cannot be established within that bound.
type Source interface {
	Open(uri string, connectTimeout time.Duration) (Handle, error)
}
