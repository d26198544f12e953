package source

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MockSource generates synthetic frames for tests and bench rigs.
// The zero value opens 64x48 streams at 30 fps indefinitely.
type MockSource struct {
	// Width and Height of generated frames (defaults: 64x48)
	Width  int
	Height int
	// Interval between frames (default: 33ms)
	Interval time.Duration
	// Format of generated frames (default: FormatRGB)
	Format PixelFormat
	// FailConnect makes every Open return an error
	FailConnect bool
	// FailAfter, when > 0, makes Read fail once that many frames were
	// produced by a handle. FailWith selects the error (default
	// ErrReadTimeout).
	FailAfter int
	FailWith  error

	// opens counts Open calls, for reconnect assertions
	opens atomic.Int64
}

// Opens returns how many times Open was called.
func (m *MockSource) Opens() int {
	return int(m.opens.Load())
}

// Open returns a handle producing synthetic frames.
func (m *MockSource) Open(uri string, connectTimeout time.Duration) (Handle, error) {
	m.opens.Add(1)
	if m.FailConnect {
		return nil, fmt.Errorf("mock: cannot open %s", uri)
	}

	width, height := m.Width, m.Height
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 48
	}
	interval := m.Interval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	failWith := m.FailWith
	if failWith == nil {
		failWith = ErrReadTimeout
	}

	return &mockHandle{
		width:     width,
		height:    height,
		interval:  interval,
		format:    m.Format,
		failAfter: m.FailAfter,
		failWith:  failWith,
		released:  make(chan struct{}),
	}, nil
}

type mockHandle struct {
	width     int
	height    int
	interval  time.Duration
	format    PixelFormat
	failAfter int
	failWith  error

	seq         uint64
	releaseOnce sync.Once
	released    chan struct{}
}

func (h *mockHandle) Read() (Frame, error) {
	select {
	case <-h.released:
		return Frame{}, ErrReleased
	case <-time.After(h.interval):
	}

	if h.failAfter > 0 && h.seq >= uint64(h.failAfter) {
		return Frame{}, h.failWith
	}

	h.seq++

	// Horizontal gradient, shifted per frame so consecutive frames differ.
	data := make([]byte, h.width*h.height*3)
	for y := 0; y < h.height; y++ {
		for x := 0; x < h.width; x++ {
			i := (y*h.width + x) * 3
			data[i] = byte((x + int(h.seq)) % 256)
			data[i+1] = byte(y % 256)
			data[i+2] = byte(h.seq % 256)
		}
	}

	return Frame{
		Seq:       h.seq,
		Timestamp: time.Now(),
		Width:     h.width,
		Height:    h.height,
		Format:    h.format,
		Data:      data,
		TraceID:   uuid.New().String(),
	}, nil
}

func (h *mockHandle) Release() {
	h.releaseOnce.Do(func() {
		close(h.released)
	})
}
