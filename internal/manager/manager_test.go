package manager

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/visiona/camlink/internal/session"
	"github.com/visiona/camlink/internal/source"
)

// recordingRenderer captures every call under its own lock.
type recordingRenderer struct {
	mu      sync.Mutex
	markers []byte
	stats   []string
	clears  int
}

func (r *recordingRenderer) RenderFrame(pixels []byte, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(pixels) > 0 {
		r.markers = append(r.markers, pixels[0])
	}
}

func (r *recordingRenderer) RenderStats(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, text)
}

func (r *recordingRenderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// markerSource emits frames whose first byte identifies the URI they came
// from. Handles keep producing after Release, imitating a source whose
// decode thread lingers past detachment.
type markerSource struct{}

func (markerSource) Open(uri string, connectTimeout time.Duration) (source.Handle, error) {
	var marker byte = 0xAA
	if strings.Contains(uri, "b") {
		marker = 0xBB
	}
	return &markerHandle{marker: marker}, nil
}

type markerHandle struct {
	marker byte
	seq    uint64
}

func (h *markerHandle) Read() (source.Frame, error) {
	time.Sleep(5 * time.Millisecond)
	h.seq++
	data := make([]byte, 4*4*3)
	for i := range data {
		data[i] = h.marker
	}
	return source.Frame{
		Seq:    h.seq,
		Width:  4,
		Height: 4,
		Format: source.FormatRGB,
		Data:   data,
	}, nil
}

// Release is deliberately a no-op: the handle keeps yielding frames so a
// stale session has every chance to misdeliver.
func (h *markerHandle) Release() {}

func TestReplaceSessionNoStragglers(t *testing.T) {
	renderer := &recordingRenderer{}
	logger := &recordingLogger{}
	m := New(markerSource{}, renderer, logger)

	idA := m.StartSession(session.Config{SourceURI: "mock://a"})
	time.Sleep(100 * time.Millisecond)

	idB := m.StartSession(session.Config{SourceURI: "mock://b"})
	if idA == idB {
		t.Fatal("replacement must create a new session")
	}

	// Anything recorded from here on must come from B only.
	renderer.mu.Lock()
	renderer.markers = nil
	renderer.mu.Unlock()

	time.Sleep(300 * time.Millisecond)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if len(renderer.markers) == 0 {
		t.Fatal("no frames from the new session")
	}
	for i, marker := range renderer.markers {
		if marker != 0xBB {
			t.Fatalf("frame %d carries marker %#x from the detached session", i, marker)
		}
	}

	m.Shutdown(2 * time.Second)
}

func TestStopSessionClearsRenderer(t *testing.T) {
	renderer := &recordingRenderer{}
	logger := &recordingLogger{}
	m := New(&source.MockSource{Interval: 5 * time.Millisecond}, renderer, logger)

	m.StartSession(session.Config{SourceURI: "mock://x"})
	time.Sleep(50 * time.Millisecond)
	m.StopSession()

	renderer.mu.Lock()
	if renderer.clears != 1 {
		t.Errorf("Clear called %d times, want 1", renderer.clears)
	}
	renderer.markers = nil
	renderer.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if len(renderer.markers) != 0 {
		t.Errorf("%d frames rendered after StopSession", len(renderer.markers))
	}

	if m.ActiveID() != "" {
		t.Error("session still active after StopSession")
	}
}

func TestStopSessionWithoutActiveSession(t *testing.T) {
	m := New(&source.MockSource{}, &recordingRenderer{}, &recordingLogger{})
	m.StopSession() // must not panic
	m.Shutdown(time.Second)
}

// switchableSource fails connects until flipped.
type switchableSource struct {
	mu   sync.Mutex
	fail bool
	mock source.MockSource
}

func (s *switchableSource) Open(uri string, connectTimeout time.Duration) (source.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mock.FailConnect = s.fail
	return s.mock.Open(uri, connectTimeout)
}

func TestManagerOperableAfterSessionFailure(t *testing.T) {
	src := &switchableSource{fail: true}
	src.mock.Interval = 5 * time.Millisecond
	renderer := &recordingRenderer{}
	logger := &recordingLogger{}
	m := New(src, renderer, logger)

	m.StartSession(session.Config{SourceURI: "mock://down"})

	deadline := time.Now().Add(2 * time.Second)
	for !logger.contains("session ended: connect_failure") {
		if time.Now().After(deadline) {
			t.Fatal("connect failure never reached the logger")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The device comes back; a fresh session must start cleanly.
	src.mu.Lock()
	src.fail = false
	src.mu.Unlock()

	m.StartSession(session.Config{SourceURI: "mock://up"})
	deadline = time.Now().Add(2 * time.Second)
	for {
		renderer.mu.Lock()
		frames := len(renderer.markers)
		renderer.mu.Unlock()
		if frames > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no frames from the fresh session")
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.Shutdown(2 * time.Second)
}

func TestShutdownWaitsForUnwind(t *testing.T) {
	m := New(&source.MockSource{Interval: 5 * time.Millisecond}, &recordingRenderer{}, &recordingLogger{})
	m.StartSession(session.Config{SourceURI: "mock://x"})
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	m.Shutdown(2 * time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown took %v, session should unwind within one read interval", elapsed)
	}
}
