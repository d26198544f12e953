package session

import (
	"fmt"
	"time"

	"github.com/visiona/camlink/internal/source"
)

// statsWindowLength is how much time each statistics window covers.
const statsWindowLength = time.Second

// statsWindow accumulates frame counts and emits one measurement per window.
// It is driven by the decode loop and carries no locking of its own.
type statsWindow struct {
	start  time.Time
	frames int
	bytes  uint64
	width  int
	height int
}

func newStatsWindow(now time.Time) *statsWindow {
	return &statsWindow{start: now}
}

// observe records one decoded frame. When the window has elapsed it returns
// the finished measurement and resets for the next window.
func (w *statsWindow) observe(frame source.Frame, now time.Time) (StatsEvent, bool) {
	w.frames++
	w.bytes += uint64(len(frame.Data))
	w.width = frame.Width
	w.height = frame.Height

	elapsed := now.Sub(w.start)
	if elapsed < statsWindowLength {
		return StatsEvent{}, false
	}

	fps := float64(w.frames) / elapsed.Seconds()
	ev := StatsEvent{
		Width:       w.width,
		Height:      w.height,
		FPS:         fps,
		BytesPerSec: float64(w.bytes) / elapsed.Seconds(),
		Text:        fmt.Sprintf("%dx%d @ %.1f fps", w.width, w.height, fps),
	}

	w.start = now
	w.frames = 0
	w.bytes = 0

	return ev, true
}
