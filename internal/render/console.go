// Package render provides headless renderer and logger collaborators for
// the CLI: frames become counters and placement geometry, stats and log
// lines become slog output.
package render

import (
	"log/slog"
	"sync"

	"github.com/visiona/camlink/internal/compositor"
)

// glyph dimensions used to estimate overlay text bounds without a font
// backend
const (
	glyphWidth  = 8
	glyphHeight = 16
)

// Console implements manager.Renderer for a fixed viewport. It computes the
// same placement and overlay geometry a graphical surface would use, so the
// compositor path is exercised end to end.
type Console struct {
	viewportW int
	viewportH int

	mu        sync.Mutex
	frames    uint64
	placement compositor.Rect
}

// NewConsole returns a console renderer for the given viewport.
func NewConsole(viewportW, viewportH int) *Console {
	return &Console{viewportW: viewportW, viewportH: viewportH}
}

// RenderFrame fits the frame into the viewport and keeps the placement for
// the next overlay.
func (c *Console) RenderFrame(pixels []byte, width, height int) {
	placement := compositor.Fit(width, height, c.viewportW, c.viewportH)

	c.mu.Lock()
	c.frames++
	c.placement = placement
	first := c.frames == 1
	c.mu.Unlock()

	if first {
		slog.Info("render: first frame",
			"resolution", slog.GroupValue(slog.Int("w", width), slog.Int("h", height)),
			"placement", placement,
		)
	}
}

// RenderStats logs the overlay text with the panel geometry it would be
// drawn at.
func (c *Console) RenderStats(text string) {
	c.mu.Lock()
	placement := c.placement
	frames := c.frames
	c.mu.Unlock()

	box := compositor.Overlay(placement, len(text)*glyphWidth, glyphHeight)
	slog.Info("render: osd",
		"text", text,
		"frames", frames,
		"panel", box.Panel,
	)
}

// Clear drops the displayed frame.
func (c *Console) Clear() {
	c.mu.Lock()
	c.frames = 0
	c.placement = compositor.Rect{}
	c.mu.Unlock()

	slog.Info("render: cleared")
}

// Frames returns how many frames were rendered since the last Clear.
func (c *Console) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Journal implements manager.Logger on top of slog.
type Journal struct{}

// Append writes one operator-visible line.
func (Journal) Append(line string) {
	slog.Info("journal: " + line)
}
