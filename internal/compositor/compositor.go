// Package compositor computes frame placement and overlay geometry for the
// live preview. It is pure geometry: callers decide how the resulting
// rectangles reach a drawing surface.
package compositor

const (
	// overlayInset is the distance from the placement rectangle's top-left
	// corner to the overlay panel
	overlayInset = 10

	// overlayPadding surrounds the text inside the backing panel
	overlayPadding = 6

	// PanelAlpha is the opacity of the backing panel drawn behind overlay
	// text, chosen to keep the text readable over arbitrary video content
	PanelAlpha = 0.6
)

// Rect is a placement rectangle in viewport coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the rectangle has zero area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Fit computes the largest centered rectangle inside the viewport that
// preserves the source aspect ratio. Both dimensions are floored after
// scaling. Degenerate inputs yield a zero-area rectangle.
func Fit(sourceW, sourceH, viewportW, viewportH int) Rect {
	if sourceW <= 0 || sourceH <= 0 || viewportW <= 0 || viewportH <= 0 {
		return Rect{}
	}

	// Scale by the tighter axis, flooring both dimensions via integer math.
	var w, h int
	if sourceW*viewportH >= sourceH*viewportW {
		w = viewportW
		h = sourceH * viewportW / sourceW
	} else {
		h = viewportH
		w = sourceW * viewportH / sourceH
	}

	return Rect{
		X:      (viewportW - w) / 2,
		Y:      (viewportH - h) / 2,
		Width:  w,
		Height: h,
	}
}

// OverlayBox describes where to draw the status overlay: a semi-transparent
// backing panel and the top-left position of the text centered within it.
type OverlayBox struct {
	Panel Rect
	TextX int
	TextY int
}

// Overlay computes the overlay panel anchored near the top-left of the
// placement rectangle. textW and textH are the measured pixel dimensions of
// the rendered text; font metrics are the renderer's concern. A zero-area
// placement yields a zero OverlayBox.
func Overlay(placement Rect, textW, textH int) OverlayBox {
	if placement.Empty() || textW <= 0 || textH <= 0 {
		return OverlayBox{}
	}

	panel := Rect{
		X:      placement.X + overlayInset,
		Y:      placement.Y + overlayInset,
		Width:  textW + 2*overlayPadding,
		Height: textH + 2*overlayPadding,
	}

	return OverlayBox{
		Panel: panel,
		TextX: panel.X + (panel.Width-textW)/2,
		TextY: panel.Y + (panel.Height-textH)/2,
	}
}
