package session

import (
	"fmt"

	"github.com/visiona/camlink/internal/source"
)

// toRGB returns the frame's pixels in RGB channel order, converting from the
// source's order if needed. A malformed frame yields an error; the decode
// loop drops it without ending the session.
func toRGB(frame source.Frame) ([]byte, error) {
	want := frame.Width * frame.Height * 3
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) != want {
		return nil, fmt.Errorf("malformed frame: %dx%d with %d bytes", frame.Width, frame.Height, len(frame.Data))
	}

	switch frame.Format {
	case source.FormatRGB:
		return frame.Data, nil
	case source.FormatBGR:
		out := make([]byte, len(frame.Data))
		for i := 0; i < len(frame.Data); i += 3 {
			out[i] = frame.Data[i+2]
			out[i+1] = frame.Data[i+1]
			out[i+2] = frame.Data[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown pixel format %d", frame.Format)
	}
}
