package telemetry

import (
	"github.com/visiona/camlink/internal/manager"
)

// RenderTap decorates a renderer, forwarding every stats window to the
// publisher. Frames pass through untouched.
type RenderTap struct {
	Next      manager.Renderer
	Publisher *Publisher
	SessionID func() string
}

func (t *RenderTap) RenderFrame(pixels []byte, width, height int) {
	t.Next.RenderFrame(pixels, width, height)
}

func (t *RenderTap) RenderStats(text string) {
	t.Next.RenderStats(text)
	t.Publisher.Publish(Payload{
		SessionID: t.sessionID(),
		Kind:      "stats",
		Text:      text,
	})
}

func (t *RenderTap) Clear() {
	t.Next.Clear()
}

func (t *RenderTap) sessionID() string {
	if t.SessionID == nil {
		return ""
	}
	return t.SessionID()
}

// JournalTap decorates a logger the same way.
type JournalTap struct {
	Next      manager.Logger
	Publisher *Publisher
	SessionID func() string
}

func (t *JournalTap) Append(line string) {
	t.Next.Append(line)
	t.Publisher.Publish(Payload{
		SessionID: t.sessionID(),
		Kind:      "log",
		Text:      line,
	})
}

func (t *JournalTap) sessionID() string {
	if t.SessionID == nil {
		return ""
	}
	return t.SessionID()
}
