package telemetry

import (
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func TestPayloadEncoding(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	in := Payload{
		InstanceID: "camlink",
		SessionID:  "abc-123",
		Kind:       "stats",
		Text:       "1280x720 @ 30.0 fps",
		Width:      1280,
		Height:     720,
		FPS:        30.0,
		At:         at,
	}

	data, err := msgpack.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	var out Payload
	if err := msgpack.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.At.Equal(in.At) {
		t.Errorf("at = %v, want %v", out.At, in.At)
	}
	out.At, in.At = time.Time{}, time.Time{}
	if out != in {
		t.Errorf("round-trip = %+v, want %+v", out, in)
	}
}

func TestNilPublisherDropsSafely(t *testing.T) {
	var p *Publisher
	p.Publish(Payload{Kind: "stats", Text: "x"}) // must not panic
	p.Disconnect()
}
