package command

import (
	"errors"
	"net"
	"testing"
	"time"
)

// stubTransport records whether it was invoked and plays back a canned
// reply or error.
type stubTransport struct {
	invoked bool
	addr    string
	reply   []byte
	err     error
}

func (s *stubTransport) Exchange(addr string, payload []byte, timeout time.Duration) ([]byte, error) {
	s.invoked = true
	s.addr = addr
	return s.reply, s.err
}

func TestExchangeValidation(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		wantKind FailureKind
	}{
		{
			name:     "empty host",
			req:      Request{Host: "", Port: 5600, Payload: "GET"},
			wantKind: InvalidArgument,
		},
		{
			name:     "port too large",
			req:      Request{Host: "192.168.144.123", Port: 70000, Payload: "GET"},
			wantKind: InvalidArgument,
		},
		{
			name:     "port zero",
			req:      Request{Host: "192.168.144.123", Port: 0, Payload: "GET"},
			wantKind: InvalidArgument,
		},
		{
			name:     "non-ASCII payload",
			req:      Request{Host: "192.168.144.123", Port: 5600, Payload: "SET café"},
			wantKind: EncodingError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTransport{}
			ch := NewChannelWithTransport(stub)

			_, err := ch.Exchange(tt.req)
			if err == nil {
				t.Fatal("expected failure")
			}
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("expected *Failure, got %T", err)
			}
			if f.Kind != tt.wantKind {
				t.Errorf("failure kind = %v, want %v", f.Kind, tt.wantKind)
			}
			if stub.invoked {
				t.Error("transport must not be touched on validation failure")
			}
		})
	}
}

func TestExchangeReplyTrimmedAndDecoded(t *testing.T) {
	stub := &stubTransport{reply: []byte("  OK 1280 720 8.000 120 \xff\r\n")}
	ch := NewChannelWithTransport(stub)

	reply, err := ch.Exchange(Request{Host: "dev.local", Port: 5600, Payload: "GET"})
	if err != nil {
		t.Fatal(err)
	}
	want := "OK 1280 720 8.000 120 �"
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
	if stub.addr != "dev.local:5600" {
		t.Errorf("addr = %q", stub.addr)
	}
}

func TestExchangeTransportError(t *testing.T) {
	stub := &stubTransport{err: errors.New("network is unreachable")}
	ch := NewChannelWithTransport(stub)

	_, err := ch.Exchange(Request{Host: "dev.local", Port: 5600, Payload: "GET"})
	var f *Failure
	if !errors.As(err, &f) || f.Kind != TransportError {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

// TestExchangeTimeout sends to a bound-but-silent UDP socket and expects a
// Timeout failure once the request's bound elapses.
func TestExchangeTimeout(t *testing.T) {
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()
	port := silent.LocalAddr().(*net.UDPAddr).Port

	ch := NewChannel()
	timeout := 150 * time.Millisecond

	start := time.Now()
	_, err = ch.Exchange(Request{
		Host:    "127.0.0.1",
		Port:    port,
		Payload: "GET",
		Timeout: timeout,
	})
	elapsed := time.Since(start)

	var f *Failure
	if !errors.As(err, &f) || f.Kind != Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("returned after %v, before the %v bound", elapsed, timeout)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("returned after %v, far beyond the %v bound", elapsed, timeout)
	}
	if f.Message != "timeout waiting reply (>150ms)" {
		t.Errorf("message = %q", f.Message)
	}
}

// TestExchangeRoundTrip runs a tiny echo responder and checks one full
// request/reply cycle.
func TestExchangeRoundTrip(t *testing.T) {
	responder, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer responder.Close()
	port := responder.LocalAddr().(*net.UDPAddr).Port

	go func() {
		buf := make([]byte, 2048)
		n, addr, err := responder.ReadFrom(buf)
		if err != nil {
			return
		}
		if string(buf[:n]) == "GET" {
			responder.WriteTo([]byte("1280 720 8.000 120\n"), addr)
		} else {
			responder.WriteTo([]byte("ERR unknown\n"), addr)
		}
	}()

	ch := NewChannel()
	reply, err := ch.Exchange(Request{
		Host:    "127.0.0.1",
		Port:    port,
		Payload: "GET",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "1280 720 8.000 120" {
		t.Errorf("reply = %q", reply)
	}
}

func TestGoDeliversExactlyOneOutcome(t *testing.T) {
	stub := &stubTransport{reply: []byte("OK")}
	ch := NewChannelWithTransport(stub)

	out := <-ch.Go(Request{Host: "dev.local", Port: 5600, Payload: "GET"})
	if out.Err != nil {
		t.Fatal(out.Err)
	}
	if out.Reply != "OK" {
		t.Errorf("reply = %q", out.Reply)
	}
}
