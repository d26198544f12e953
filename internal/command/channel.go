// Package command implements the one-shot ASCII request/reply exchange used
// to configure the imaging device over UDP.
package command

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the reply wait bound when Request.Timeout is zero
	DefaultTimeout = 1200 * time.Millisecond

	// maxReplySize is the largest reply datagram the device sends
	maxReplySize = 2048
)

// FailureKind classifies exchange failures.
type FailureKind int

const (
	// InvalidArgument means the request was rejected before any network I/O
	InvalidArgument FailureKind = iota
	// EncodingError means the payload contained non-ASCII characters
	EncodingError
	// Timeout means no reply arrived within the request's bound
	Timeout
	// TransportError means a send/receive fault other than timeout
	TransportError
)

// String returns a human-readable name for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case EncodingError:
		return "encoding_error"
	case Timeout:
		return "timeout"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Failure is the typed error returned by Exchange.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Request describes one exchange. It is consumed by a single call to
// Exchange and carries its own timeout end-to-end.
type Request struct {
	Host    string
	Port    int
	Payload string
	Timeout time.Duration
}

// Outcome is the result of one exchange: exactly one of Reply or Err is
// meaningful. Err, when set, is always a *Failure.
type Outcome struct {
	Reply string
	Err   error
}

// Transport sends one datagram and waits for one reply. Implementations own
// the socket for the duration of the call and must release it before
// returning, on every path.
type Transport interface {
	Exchange(addr string, payload []byte, timeout time.Duration) ([]byte, error)
}

// udpTransport is the production Transport: one UDP socket per exchange.
type udpTransport struct{}

func (udpTransport) Exchange(addr string, payload []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	buf := make([]byte, maxReplySize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Channel performs one-shot request/reply exchanges. Concurrent calls are
// independent: each runs with its own socket and timer, nothing is
// serialized. Callers wanting at-most-one-in-flight semantics wrap the
// channel in a Gate.
type Channel struct {
	transport Transport
}

// NewChannel returns a Channel backed by per-exchange UDP sockets.
func NewChannel() *Channel {
	return &Channel{transport: udpTransport{}}
}

// NewChannelWithTransport returns a Channel using the given transport.
// Used by tests to inject a stub.
func NewChannelWithTransport(t Transport) *Channel {
	return &Channel{transport: t}
}

// Exchange sends the request payload and waits for exactly one reply.
// It returns the trimmed ASCII reply text, or a *Failure. Validation and
// encoding failures are reported without touching the transport.
func (c *Channel) Exchange(req Request) (string, error) {
	if req.Host == "" {
		return "", &Failure{Kind: InvalidArgument, Message: "host is empty"}
	}
	if req.Port < 1 || req.Port > 65535 {
		return "", &Failure{Kind: InvalidArgument, Message: fmt.Sprintf("port out of range (1..65535): %d", req.Port)}
	}

	data, err := encodeASCII(req.Payload)
	if err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	addr := net.JoinHostPort(req.Host, fmt.Sprintf("%d", req.Port))
	reply, err := c.transport.Exchange(addr, data, timeout)
	if err != nil {
		if isTimeout(err) {
			return "", &Failure{
				Kind:    Timeout,
				Message: fmt.Sprintf("timeout waiting reply (>%dms)", timeout.Milliseconds()),
			}
		}
		return "", &Failure{Kind: TransportError, Message: err.Error()}
	}

	return strings.TrimSpace(decodeASCII(reply)), nil
}

// Go runs the exchange on its own goroutine and delivers the outcome on the
// returned channel, so the caller's main line of control never blocks.
func (c *Channel) Go(req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		reply, err := c.Exchange(req)
		out <- Outcome{Reply: reply, Err: err}
	}()
	return out
}

// encodeASCII converts payload to bytes, rejecting anything outside 7-bit
// ASCII.
func encodeASCII(payload string) ([]byte, error) {
	for i := 0; i < len(payload); i++ {
		if payload[i] > 0x7f {
			return nil, &Failure{
				Kind:    EncodingError,
				Message: fmt.Sprintf("payload is not ASCII at byte %d", i),
			}
		}
	}
	return []byte(payload), nil
}

// decodeASCII converts reply bytes to a string, substituting bytes outside
// 7-bit ASCII rather than failing.
func decodeASCII(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c > 0x7f {
			b.WriteRune('�')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
