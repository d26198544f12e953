package command

import (
	"log/slog"
	"sync"
)

// Gate gives a caller at-most-one-in-flight semantics on top of a Channel.
// Starting a new exchange supersedes any outstanding one: the superseded
// exchange still runs to completion (its socket and timer are its own), but
// its outcome is discarded instead of delivered. This matches an operator UI
// where only the newest request's reply should ever be shown.
type Gate struct {
	channel *Channel

	mu  sync.Mutex
	gen uint64
}

// NewGate wraps a channel in a single in-flight slot.
func NewGate(channel *Channel) *Gate {
	return &Gate{channel: channel}
}

// Do starts the exchange and calls deliver with its outcome, unless a newer
// Do call superseded it first. deliver runs on the exchange's goroutine,
// under the gate's lock: once a newer Do returns, no older outcome can reach
// its deliver. deliver must not call Do on the same gate.
func (g *Gate) Do(req Request, deliver func(Outcome)) {
	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	go func() {
		reply, err := g.channel.Exchange(req)

		g.mu.Lock()
		defer g.mu.Unlock()
		if gen != g.gen {
			slog.Debug("command: discarding superseded reply",
				"host", req.Host,
				"port", req.Port,
			)
			return
		}
		deliver(Outcome{Reply: reply, Err: err})
	}()
}
