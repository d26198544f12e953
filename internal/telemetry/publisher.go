// Package telemetry forwards session statistics and lifecycle events to an
// MQTT broker so a fleet dashboard can watch remote preview health.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload is one telemetry message, msgpack-encoded on the wire.
type Payload struct {
	InstanceID string    `msgpack:"instance_id"`
	SessionID  string    `msgpack:"session_id"`
	Kind       string    `msgpack:"kind"` // "stats" | "ended" | "log"
	Text       string    `msgpack:"text"`
	Width      int       `msgpack:"width,omitempty"`
	Height     int       `msgpack:"height,omitempty"`
	FPS        float64   `msgpack:"fps,omitempty"`
	At         time.Time `msgpack:"at"`
}

// Publisher publishes telemetry to one broker topic. A nil Publisher is
// valid and drops everything, so callers need no enabled-checks.
type Publisher struct {
	client     mqtt.Client
	broker     string
	topic      string
	qos        byte
	instanceID string

	published atomic.Uint64
	errors    atomic.Uint64
}

// New builds a publisher. Connect must be called before publishing.
func New(broker, topic string, qos byte, instanceID string) *Publisher {
	return &Publisher{
		broker:     broker,
		topic:      topic,
		qos:        qos,
		instanceID: instanceID,
	}
}

// Connect establishes the broker connection with auto-reconnect and a
// bounded initial wait.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.broker))
	opts.SetClientID(p.instanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("telemetry: broker connection established",
			"broker", p.broker,
			"client_id", p.instanceID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("telemetry: broker connection lost, will auto-reconnect",
			"error", err,
			"broker", p.broker,
		)
	}

	p.client = mqtt.NewClient(opts)

	slog.Info("telemetry: connecting to broker", "broker", p.broker)
	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("telemetry: broker connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: broker connection failed: %w", err)
	}
	return nil
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
	slog.Info("telemetry: disconnected",
		"published", p.published.Load(),
		"errors", p.errors.Load(),
	)
}

// Publish encodes and sends one payload. Failures are counted and logged,
// never propagated: telemetry must not disturb the session path.
func (p *Publisher) Publish(payload Payload) {
	if p == nil || p.client == nil {
		return
	}

	payload.InstanceID = p.instanceID
	if payload.At.IsZero() {
		payload.At = time.Now()
	}

	data, err := msgpack.Marshal(payload)
	if err != nil {
		p.errors.Add(1)
		slog.Error("telemetry: encode failed", "error", err)
		return
	}

	token := p.client.Publish(p.topic, p.qos, false, data)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.errors.Add(1)
			slog.Warn("telemetry: publish failed", "error", err, "topic", p.topic)
			return
		}
		p.published.Add(1)
	}()
}
