package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/button-dispatch/internal/logging"
)

const (
	publishTimeout     = 5 * time.Second
	defaultBufferSize  = 100
	defaultClientID    = "button-dispatch"
	reconnectRetryWait = 5 * time.Second
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// message in time. The message is not buffered.
var ErrPublishTimeout = errors.New("mqtt: publish timed out")

// Config configures a RealPublisher.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// BufferSize is how many messages are kept while disconnected.
	BufferSize int
}

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an MQTT broker. Messages published while the
// connection is down are buffered and replayed, oldest first, on reconnect.
type RealPublisher struct {
	client      client
	eventsTopic string
	systemTopic string
	logger      *slog.Logger
	publishWait time.Duration

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher starts connecting to the broker in the background and
// returns immediately; paho keeps retrying until the broker is reachable.
func NewRealPublisher(cfg Config, logger *slog.Logger) *RealPublisher {
	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID
	}
	p := newPublisher(nil, cfg, logger)

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectRetryWait).
		SetWill(p.systemTopic, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.logger.Info("connected", "broker", cfg.Broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("connection lost", "error", err)
		})

	c := paho.NewClient(opts)
	p.client = c
	c.Connect()
	return p
}

func newPublisher(c client, cfg Config, logger *slog.Logger) *RealPublisher {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	events, system := Topics(cfg.TopicPrefix)
	return &RealPublisher{
		client:      c,
		eventsTopic: events,
		systemTopic: system,
		logger:      logger.With("component", "mqtt"),
		publishWait: publishTimeout,
		buffer:      newRingBuffer(size),
	}
}

// Publish sends a press at QoS 0, not retained. It runs on the dispatcher
// goroutine, so it hands the message to paho and returns without waiting for
// the broker; a press the broker rejects is buffered for replay.
func (p *RealPublisher) Publish(press Press) error {
	payload, err := FormatPayload(press)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	msg := bufferedMsg{topic: p.eventsTopic, payload: payload}
	if !p.client.IsConnected() {
		p.enqueue(msg)
		return nil
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	go func() {
		if err := p.settle(msg, token); err != nil {
			p.logger.Warn("press not acknowledged", "error", err)
		}
	}()
	return nil
}

// PublishSystem sends a lifecycle event at QoS 1 and waits for the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Buffered returns how many messages are waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// send publishes msg and waits for it, or buffers it if the broker is
// unreachable. A buffered message is not an error.
func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnected() {
		p.enqueue(msg)
		return nil
	}
	return p.settle(msg, p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload))
}

// settle waits for token. A message the client reports as failed is
// buffered for replay and is not an error. A message that is still in flight
// after the wait is not buffered, since paho may yet deliver it, and
// ErrPublishTimeout is returned instead.
func (p *RealPublisher) settle(msg bufferedMsg, token paho.Token) error {
	if !token.WaitTimeout(p.publishWait) {
		return fmt.Errorf("publish %s: %w", msg.topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("publish failed, buffering", "topic", msg.topic, "error", err)
		p.enqueue(msg)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	overwrote := p.buffer.push(msg)
	n := p.buffer.len()
	p.mu.Unlock()

	if overwrote {
		p.logger.Warn("buffer full, dropping oldest", "buffered", n)
	} else {
		p.logger.Debug("buffered while disconnected", "topic", msg.topic, "buffered", n)
	}
}

// flush replays buffered messages. Messages that fail again go back into
// the buffer through settle.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs, dropped := p.buffer.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.logger.Info("replaying buffered messages", "count", len(msgs), "dropped", dropped)
	for _, msg := range msgs {
		if err := p.settle(msg, p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)); err != nil {
			p.logger.Warn("replay not acknowledged", "error", err)
		}
	}
}
