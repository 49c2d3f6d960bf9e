package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout = 5 * time.Second
	connectRetry   = 5 * time.Second

	// bufferCapacity bounds the offline replay buffer. At the production
	// poll cadence this holds well over ten minutes of samples.
	bufferCapacity = 256
)

// Retained liveness markers on TopicStatus. The offline form doubles as
// the connection will, so an unclean death is visible too.
var (
	statusOnline  = []byte(`{"status":"online"}`)
	statusOffline = []byte(`{"status":"offline"}`)
)

// RealPublisher publishes to an MQTT broker. Construction never waits on
// the broker: the paho client retries in the background, and anything
// published while disconnected is buffered and replayed on connect.
type RealPublisher struct {
	client paho.Client
	logger *log.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher starts connecting to broker and returns immediately.
// clientID distinguishes devices sharing one broker.
func NewRealPublisher(broker, clientID string, logger *log.Logger) *RealPublisher {
	p := &RealPublisher{logger: logger}
	p.buf = newRingBuffer(bufferCapacity, logger)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetry).
		SetBinaryWill(TopicStatus, statusOffline, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	// Fire and forget: with ConnectRetry set the token resolves
	// eventually, and onConnect does the announcing.
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.logf("mqtt: connected, announcing online")
	c.Publish(TopicStatus, 1, true, statusOnline)

	p.mu.Lock()
	queued := p.buf.drainAll()
	p.mu.Unlock()
	for _, m := range queued {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(queued) > 0 {
		p.logf("mqtt: replayed %d buffered messages", len(queued))
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.logf("mqtt: connection lost: %v", err)
}

// PublishSample sends one telemetry reading at QoS 0.
func (p *RealPublisher) PublishSample(s Sample) error {
	payload, err := FormatSample(s)
	if err != nil {
		return fmt.Errorf("format sample: %w", err)
	}
	return p.publish(TopicTelemetry, 0, false, payload)
}

// PublishEvent sends one lifecycle event at QoS 1.
func (p *RealPublisher) PublishEvent(e Event) error {
	payload, err := FormatEvent(e)
	if err != nil {
		return fmt.Errorf("format event: %w", err)
	}
	return p.publish(TopicEvent, 1, false, payload)
}

// publish sends or buffers one message depending on connection state.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Buffered returns how many messages await replay.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close publishes the offline marker and disconnects.
func (p *RealPublisher) Close() error {
	if p.client.IsConnected() {
		t := p.client.Publish(TopicStatus, 1, true, statusOffline)
		t.WaitTimeout(publishTimeout)
	}
	p.client.Disconnect(1000) // milliseconds to flush in-flight work
	return nil
}

func (p *RealPublisher) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
