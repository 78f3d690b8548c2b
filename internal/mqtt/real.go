package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/droid-core/internal/logic"
)

// RealPublisher publishes to an actual MQTT broker. Publish never blocks the
// caller: messages go into a ring buffer that a background goroutine drains
// while the broker is connected. When the buffer is full the oldest message
// is dropped.
type RealPublisher struct {
	client paho.Client

	mu  sync.Mutex
	buf *ringBuffer

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	connected int // connect count, guarded by mu
}

// NewRealPublisher creates a publisher for the broker in cfg. runID makes the
// client id unique per run. An unreachable broker is not an error: the client
// keeps retrying and messages are buffered until it connects.
func NewRealPublisher(cfg Config, runID string) (*RealPublisher, error) {
	p := &RealPublisher{
		buf:     newRingBuffer(cfg.BufferSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID + "-" + runID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: %s not reachable yet, buffering", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	go p.run()
	return p, nil
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	p.connected++
	reconnect := p.connected > 1
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	} else {
		log.Printf("mqtt: connected")
		p.signal()
	}
}

// Publish queues a control event (QoS 0, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.enqueue(bufferedMsg{topic: Topic, payload: payload})
	return nil
}

// PublishSystem queues a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Pending returns the number of buffered messages.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns the number of messages lost to a full buffer since startup.
func (p *RealPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// Close sends what it can within a few seconds, then disconnects.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		select {
		case <-p.stopped:
		case <-time.After(5 * time.Second):
			log.Printf("mqtt: close timed out with %d messages pending", p.Pending())
		}
		p.client.Disconnect(1000) // 1 second timeout
	})
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	p.buf.push(msg)
	p.mu.Unlock()
	p.signal()
}

func (p *RealPublisher) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *RealPublisher) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.done:
			p.flush()
			return
		}
	}
}

// flush publishes everything buffered. On failure the unsent messages go back
// to the front of the buffer and wait for the next connect.
func (p *RealPublisher) flush() {
	if !p.client.IsConnectionOpen() {
		return
	}
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	for i, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		ok := token.WaitTimeout(5 * time.Second)
		if ok && token.Error() == nil {
			continue
		}
		if ok {
			log.Printf("mqtt: publish to %s failed: %v", m.topic, token.Error())
		} else {
			log.Printf("mqtt: publish to %s timed out", m.topic)
		}
		p.mu.Lock()
		p.buf.prepend(msgs[i:])
		p.mu.Unlock()
		return
	}
}

// LogPublisher stands in when no broker is configured.
type LogPublisher struct{}

// Publish logs nothing; control events are already logged at their source.
func (LogPublisher) Publish(logic.Event) error { return nil }

// PublishSystem logs the lifecycle event name.
func (LogPublisher) PublishSystem(event SystemEvent) error {
	log.Printf("mqtt: no broker, system event %s not published", event.Event)
	return nil
}

// Close does nothing.
func (LogPublisher) Close() error { return nil }

// IsConnected is always false.
func (LogPublisher) IsConnected() bool { return false }
