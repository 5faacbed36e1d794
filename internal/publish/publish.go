// Package publish streams recorded motion samples to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/jointtrack/internal/tracker"
)

// Message is the JSON payload published for each recorded sample.
type Message struct {
	SessionID  string         `json:"session_id"`
	Joint      string         `json:"joint"`
	Calibrated bool           `json:"calibrated"`
	Unit       string         `json:"unit,omitempty"`
	Sample     tracker.Sample `json:"sample"`
}

// Payload encodes a message for the wire.
func Payload(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Publisher sends sample messages somewhere.
type Publisher interface {
	Publish(m Message) error
	Close()
}

// Discard is a Publisher that drops every message.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(Message) error { return nil }

// Close does nothing.
func (Discard) Close() {}

var (
	// ErrQueueFull is returned when the broker falls behind and a sample is dropped.
	ErrQueueFull = errors.New("publish queue full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("publisher closed")
)

const (
	publishTimeout = 2 * time.Second
	disconnectMs   = 250
	queueSize      = 64
)

// MQTTPublisher publishes messages to a single topic. Publish only queues;
// a background goroutine hands messages to the broker so a slow broker never
// stalls the caller.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte

	mu     sync.Mutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

// NewMQTT connects to broker and returns a publisher for topic.
func NewMQTT(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	log.Printf("publish: connected to MQTT broker at %s", broker)

	return newPublisher(client, topic), nil
}

func newPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	p := &MQTTPublisher{
		client: client,
		topic:  topic,
		queue:  make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Topic returns the topic messages are published to.
func (p *MQTTPublisher) Topic() string {
	return p.topic
}

// Publish queues one message. It never waits for the broker; when the queue
// is full the message is dropped with ErrQueueFull.
func (p *MQTTPublisher) Publish(m Message) error {
	payload, err := Payload(m)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *MQTTPublisher) run() {
	defer close(p.done)
	for payload := range p.queue {
		if err := p.send(payload); err != nil {
			log.Printf("publish: %v", err)
		}
	}
}

// send hands one payload to the broker and waits for it to be accepted.
func (p *MQTTPublisher) send(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}

// Close flushes queued messages and disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.client.Disconnect(disconnectMs)
}
