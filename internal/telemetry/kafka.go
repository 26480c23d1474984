// Package telemetry forwards bus events to a Kafka topic.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/dvloznov/kids-bank/internal/pubsub"
)

// DefaultTopic receives events when no topic is configured.
const DefaultTopic = "kidsbank_events"

// MessageWriter provides an interface for writing Kafka messages.
// *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a Kafka writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}

// message is the JSON value written for each event.
type message struct {
	Device string `json:"device"`
	pubsub.Event
}

// Forwarder copies bus events to Kafka. Bus handlers must not block, so
// events are buffered and written by a background goroutine; when the
// buffer is full new events are dropped.
type Forwarder struct {
	writer MessageWriter
	device string
	log    zerolog.Logger

	events    chan pubsub.Event
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	sub       pubsub.Subscription
}

// NewForwarder creates a Forwarder. device keys every message so a
// partition sees one device's events in order.
func NewForwarder(writer MessageWriter, device string, bufferSize int, log zerolog.Logger) *Forwarder {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Forwarder{
		writer:    writer,
		device:    device,
		log:       log,
		events:    make(chan pubsub.Event, bufferSize),
		closeChan: make(chan struct{}),
	}
}

// Start subscribes to every topic of bus and starts the writer goroutine.
func (f *Forwarder) Start(ctx context.Context, bus *pubsub.Bus) {
	f.sub = bus.SubscribeAll(f.handle)
	f.wg.Add(1)
	go f.run(ctx)
}

func (f *Forwarder) handle(e pubsub.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}

	select {
	case f.events <- e:
	default:
		f.log.Warn().Str("topic", string(e.Topic)).Msg("Telemetry buffer full, dropping event")
	}
}

func (f *Forwarder) run(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-f.events:
			f.write(ctx, e)
		case <-f.closeChan:
			// Flush what was buffered before the close.
			for {
				select {
				case e := <-f.events:
					f.write(ctx, e)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) write(ctx context.Context, e pubsub.Event) {
	data, err := json.Marshal(message{Device: f.device, Event: e})
	if err != nil {
		f.log.Warn().Err(err).Msg("Failed to encode telemetry event")
		return
	}

	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(f.device),
		Value: data,
		Time:  e.At,
	})
	if err != nil {
		f.log.Warn().Err(err).Str("topic", string(e.Topic)).Msg("Failed to publish telemetry event")
	}
}

// Stop unsubscribes, flushes buffered events and closes the writer.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.closeChan)
	f.mu.Unlock()

	f.sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := f.writer.Close(); err != nil {
		return fmt.Errorf("Stop: close writer: %w", err)
	}
	return nil
}
