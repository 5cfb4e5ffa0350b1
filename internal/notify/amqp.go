package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName   = "pos.events"
	publishTimeout = 5 * time.Second
	bufferSize     = 256
)

// AMQPPublisher broadcasts events through a RabbitMQ fanout exchange. Events
// are queued on a buffered channel and written by a single background
// goroutine, so Publish never blocks a committing request; when the buffer
// is full the event is dropped, which is acceptable because clients recover
// by re-fetching state.
type AMQPPublisher struct {
	ch   *amqp.Channel
	conn *amqp.Connection
	lg   *zap.Logger
	send func(Event) error

	events    chan Event
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAMQPPublisher connects to the broker, declares the fanout exchange, and
// starts the drain goroutine.
func NewAMQPPublisher(url string, lg *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchangeName, "fanout", false, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	p := newPublisher(lg, func(ev Event) error { return sendAMQP(ch, ev) })
	p.ch = ch
	p.conn = conn
	return p, nil
}

func newPublisher(lg *zap.Logger, send func(Event) error) *AMQPPublisher {
	p := &AMQPPublisher{
		lg:      lg,
		send:    send,
		events:  make(chan Event, bufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.drain()
	return p
}

// Publish enqueues the event, dropping it when the buffer is full or the
// publisher is already closed. The events channel itself is never closed,
// so a Publish racing Close cannot panic.
func (p *AMQPPublisher) Publish(ev Event) {
	select {
	case <-p.closing:
		p.lg.Warn("publisher closed, dropping event", zap.String("type", ev.Type))
		return
	default:
	}
	select {
	case p.events <- ev:
	default:
		p.lg.Warn("event buffer full, dropping event", zap.String("type", ev.Type))
	}
}

// Close flushes queued events, stops the drain goroutine, and tears down the
// AMQP connection. Idempotent.
func (p *AMQPPublisher) Close() {
	p.closeOnce.Do(func() { close(p.closing) })
	<-p.done
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *AMQPPublisher) drain() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			p.deliver(ev)
		case <-p.closing:
			// Flush whatever was buffered before the close signal.
			for {
				select {
				case ev := <-p.events:
					p.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *AMQPPublisher) deliver(ev Event) {
	if err := p.send(ev); err != nil {
		p.lg.Warn("publish event failed",
			zap.String("type", ev.Type),
			zap.Error(err),
		)
	}
}

func sendAMQP(ch *amqp.Channel, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   ev.OccurredAt,
	})
}
