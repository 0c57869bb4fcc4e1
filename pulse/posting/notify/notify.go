// Package notify publishes posting outcome events to RabbitMQ.
//
// Events go to a durable topic exchange with routing key
// "posting.<outcome>", so consumers can bind to posting.failed alone or
// to posting.# for everything.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/pulse/posting"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "postpulse.posting"

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements posting.Notifier over an AMQP channel.
type Publisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishes
	ch       Channel
	conn     *amqp.Connection
	exchange string
	log      *zap.SugaredLogger
}

var _ posting.Notifier = (*Publisher)(nil)

// Dial connects to url, opens a channel and declares the exchange.
func Dial(url, exchange string, log *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "failed to connect to event broker"),
			"check events.amqp_url or leave it empty to disable outcome events",
		)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open broker channel")
	}

	p, err := New(ch, exchange, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// New declares exchange on ch and returns a publisher.
func New(ch Channel, exchange string, log *zap.SugaredLogger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = logger.ComponentLogger("posting.notify")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, errors.Wrapf(err, "failed to declare exchange %s", exchange)
	}
	return &Publisher{ch: ch, exchange: exchange, log: log}, nil
}

// RoutingKey returns the key an outcome is published under.
func RoutingKey(outcome posting.Outcome) string {
	return "posting." + string(outcome)
}

// Notify publishes ev as JSON.
func (p *Publisher) Notify(ctx context.Context, ev posting.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to encode posting event")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.JobID,
		Timestamp:    ev.At,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Publish(p.exchange, RoutingKey(ev.Outcome), false, false, msg); err != nil {
		return errors.WithDetailf(errors.Wrap(err, "failed to publish posting event"), "Job ID: %s", ev.JobID)
	}
	p.log.Debugw("Published posting event", logger.FieldJobID, ev.JobID, logger.FieldOutcome, ev.Outcome)
	return nil
}

// Close closes the channel and, when Dial opened it, the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
