package mailer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"advflow/app/config"
	"advflow/pkg/contextx"
	"advflow/pkg/log"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Channel is the part of *amqp.Channel the transport publishes through.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPTransport publishes mail jobs to an exchange consumed by the mailer
// service.
type AMQPTransport struct {
	mu         sync.Mutex
	url        string
	exchange   string
	routingKey string
	conn       *amqp.Connection
	channel    Channel
	dial       func(url string) (*amqp.Connection, Channel, error)
}

func NewAMQPTransport(cfg config.MailConfig) *AMQPTransport {
	timeout := sendTimeout(cfg)
	return &AMQPTransport{
		url:        cfg.Connection,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		dial: func(url string) (*amqp.Connection, Channel, error) {
			return dialAMQP(url, timeout)
		},
	}
}

// NewAMQPTransportWithChannel publishes through an already open channel.
func NewAMQPTransportWithChannel(channel Channel, exchange, routingKey string) *AMQPTransport {
	return &AMQPTransport{
		exchange:   exchange,
		routingKey: routingKey,
		channel:    channel,
	}
}

func dialAMQP(url string, timeout time.Duration) (*amqp.Connection, Channel, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial:      amqp.DefaultDial(timeout),
		Heartbeat: 10 * time.Second,
		Properties: amqp.Table{
			"product": "advflow",
		},
	})
	if err != nil {
		return nil, nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, channel, nil
}

func (t *AMQPTransport) ensureChannel(ctx *contextx.Context) (Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.channel != nil {
		return t.channel, nil
	}
	if t.dial == nil {
		return nil, errors.New("amqp transport has no channel")
	}

	log.Debugf(ctx, "mail transport connecting to exchange %s", t.exchange)
	conn, channel, err := t.dial(t.url)
	if err != nil {
		return nil, err
	}
	if err := channel.ExchangeDeclare(t.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return nil, err
	}
	t.conn = conn
	t.channel = channel
	return channel, nil
}

func (t *AMQPTransport) Send(ctx *contextx.Context, msg *Message) error {
	if len(msg.Recipients()) == 0 {
		return errors.New("message has no recipients")
	}
	body, err := msg.ToBytes()
	if err != nil {
		return err
	}

	channel, err := t.ensureChannel(ctx)
	if err != nil {
		return fmt.Errorf("mail transport unavailable: %w", err)
	}

	err = channel.Publish(t.exchange, t.routingKey, false, false, amqp.Publishing{
		ContentType:     "application/json",
		ContentEncoding: "utf-8",
		DeliveryMode:    amqp.Persistent,
		MessageId:       uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Body:            body,
	})
	if err != nil {
		t.reset()
		return fmt.Errorf("publish mail failed: %w", err)
	}
	log.Debugf(ctx, "mail published: %s", msg.String())
	return nil
}

// reset drops a broken channel so the next Send dials again.
func (t *AMQPTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dial == nil {
		return
	}
	if t.channel != nil {
		_ = t.channel.Close()
		t.channel = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.channel != nil {
		err = t.channel.Close()
		t.channel = nil
	}
	if t.conn != nil {
		if cerr := t.conn.Close(); err == nil {
			err = cerr
		}
		t.conn = nil
	}
	return err
}
