package mailer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"advflow/app/config"
	"advflow/pkg/contextx"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	failWith  error
	closed    bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestAMQPTransport_Send(t *testing.T) {
	asserter := assert.New(t)
	channel := &fakeChannel{}
	transport := NewAMQPTransportWithChannel(channel, "advflow.mail", "mail.send")

	msg := &Message{Subject: "Review", Body: "Hello", From: "cms@example.com", Bcc: []string{"a@example.com"}}
	err := transport.Send(contextx.NewContext(), msg)
	if asserter.NoError(err) && asserter.Len(channel.published, 1) {
		asserter.Equal("advflow.mail/mail.send", channel.keys[0])
		asserter.Equal("application/json", channel.published[0].ContentType)

		decoded := Message{}
		if asserter.NoError(json.Unmarshal(channel.published[0].Body, &decoded)) {
			asserter.Equal(*msg, decoded)
		}
	}
}

func TestAMQPTransport_SendFailures(t *testing.T) {
	asserter := assert.New(t)
	channel := &fakeChannel{failWith: errors.New("channel closed")}
	transport := NewAMQPTransportWithChannel(channel, "advflow.mail", "mail.send")
	ctx := contextx.NewContext()

	err := transport.Send(ctx, &Message{Subject: "x"})
	asserter.EqualError(err, "message has no recipients")

	err = transport.Send(ctx, &Message{Subject: "x", To: []string{"a@example.com"}})
	if asserter.Error(err) {
		asserter.Contains(err.Error(), "channel closed")
	}
}

func TestNew(t *testing.T) {
	asserter := assert.New(t)

	transport := New(config.MailConfig{Kind: "log"})
	logTransport, ok := transport.(*LogTransport)
	if asserter.True(ok) {
		msg := &Message{Subject: "hi", To: []string{"a@example.com"}}
		asserter.NoError(logTransport.Send(contextx.NewContext(), msg))
		asserter.Equal([]*Message{msg}, logTransport.Sent())
	}

	_, ok = New(config.MailConfig{Kind: "amqp"}).(*AMQPTransport)
	asserter.True(ok)
	_, ok = New(config.MailConfig{Kind: "gateway"}).(*GatewayTransport)
	asserter.True(ok)
}

func TestSendTimeout(t *testing.T) {
	asserter := assert.New(t)

	asserter.Equal(defaultSendTimeout, sendTimeout(config.MailConfig{}))
	asserter.Equal(3*time.Second, sendTimeout(config.MailConfig{Timeout: 3}))

	gateway := NewGatewayTransport(config.MailConfig{Timeout: 3})
	asserter.Equal(3*time.Second, gateway.client.Timeout)
}
