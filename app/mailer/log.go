package mailer

import (
	"sync"
	"time"

	"advflow/app/config"
	"advflow/pkg/contextx"
	"advflow/pkg/log"
)

// LogTransport writes messages to the log and keeps them in memory.
type LogTransport struct {
	mu   sync.Mutex
	sent []*Message
}

func NewLogTransport() *LogTransport {
	return &LogTransport{}
}

func (t *LogTransport) Send(ctx *contextx.Context, msg *Message) error {
	t.mu.Lock()
	t.sent = append(t.sent, msg)
	t.mu.Unlock()

	log.GetLogger(ctx, "mailer").WithField("subject", msg.Subject).
		Infof("mail to %v (bcc %v)", msg.To, msg.Bcc)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (t *LogTransport) Sent() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Message(nil), t.sent...)
}

// New builds the transport selected by cfg.Kind.
func New(cfg config.MailConfig) Transport {
	switch cfg.Kind {
	case "amqp":
		return NewAMQPTransport(cfg)
	case "gateway":
		return NewGatewayTransport(cfg)
	default:
		return NewLogTransport()
	}
}

const defaultSendTimeout = 10 * time.Second

func sendTimeout(cfg config.MailConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return defaultSendTimeout
	}
	return time.Duration(cfg.Timeout) * time.Second
}
