package mailer

import (
	"encoding/json"
	"strings"

	"advflow/pkg/contextx"
)

// Message is one email handed to a transport.
type Message struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	From    string   `json:"from"`
	To      []string `json:"to,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
}

func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Bcc))
	out = append(out, m.To...)
	return append(out, m.Bcc...)
}

func (m *Message) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Message) String() string {
	return m.Subject + " -> " + strings.Join(m.Recipients(), ",")
}

// Transport delivers messages.
type Transport interface {
	Send(ctx *contextx.Context, msg *Message) error
}
