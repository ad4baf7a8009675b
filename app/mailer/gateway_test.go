package mailer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"advflow/app/config"
	"advflow/pkg/contextx"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	asserter := assert.New(t)

	params := url.Values{}
	params.Set("b", "2")
	params.Set("a", "1")
	asserter.Equal("d37cfe88ec8ff020e497f5197bf3ba1c", Sign(params, "secret"))

	params.Set("sign", "ignored")
	withSign := Sign(params, "secret")
	params.Del("sign")
	asserter.Equal(Sign(params, "secret"), withSign)
	asserter.NotEqual(Sign(params, "other"), withSign)
	asserter.Len(withSign, 32)
}

func TestGatewayTransport_Send(t *testing.T) {
	asserter := assert.New(t)

	var received url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		asserter.Equal("/message/topic/send", r.URL.Path)
		asserter.Equal("application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		if asserter.NoError(r.ParseForm()) {
			received = r.PostForm
		}
		w.Write([]byte(`{"code": 0}`))
	}))
	defer server.Close()

	transport := NewGatewayTransport(config.MailConfig{
		GatewayURL: server.URL + "/",
		AppKey:     "app",
		SecretKey:  "secret",
		Topic:      "advflow-mail",
	})
	ctx := contextx.NewContext()
	ctx.SetRequestID("req-1")

	err := transport.Send(ctx, &Message{Subject: "Hi", Body: "text", From: "cms@example.com", To: []string{"jo@example.com"}})
	if asserter.NoError(err) && asserter.NotNil(received) {
		asserter.Equal("advflow-mail", received.Get("topic_name"))
		asserter.Equal("app", received.Get("app_key"))
		asserter.Equal("req-1", received.Get("msg_request_id"))

		msg := &Message{}
		if asserter.NoError(json.Unmarshal([]byte(received.Get("msg")), msg)) {
			asserter.Equal("Hi", msg.Subject)
			asserter.Equal([]string{"jo@example.com"}, msg.To)
		}
		sign := received.Get("sign")
		asserter.Equal(Sign(received, "secret"), sign)
	}

	asserter.Error(transport.Send(ctx, &Message{Subject: "nobody"}))
}

func TestGatewayTransport_SendRejected(t *testing.T) {
	asserter := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad sign", http.StatusForbidden)
	}))
	defer server.Close()

	transport := NewGatewayTransport(config.MailConfig{GatewayURL: server.URL})
	err := transport.Send(contextx.NewContext(), &Message{Subject: "Hi", Bcc: []string{"jo@example.com"}})
	if asserter.Error(err) {
		asserter.Contains(err.Error(), "403")
		asserter.Contains(err.Error(), "bad sign")
	}
}
