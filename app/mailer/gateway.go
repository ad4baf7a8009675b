package mailer

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"advflow/app/config"
	"advflow/pkg/contextx"
	"advflow/pkg/log"

	"github.com/google/uuid"
)

// GatewayTransport posts mail jobs to the message gateway's topic api as a
// signed form.
type GatewayTransport struct {
	url       string
	topic     string
	appKey    string
	secretKey string
	client    *http.Client
}

func NewGatewayTransport(cfg config.MailConfig) *GatewayTransport {
	return &GatewayTransport{
		url:       strings.TrimRight(cfg.GatewayURL, "/") + "/message/topic/send",
		topic:     cfg.Topic,
		appKey:    cfg.AppKey,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: sendTimeout(cfg)},
	}
}

// Sign is the gateway signature: the md5 of every k=v pair in key order
// followed by the secret key.
func Sign(params url.Values, secretKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "sign" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params.Get(k))
	}
	b.WriteString(secretKey)
	return fmt.Sprintf("%x", md5.Sum([]byte(b.String())))
}

func (t *GatewayTransport) Send(ctx *contextx.Context, msg *Message) error {
	if len(msg.Recipients()) == 0 {
		return errors.New("message has no recipients")
	}
	body, err := msg.ToBytes()
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("topic_name", t.topic)
	params.Set("msg_id", uuid.NewString())
	params.Set("msg_action", "advflow.mail")
	params.Set("msg_timestamp", time.Now().UTC().Format("2006-01-02T15:04:05.000"))
	params.Set("msg_request_id", ctx.GetRequestID())
	params.Set("app_key", t.appKey)
	params.Set("msg", string(body))
	params.Set("sign", Sign(params, t.secretKey))

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	request.Header.Add("Accept", "application/json")
	request.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	response, err := t.client.Do(request)
	if err != nil {
		return fmt.Errorf("post to message gateway: %w", err)
	}
	defer response.Body.Close()

	b, _ := ioutil.ReadAll(response.Body)
	log.Debugf(ctx, "Send mail %s to gateway, return code %d, response %s", msg, response.StatusCode, string(b))
	if response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("message gateway returned %d: %s", response.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
