package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/procurement/backend/internal/domain/shared"
)

// HTTPMailerConfig configures the mail gateway client
type HTTPMailerConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// HTTPMailer posts messages to a mail gateway's JSON API
type HTTPMailer struct {
	client *resty.Client
	from   string
}

type gatewayError struct {
	Message string `json:"message"`
}

// NewHTTPMailer creates a mailer for the gateway at cfg.BaseURL
func NewHTTPMailer(cfg HTTPMailerConfig) *HTTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &HTTPMailer{client: client, from: cfg.From}
}

// Notify implements Notifier
func (m *HTTPMailer) Notify(ctx context.Context, msg Message) error {
	body := struct {
		From string `json:"from,omitempty"`
		Message
	}{From: m.from, Message: msg}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&gatewayError{}).
		Post("/messages")
	if err != nil {
		return &shared.DeliveryError{Address: msg.To, Template: msg.Template, Err: err}
	}
	if resp.IsError() {
		reason := resp.Status()
		if ge, ok := resp.Error().(*gatewayError); ok && ge.Message != "" {
			reason = ge.Message
		}
		return &shared.DeliveryError{
			Address:  msg.To,
			Template: msg.Template,
			Err:      fmt.Errorf("mail gateway returned %d: %s", resp.StatusCode(), reason),
		}
	}
	return nil
}
