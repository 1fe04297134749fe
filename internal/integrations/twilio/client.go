// Package twilio sends owner alerts as SMS through the Twilio REST API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"order-agent/internal/notify"
)

const maxBodyLen = 1500

// messageAPI is the subset of the Twilio v2010 API used by Client.
type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Credentials is the JSON shape stored in Parameter Store for SMS alerts.
type Credentials struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// ParseCredentials decodes and validates the stored credentials payload.
func ParseCredentials(raw string) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, fmt.Errorf("twilio: unmarshal credentials: %w", err)
	}
	if c.AccountSID == "" || c.AuthToken == "" {
		return Credentials{}, errors.New("twilio: account SID and auth token must be provided")
	}
	if c.From == "" || c.To == "" {
		return Credentials{}, errors.New("twilio: from and to numbers must be provided")
	}
	return c, nil
}

// Client delivers notify.Alert values as SMS to a single owner number.
type Client struct {
	api  messageAPI
	from string
	to   string
}

// NewClient builds a Client from validated credentials.
func NewClient(c Credentials) (*Client, error) {
	if c.AccountSID == "" || c.AuthToken == "" {
		return nil, errors.New("twilio: account SID and auth token must be provided")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: c.AccountSID,
		Password: c.AuthToken,
	})
	return newClient(rest.Api, c.From, c.To)
}

func newClient(api messageAPI, from, to string) (*Client, error) {
	if api == nil {
		return nil, errors.New("twilio: api must not be nil")
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return nil, errors.New("twilio: from and to numbers must be provided")
	}
	return &Client{api: api, from: from, to: to}, nil
}

// Send implements notify.Sender. The Twilio SDK call does not take a context,
// so ctx is only checked before sending.
func (c *Client) Send(ctx context.Context, alert notify.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(c.to)
	params.SetFrom(c.from)
	params.SetBody(formatBody(alert))

	if _, err := c.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: send %s alert: %w", alert.Kind, err)
	}
	slog.Debug("twilio: alert sent", "kind", alert.Kind)
	return nil
}

func formatBody(a notify.Alert) string {
	body := strings.TrimSpace(a.Subject)
	if b := strings.TrimSpace(a.Body); b != "" {
		if body != "" {
			body += "\n"
		}
		body += b
	}
	if len(body) > maxBodyLen {
		body = body[:maxBodyLen]
	}
	return body
}
