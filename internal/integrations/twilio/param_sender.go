package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"order-agent/internal/notify"
)

// ParamGetter reads a batch of parameters; unknown names are absent from
// the result.
type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// ParamSender resolves its credentials from Parameter Store on the first
// alert. When the parameter does not exist, alerts are dropped for the rest
// of the process. Failed lookups are retried on the next alert.
type ParamSender struct {
	params ParamGetter
	name   string
	build  func(Credentials) (notify.Sender, error)

	mu       sync.Mutex
	resolved bool
	sender   notify.Sender
}

func NewParamSender(params ParamGetter, name string) (*ParamSender, error) {
	if params == nil {
		return nil, errors.New("twilio: param getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("twilio: parameter name must not be empty")
	}
	return &ParamSender{
		params: params,
		name:   name,
		build: func(c Credentials) (notify.Sender, error) {
			return NewClient(c)
		},
	}, nil
}

// Send implements notify.Sender.
func (s *ParamSender) Send(ctx context.Context, alert notify.Alert) error {
	sender, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	if sender == nil {
		slog.Debug("twilio: alerts disabled, dropping alert", "kind", alert.Kind)
		return nil
	}
	return sender.Send(ctx, alert)
}

func (s *ParamSender) resolve(ctx context.Context) (notify.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.sender, nil
	}

	vals, err := s.params.GetParameters(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("twilio: load credentials: %w", err)
	}
	raw, ok := vals[s.name]
	if !ok {
		slog.Info("twilio: no credentials configured, SMS alerts disabled", "parameter", s.name)
		s.resolved = true
		return nil, nil
	}
	creds, err := ParseCredentials(raw)
	if err != nil {
		return nil, err
	}
	sender, err := s.build(creds)
	if err != nil {
		return nil, err
	}
	s.sender = sender
	s.resolved = true
	return sender, nil
}
