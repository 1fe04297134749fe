// Package notify delivers best-effort owner alerts. Delivery runs in the
// background; failures are logged and never reach the customer.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind classifies an alert.
type Kind string

const (
	KindNewOrder   Kind = "new_order"
	KindEscalation Kind = "escalation"
)

const defaultSendTimeout = 10 * time.Second

// Alert is a short message for the shop owner.
type Alert struct {
	Kind      Kind
	SessionID string
	Subject   string
	Body      string
}

// Sender delivers one alert over some channel (SMS, email, ...).
type Sender interface {
	Send(ctx context.Context, alert Alert) error
}

// Dispatcher sends alerts without blocking the caller.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher returns a Dispatcher. A nil sender makes Notify a logged no-op.
func NewDispatcher(sender Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{sender: sender, timeout: timeout}
}

// Notify sends alert in the background.
func (d *Dispatcher) Notify(alert Alert) {
	if d == nil || d.sender == nil {
		slog.Debug("notify: no sender configured, dropping alert", "kind", alert.Kind, "sessionID", alert.SessionID)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sender.Send(ctx, alert); err != nil {
			slog.Error("notify: alert delivery failed", "err", err, "kind", alert.Kind, "sessionID", alert.SessionID)
			return
		}
		slog.Debug("notify: alert sent", "kind", alert.Kind, "sessionID", alert.SessionID)
	}()
}

// Wait blocks until every in-flight alert has finished. Lambda handlers call
// it before returning because the runtime freezes background goroutines.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
