package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"order-agent/internal/domain"
	"order-agent/internal/notify"
)

var (
	ErrEmptyOrder   = errors.New("usecase: order has no items")
	ErrMissingName  = errors.New("usecase: customer name is missing")
	ErrMissingEmail = errors.New("usecase: customer email is missing")
	ErrPersist      = errors.New("usecase: order could not be recorded")
)

// OrderRecorder persists a placed order. It returns the identifier it stored
// the order under; an empty identifier means the one in the order is used.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, order domain.PlacedOrder) (string, error)
}

// Notifier sends a best-effort owner alert without blocking.
type Notifier interface {
	Notify(alert notify.Alert)
}

// Finalizer validates a completed order and hands it to the recorder.
type Finalizer struct {
	recorder OrderRecorder
	notifier Notifier
	now      func() time.Time
}

// NewFinalizer returns a Finalizer. notifier may be nil.
func NewFinalizer(recorder OrderRecorder, notifier Notifier) (*Finalizer, error) {
	if recorder == nil {
		return nil, errors.New("usecase: order recorder must not be nil")
	}
	return &Finalizer{recorder: recorder, notifier: notifier, now: time.Now}, nil
}

// Finalize checks the order is complete, records it and returns its id. The
// order is never modified; a persistence failure wraps ErrPersist.
func (f *Finalizer) Finalize(ctx context.Context, sessionID string, order domain.Order) (string, error) {
	switch {
	case order.IsEmpty():
		return "", ErrEmptyOrder
	case strings.TrimSpace(order.CustomerName) == "":
		return "", ErrMissingName
	case strings.TrimSpace(order.CustomerEmail) == "":
		return "", ErrMissingEmail
	}

	placed := domain.PlacedOrder{
		ID:        newOrderID(),
		SessionID: sessionID,
		Order:     order.Clone(),
		PlacedAt:  f.now().UTC(),
	}
	id, err := f.recorder.RecordOrder(ctx, placed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if id == "" {
		id = placed.ID
	}

	slog.Info("usecase: order placed", "orderID", id, "sessionID", sessionID, "total", order.Total)
	if f.notifier != nil {
		f.notifier.Notify(notify.Alert{
			Kind:      notify.KindNewOrder,
			SessionID: sessionID,
			Subject:   fmt.Sprintf("New order %s (%s)", id, money(order.Total)),
			Body:      fmt.Sprintf("%s <%s>\n%s", order.CustomerName, order.CustomerEmail, formatLines(order, nil)),
		})
	}
	return id, nil
}

var newOrderID = func() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:8])
}
