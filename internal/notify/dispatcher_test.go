package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingSender struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
	delay  time.Duration
}

func (r *recordingSender) Send(ctx context.Context, a Alert) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &recordingSender{}
	d := NewDispatcher(s, time.Second)
	d.Notify(Alert{Kind: KindNewOrder, SessionID: "s-1", Subject: "New order"})
	d.Notify(Alert{Kind: KindEscalation, SessionID: "s-2"})
	d.Wait()

	require.Len(t, s.alerts, 2)
}

func TestDispatcher_SenderErrorIsSwallowed(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &recordingSender{err: errors.New("twilio down")}
	d := NewDispatcher(s, time.Second)
	d.Notify(Alert{Kind: KindNewOrder})
	d.Wait()
	require.Len(t, s.alerts, 1)
}

func TestDispatcher_TimeoutBoundsSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &recordingSender{delay: time.Second}
	d := NewDispatcher(s, 20*time.Millisecond)
	start := time.Now()
	d.Notify(Alert{Kind: KindNewOrder})
	d.Wait()
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Empty(t, s.alerts)
}

func TestDispatcher_NilSenderAndNilDispatcher(t *testing.T) {
	defer goleak.VerifyNone(t)

	NewDispatcher(nil, 0).Notify(Alert{Kind: KindNewOrder})
	var d *Dispatcher
	d.Notify(Alert{Kind: KindNewOrder})
	d.Wait()
}
