package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"deckhand/internal/logging"
	"deckhand/internal/session"
)

const publishTimeout = 15 * time.Second

// Dispatcher forwards session events to a Service. Publishing runs in the
// background so a slow ntfy server never stalls state reconciliation.
type Dispatcher struct {
	svc    Service
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wraps svc.
func NewDispatcher(svc Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{svc: svc, logger: logging.NewComponentLogger(logger, "notifications")}
}

// CueFired publishes fades and automatic stops.
func (d *Dispatcher) CueFired(_ context.Context, ev session.CueEvent) {
	fields := Payload{"outPoint": ev.OutPoint}
	event := EventCueFired
	if ev.Action == session.CueStop {
		event = EventStopIssued
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
	}
	d.publish(event, fields)
}

// StatusChanged publishes connection gains and losses. The transient
// connecting status is not published.
func (d *Dispatcher) StatusChanged(_ context.Context, ev session.StatusEvent) {
	fields := Payload{"device": ev.Addr, "model": ev.Model}
	switch ev.Status {
	case session.StatusOK:
		d.publish(EventConnected, fields)
	case session.StatusError:
		if ev.Err != nil {
			fields["error"] = ev.Err.Error()
		}
		d.publish(EventDisconnected, fields)
	}
}

// Publish sends an event that does not originate in the session, such as a
// format result.
func (d *Dispatcher) Publish(event Event, fields Payload) {
	d.publish(event, fields)
}

// Wait blocks until queued publishes finish. Events published after Wait
// begins are dropped until Resume.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Resume accepts events again after Wait.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	d.closed = false
	d.mu.Unlock()
}

func (d *Dispatcher) publish(event Event, fields Payload) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("notification dropped after shutdown", logging.String("event", string(event)))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := d.svc.Publish(ctx, event, fields); err != nil {
			logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "operators are not alerted of this event"),
			)
		}
	}()
}
