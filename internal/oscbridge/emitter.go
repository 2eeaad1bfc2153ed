package oscbridge

import (
	"context"
	"log/slog"

	"github.com/hypebeast/go-osc/osc"

	"deckhand/internal/logging"
	"deckhand/internal/session"
)

// Emitter sends the fade cue to a show controller. It implements
// session.Dispatcher.
type Emitter struct {
	client  *osc.Client
	address string
	logger  *slog.Logger
}

// NewEmitter targets host:port with messages on address.
func NewEmitter(host string, port int, address string, logger *slog.Logger) *Emitter {
	return &Emitter{
		client:  osc.NewClient(host, port),
		address: address,
		logger:  logging.NewComponentLogger(logger, "osc-emitter"),
	}
}

// CueFired sends address with the fade length in seconds and the out point.
// Automatic stops are not forwarded.
func (e *Emitter) CueFired(_ context.Context, ev session.CueEvent) {
	if ev.Action != session.CueFade {
		return
	}
	msg := osc.NewMessage(e.address, float32(ev.FadeSeconds), ev.OutPoint)
	if err := e.client.Send(msg); err != nil {
		logging.WarnWithContext(e.logger, "osc cue send failed", "osc_send_failed",
			logging.String("address", e.address),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check osc.target_host and osc.target_port"),
			logging.String(logging.FieldImpact, "the show controller did not receive the fade"),
		)
		return
	}
	e.logger.Debug("osc cue sent",
		logging.String("address", e.address),
		logging.String("out_point", ev.OutPoint),
	)
}

func (e *Emitter) StatusChanged(context.Context, session.StatusEvent) {}
