package session

import "context"

// CueAction names the side effect a cue evaluation produced.
type CueAction string

const (
	CueFade CueAction = "fade"
	CueStop CueAction = "stop"
)

// CueEvent describes a fired fade or an issued automatic stop.
type CueEvent struct {
	Action      CueAction
	SessionID   string
	OutPoint    string
	FadeSeconds float64
	Remaining   int
	SlotID      int
	ClipID      int
	// Err is set when the automatic stop command failed.
	Err error
}

// StatusEvent describes a connection status change.
type StatusEvent struct {
	SessionID       string
	Status          Status
	Addr            string
	Model           string
	ProtocolVersion string
	Err             error
}

// Dispatcher receives session side effects. Calls are synchronous and made
// without session locks held; slow implementations should hand off work.
type Dispatcher interface {
	CueFired(ctx context.Context, ev CueEvent)
	StatusChanged(ctx context.Context, ev StatusEvent)
}

// Dispatchers fans events out to every non-nil member.
type Dispatchers []Dispatcher

func (d Dispatchers) CueFired(ctx context.Context, ev CueEvent) {
	for _, target := range d {
		if target != nil {
			target.CueFired(ctx, ev)
		}
	}
}

func (d Dispatchers) StatusChanged(ctx context.Context, ev StatusEvent) {
	for _, target := range d {
		if target != nil {
			target.StatusChanged(ctx, ev)
		}
	}
}

type nopDispatcher struct{}

func (nopDispatcher) CueFired(context.Context, CueEvent) {}

func (nopDispatcher) StatusChanged(context.Context, StatusEvent) {}
