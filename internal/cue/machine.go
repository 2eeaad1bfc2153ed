// Package cue implements the out-point fade and stop trigger.
//
// The machine moves Idle -> Armed on an explicit arm, Armed -> Triggered once
// the frames left before the out point drop below the fade lead, and
// Triggered -> Idle when the out point is reached or on reset. The fade fires
// on the Armed -> Triggered edge only, so repeated evaluation at the same
// position never fires twice. The stop latch is independent: when armed it
// issues one stop at the out point and clears itself.
package cue

import (
	"deckhand/internal/timecode"
)

// Phase is the trigger state.
type Phase string

const (
	Idle      Phase = "idle"
	Armed     Phase = "armed"
	Triggered Phase = "triggered"
)

// State is a snapshot of the machine.
type State struct {
	Phase       Phase          `json:"phase"`
	InPoint     timecode.Value `json:"-"`
	OutPoint    timecode.Value `json:"-"`
	FadeSeconds float64        `json:"fade_seconds"`
	StopArmed   bool           `json:"stop_armed"`
	// Remaining is the frames left to the out point at the last evaluation,
	// or -1 when it could not be computed.
	Remaining int `json:"remaining"`
}

// Armed reports whether the fade is waiting to fire.
func (s State) Armed() bool { return s.Phase == Armed }

// Triggered reports whether the fade fired and the out point is not reached.
func (s State) Triggered() bool { return s.Phase == Triggered }

// Actions are the side effects requested by one evaluation.
type Actions struct {
	Fade       bool
	Stop       bool
	Remaining  int
	FadeFrames int
}

// Machine is not safe for concurrent use; the owning session serializes it.
type Machine struct {
	state State
}

// New returns an idle machine with the given fade lead.
func New(fadeSeconds float64) *Machine {
	return &Machine{state: State{Phase: Idle, FadeSeconds: fadeSeconds, Remaining: -1}}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state
}

// Arm readies the fade. Arming while triggered starts a new cycle.
func (m *Machine) Arm() {
	m.state.Phase = Armed
}

// ArmStop readies the automatic stop.
func (m *Machine) ArmStop() {
	m.state.StopArmed = true
}

// Reset returns to Idle and clears the stop latch.
func (m *Machine) Reset() {
	m.state.Phase = Idle
	m.state.StopArmed = false
}

// SetIn records the cue in point.
func (m *Machine) SetIn(v timecode.Value) {
	m.state.InPoint = v
}

// SetOut records the cue out point.
func (m *Machine) SetOut(v timecode.Value) {
	m.state.OutPoint = v
}

// SetFadeSeconds changes the fade lead.
func (m *Machine) SetFadeSeconds(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	m.state.FadeSeconds = seconds
}

// Evaluate advances the machine for the current absolute frame. current is
// negative when the position is unknown. At most one phase transition happens
// per call.
func (m *Machine) Evaluate(current int, rate *timecode.Rate) Actions {
	out, ok := m.outFrames(rate)
	if !ok || current < 0 {
		m.state.Remaining = -1
		return Actions{Remaining: -1}
	}

	remaining := out - current
	if remaining < 0 {
		remaining = 0
	}
	m.state.Remaining = remaining
	acts := Actions{Remaining: remaining, FadeFrames: rate.FramesFor(m.state.FadeSeconds)}

	switch m.state.Phase {
	case Armed:
		if remaining < acts.FadeFrames {
			m.state.Phase = Triggered
			acts.Fade = true
		}
	case Triggered:
		if remaining == 0 {
			m.state.Phase = Idle
		}
	}

	if m.state.StopArmed && remaining == 0 {
		m.state.StopArmed = false
		acts.Stop = true
	}
	return acts
}

// Interval returns the frames between the in and out points.
func (m *Machine) Interval(rate *timecode.Rate) (int, bool) {
	if rate == nil || !m.state.InPoint.Valid || !m.state.OutPoint.Valid {
		return 0, false
	}
	in, err := timecode.Parse(m.state.InPoint.HMSF(), rate)
	if err != nil {
		return 0, false
	}
	out, ok := m.outFrames(rate)
	if !ok || out < in.TotalFrames {
		return 0, false
	}
	return out - in.TotalFrames, true
}

// outFrames counts the out point at the current rate, which may differ from
// the rate in force when the point was set.
func (m *Machine) outFrames(rate *timecode.Rate) (int, bool) {
	if rate == nil || !m.state.OutPoint.Valid {
		return 0, false
	}
	out, err := timecode.Parse(m.state.OutPoint.HMSF(), rate)
	if err != nil {
		return 0, false
	}
	return out.TotalFrames, true
}
