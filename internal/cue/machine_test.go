package cue_test

import (
	"testing"

	"deckhand/internal/cue"
	"deckhand/internal/timecode"
)

func rate30(t *testing.T) *timecode.Rate {
	t.Helper()
	rate, ok := timecode.Lookup("1080p30")
	if !ok {
		t.Fatal("expected 1080p30 rate")
	}
	return &rate
}

func newMachine(t *testing.T, out string, fade float64) (*cue.Machine, *timecode.Rate) {
	t.Helper()
	rate := rate30(t)
	m := cue.New(fade)
	m.SetOut(timecode.MustParse(out, *rate))
	return m, rate
}

func TestFadeFiresOnceAcrossRepeatedEvaluation(t *testing.T) {
	m, rate := newMachine(t, "00:01:00:00", 2)
	m.Arm()
	out := 1800

	fades := 0
	for current := out - 120; current < out; current++ {
		for repeat := 0; repeat < 3; repeat++ {
			if m.Evaluate(current, rate).Fade {
				fades++
			}
		}
	}
	if fades != 1 {
		t.Fatalf("expected exactly one fade, got %d", fades)
	}
	if !m.State().Triggered() {
		t.Fatalf("expected triggered before out point, got %s", m.State().Phase)
	}
	m.Evaluate(out, rate)
	if m.State().Phase != cue.Idle {
		t.Fatalf("expected idle at out point, got %s", m.State().Phase)
	}
	if m.Evaluate(out-10, rate).Fade {
		t.Fatal("expected no fade before re-arming")
	}
}

func TestFadeFiresWhenRemainingDropsBelowLead(t *testing.T) {
	m, rate := newMachine(t, "00:00:10:00", 1)
	m.Arm()
	if acts := m.Evaluate(270, rate); acts.Fade {
		t.Fatalf("expected no fade at remaining %d == lead %d", acts.Remaining, acts.FadeFrames)
	}
	if acts := m.Evaluate(271, rate); !acts.Fade || acts.Remaining != 29 {
		t.Fatalf("expected fade at remaining 29, got %+v", acts)
	}
}

func TestIdleMachineNeverFires(t *testing.T) {
	m, rate := newMachine(t, "00:00:10:00", 1)
	for current := 0; current <= 300; current++ {
		if acts := m.Evaluate(current, rate); acts.Fade || acts.Stop {
			t.Fatalf("unexpected action at %d: %+v", current, acts)
		}
	}
}

func TestStopFiresExactlyOnce(t *testing.T) {
	m, rate := newMachine(t, "00:00:10:00", 0)
	m.ArmStop()

	acts := m.Evaluate(300, rate)
	if !acts.Stop || acts.Remaining != 0 {
		t.Fatalf("expected stop at out point, got %+v", acts)
	}
	if m.State().StopArmed {
		t.Fatal("expected stop latch cleared")
	}
	if m.Evaluate(300, rate).Stop {
		t.Fatal("expected no second stop at the same position")
	}
	if m.Evaluate(310, rate).Stop {
		t.Fatal("expected no stop past the out point without re-arming")
	}
}

func TestStopArmedWaitsForOutPoint(t *testing.T) {
	m, rate := newMachine(t, "00:00:10:00", 0)
	m.ArmStop()
	if m.Evaluate(299, rate).Stop {
		t.Fatal("expected no stop one frame early")
	}
	if !m.State().StopArmed {
		t.Fatal("expected latch to remain armed")
	}
}

func TestEvaluateWithoutOutPointOrRate(t *testing.T) {
	m := cue.New(2)
	m.Arm()
	m.ArmStop()
	if acts := m.Evaluate(100, rate30(t)); acts.Fade || acts.Stop || acts.Remaining != -1 {
		t.Fatalf("expected no actions without out point, got %+v", acts)
	}

	m2, _ := newMachine(t, "00:00:10:00", 2)
	m2.Arm()
	if acts := m2.Evaluate(299, nil); acts.Fade || acts.Remaining != -1 {
		t.Fatalf("expected no actions without rate, got %+v", acts)
	}
	if acts := m2.Evaluate(-1, rate30(t)); acts.Fade {
		t.Fatalf("expected no actions with unknown position, got %+v", acts)
	}
}

func TestResetClearsState(t *testing.T) {
	m, rate := newMachine(t, "00:00:10:00", 2)
	m.Arm()
	m.Evaluate(290, rate)
	m.ArmStop()
	m.Reset()
	state := m.State()
	if state.Phase != cue.Idle || state.StopArmed {
		t.Fatalf("unexpected state after reset: %+v", state)
	}
}

func TestInterval(t *testing.T) {
	m, rate := newMachine(t, "00:00:10:00", 2)
	if _, ok := m.Interval(rate); ok {
		t.Fatal("expected no interval without in point")
	}
	m.SetIn(timecode.MustParse("00:00:04:00", *rate))
	frames, ok := m.Interval(rate)
	if !ok || frames != 180 {
		t.Fatalf("expected 180 frames, got %d %v", frames, ok)
	}
}
