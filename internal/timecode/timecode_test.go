package timecode_test

import (
	"errors"
	"testing"

	"deckhand/internal/timecode"
)

func mustRate(t *testing.T, format string) timecode.Rate {
	t.Helper()
	rate, ok := timecode.Lookup(format)
	if !ok {
		t.Fatalf("expected rate for %q", format)
	}
	return rate
}

func TestLookupAcceptsUnderscorePrefix(t *testing.T) {
	rate := mustRate(t, "_1080p30")
	if rate.Nominal != 30 || rate.DropFrame {
		t.Fatalf("unexpected rate: %+v", rate)
	}
	if _, ok := timecode.Lookup("8Kp120"); ok {
		t.Fatal("expected unknown format to be unresolved")
	}
	if _, ok := timecode.Lookup(""); ok {
		t.Fatal("expected empty format to be unresolved")
	}
}

func TestLookupTable(t *testing.T) {
	cases := map[string]string{
		"NTSC":       "29.97",
		"1080i5994":  "29.97",
		"PAL":        "25",
		"1080i50":    "25",
		"720p50":     "50",
		"4Kp5994":    "59.94",
		"1080p60":    "60",
		"1080p24":    "24",
		"1080i60":    "30",
		"1080p23976": "23.976",
	}
	for format, want := range cases {
		if got := mustRate(t, format).Name; got != want {
			t.Fatalf("%s: got rate %s want %s", format, got, want)
		}
	}
}

func TestParseScenario1080p30(t *testing.T) {
	rate := mustRate(t, "_1080p30")
	value, err := timecode.Parse("01:00:10:15", &rate)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if value.Hours != 1 || value.Minutes != 0 || value.Seconds != 10 || value.Frames != 15 {
		t.Fatalf("unexpected components: %+v", value)
	}
	if value.HMSF() != "01:00:10:15" {
		t.Fatalf("unexpected string: %q", value.HMSF())
	}
	if want := (3600+10)*30 + 15; value.TotalFrames != want {
		t.Fatalf("total frames: got %d want %d", value.TotalFrames, want)
	}
	if value.HMS() != "01:00:10" {
		t.Fatalf("unexpected HMS: %q", value.HMS())
	}
}

func TestParseRoundTripRestoresString(t *testing.T) {
	cases := []struct {
		format string
		raw    string
	}{
		{"1080p30", "00:00:00:00"},
		{"1080p30", "23:59:59:29"},
		{"PAL", "10:20:30:24"},
		{"1080p24", "00:59:59:23"},
		{"720p60", "01:02:03:59"},
		{"NTSC", "00:01:00;02"},
		{"NTSC", "00:10:00;00"},
		{"NTSC", "12:34:56;12"},
		{"1080p5994", "00:09:00;04"},
		{"1080p5994", "09:59:59;59"},
	}
	for _, tc := range cases {
		rate := mustRate(t, tc.format)
		value, err := timecode.Parse(tc.raw, &rate)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.format, tc.raw, err)
		}
		if value.HMSF() != tc.raw {
			t.Fatalf("%s: got %q want %q", tc.format, value.HMSF(), tc.raw)
		}
		again := timecode.FromFrames(value.TotalFrames, rate)
		if again.HMSF() != tc.raw {
			t.Fatalf("%s: frames %d rendered %q want %q", tc.format, value.TotalFrames, again.HMSF(), tc.raw)
		}
	}
}

func TestFramesRoundTripAcrossRates(t *testing.T) {
	for _, format := range []string{"NTSC", "1080p5994", "PAL", "1080p30", "1080p23976"} {
		rate := mustRate(t, format)
		for frames := 0; frames < 200000; frames += 37 {
			value := timecode.FromFrames(frames, rate)
			parsed, err := timecode.Parse(value.HMSF(), &rate)
			if err != nil {
				t.Fatalf("%s frames %d (%s): %v", format, frames, value.HMSF(), err)
			}
			if parsed.TotalFrames != frames {
				t.Fatalf("%s: %s parsed to %d want %d", format, value.HMSF(), parsed.TotalFrames, frames)
			}
		}
	}
}

func TestDropFrameCounting(t *testing.T) {
	rate := mustRate(t, "NTSC")
	cases := map[string]int{
		"00:00:59;29": 1799,
		"00:01:00;02": 1800,
		"00:10:00;00": 17982,
		"01:00:00;00": 107892,
	}
	for raw, want := range cases {
		value, err := timecode.Parse(raw, &rate)
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if value.TotalFrames != want {
			t.Fatalf("%s: got %d want %d", raw, value.TotalFrames, want)
		}
	}
}

func TestParseRejectsSkippedDropFrameLabel(t *testing.T) {
	rate := mustRate(t, "NTSC")
	_, err := timecode.Parse("00:01:00;00", &rate)
	var parseErr *timecode.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseRejectsOutOfRangeFrames(t *testing.T) {
	rate := mustRate(t, "PAL")
	value, err := timecode.Parse("00:00:01:25", &rate)
	if err == nil {
		t.Fatal("expected error for frame 25 at 25fps")
	}
	if value.Valid {
		t.Fatal("expected placeholder on error")
	}
	if value.HMSF() != "--:--:--:--" {
		t.Fatalf("unexpected placeholder: %q", value.HMSF())
	}
}

func TestParseWithoutRateUsesPatternOnly(t *testing.T) {
	value, err := timecode.Parse("00:12:34;05", nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if value.Counted {
		t.Fatal("expected no frame count without a rate")
	}
	if value.HMSF() != "00:12:34;05" {
		t.Fatalf("unexpected string: %q", value.HMSF())
	}
	if _, err := timecode.Parse("garbage", nil); err == nil {
		t.Fatal("expected error for malformed timecode")
	}
}

func TestPlaceholderParts(t *testing.T) {
	h, m, s, f := timecode.Placeholder().Parts()
	for _, part := range []string{h, m, s, f} {
		if part != "--" {
			t.Fatalf("unexpected placeholder part %q", part)
		}
	}
	if timecode.Placeholder().HMS() != "--:--:--" {
		t.Fatal("unexpected HMS placeholder")
	}
}

func TestComputeCountdownScenario(t *testing.T) {
	display := timecode.Compute(timecode.Input{
		VideoFormat: "1080p30",
		Timecode:    "00:00:15:00",
		Clip:        &timecode.Span{Start: "00:00:00:00", Duration: "00:00:30:00"},
	})
	if display.Err != nil {
		t.Fatalf("Compute error: %v", display.Err)
	}
	if display.CurrentFrame != 450 {
		t.Fatalf("expected current frame 450, got %d", display.CurrentFrame)
	}
	if display.CountDown.TotalFrames != 449 {
		t.Fatalf("expected countdown 449 frames, got %d", display.CountDown.TotalFrames)
	}
	if display.CountDown.HMSF() != "00:00:14:29" {
		t.Fatalf("unexpected countdown: %q", display.CountDown.HMSF())
	}
}

func TestComputeCountdownNeverNegative(t *testing.T) {
	display := timecode.Compute(timecode.Input{
		VideoFormat: "1080p30",
		Timecode:    "00:01:00:00",
		Clip:        &timecode.Span{Start: "00:00:00:00", Duration: "00:00:30:00"},
	})
	if display.CountDown.TotalFrames != 0 || !display.CountDown.Valid {
		t.Fatalf("expected zero countdown, got %+v", display.CountDown)
	}
	if timecode.Remaining(10, 100, 0) < 0 {
		t.Fatal("remaining must not be negative")
	}
}

func TestComputeUnresolvedRateFallsBack(t *testing.T) {
	display := timecode.Compute(timecode.Input{
		VideoFormat: "unknown",
		Timecode:    "00:00:15:00",
		Clip:        &timecode.Span{Start: "00:00:00:00", Duration: "00:00:30:00"},
	})
	if display.Rate != nil {
		t.Fatal("expected no rate")
	}
	if display.CountUp.HMSF() != "00:00:15:00" {
		t.Fatalf("unexpected count up: %q", display.CountUp.HMSF())
	}
	if display.CountDown.Valid {
		t.Fatal("expected placeholder countdown without a rate")
	}
	if display.CurrentFrame != -1 {
		t.Fatalf("expected uncounted frame, got %d", display.CurrentFrame)
	}
}

func TestComputeWithoutClipLeavesCountdownPlaceholder(t *testing.T) {
	display := timecode.Compute(timecode.Input{VideoFormat: "PAL", Timecode: "00:00:01:00"})
	if !display.CountUp.Valid || display.CountDown.Valid {
		t.Fatalf("unexpected display: %+v", display)
	}
}

func TestFramesFor(t *testing.T) {
	rate := mustRate(t, "1080p30")
	if got := rate.FramesFor(3); got != 90 {
		t.Fatalf("got %d want 90", got)
	}
	ntsc := mustRate(t, "NTSC")
	if got := ntsc.FramesFor(2); got != 60 {
		t.Fatalf("got %d want 60", got)
	}
	if got := rate.FramesFor(-1); got != 0 {
		t.Fatalf("got %d want 0", got)
	}
}
