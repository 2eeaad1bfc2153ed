package timecode

import (
	"math"
	"strings"
)

// Rate describes a video timebase.
type Rate struct {
	Name      string  `json:"name"`
	FPS       float64 `json:"fps"`
	Nominal   int     `json:"nominal"`
	DropFrame bool    `json:"drop_frame"`
}

var (
	rate2398 = Rate{Name: "23.976", FPS: 24000.0 / 1001.0, Nominal: 24}
	rate24   = Rate{Name: "24", FPS: 24, Nominal: 24}
	rate25   = Rate{Name: "25", FPS: 25, Nominal: 25}
	rate2997 = Rate{Name: "29.97", FPS: 30000.0 / 1001.0, Nominal: 30, DropFrame: true}
	rate30   = Rate{Name: "30", FPS: 30, Nominal: 30}
	rate50   = Rate{Name: "50", FPS: 50, Nominal: 50}
	rate5994 = Rate{Name: "59.94", FPS: 60000.0 / 1001.0, Nominal: 60, DropFrame: true}
	rate60   = Rate{Name: "60", FPS: 60, Nominal: 60}
)

var formatRates = map[string]Rate{
	"NTSC":      rate2997,
	"NTSCp":     rate2997,
	"1080p2997": rate2997,
	"1080i5994": rate2997,
	"4Kp2997":   rate2997,

	"PAL":     rate25,
	"PALp":    rate25,
	"1080p25": rate25,
	"1080i50": rate25,
	"4Kp25":   rate25,

	"720p50":  rate50,
	"1080p50": rate50,
	"4Kp50":   rate50,

	"720p5994":  rate5994,
	"1080p5994": rate5994,
	"4Kp5994":   rate5994,

	"720p60":  rate60,
	"1080p60": rate60,
	"4Kp60":   rate60,

	"1080p23976": rate2398,
	"4Kp23976":   rate2398,

	"1080p24": rate24,
	"4Kp24":   rate24,

	"1080p30": rate30,
	"1080i60": rate30,
	"4Kp30":   rate30,
}

// Lookup resolves the rate for a device video format identifier. A leading
// underscore, as used by some action option ids, is ignored.
func Lookup(format string) (Rate, bool) {
	key := strings.TrimPrefix(strings.TrimSpace(format), "_")
	if key == "" {
		return Rate{}, false
	}
	rate, ok := formatRates[key]
	return rate, ok
}

// Formats returns the video formats with a known rate.
func Formats() []string {
	out := make([]string, 0, len(formatRates))
	for name := range formatRates {
		out = append(out, name)
	}
	return out
}

// FramesFor converts a duration in seconds to the nearest whole frame count.
func (r Rate) FramesFor(seconds float64) int {
	if seconds <= 0 || r.FPS <= 0 {
		return 0
	}
	return int(math.Round(seconds * r.FPS))
}

// dropPerMinute is the number of frame labels skipped at each non-tenth minute.
func (r Rate) dropPerMinute() int {
	if !r.DropFrame {
		return 0
	}
	return r.Nominal / 15
}

func (r Rate) separator() byte {
	if r.DropFrame {
		return ';'
	}
	return ':'
}
