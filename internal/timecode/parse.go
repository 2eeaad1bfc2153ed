package timecode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var timecodePattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})([:;])(\d{2})$`)

// ParseError reports a timecode that could not be interpreted.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return "timecode: " + e.Reason
	}
	return fmt.Sprintf("timecode %q: %s", e.Raw, e.Reason)
}

// Parse interprets raw against rate. With a rate the result carries an
// absolute frame count following the rate's drop-frame convention. Without a
// rate only the components are extracted and Counted is false. Failures
// return the placeholder together with a *ParseError.
func Parse(raw string, rate *Rate) (Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Placeholder(), &ParseError{Reason: "empty"}
	}
	match := timecodePattern.FindStringSubmatch(raw)
	if match == nil {
		return Placeholder(), &ParseError{Raw: raw, Reason: "expected HH:MM:SS:FF"}
	}
	h, _ := strconv.Atoi(match[1])
	m, _ := strconv.Atoi(match[2])
	s, _ := strconv.Atoi(match[3])
	f, _ := strconv.Atoi(match[5])
	value := Value{Hours: h, Minutes: m, Seconds: s, Frames: f, Valid: true, sep: match[4][0]}

	if rate == nil {
		return value, nil
	}
	return count(raw, value, *rate)
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string, rate Rate) Value {
	value, err := Parse(raw, &rate)
	if err != nil {
		panic(err)
	}
	return value
}

func count(raw string, v Value, rate Rate) (Value, error) {
	if rate.Nominal <= 0 {
		return Placeholder(), &ParseError{Raw: raw, Reason: "rate has no frames"}
	}
	if v.Minutes > 59 || v.Seconds > 59 {
		return Placeholder(), &ParseError{Raw: raw, Reason: "minutes and seconds must be below 60"}
	}
	if v.Frames >= rate.Nominal {
		return Placeholder(), &ParseError{Raw: raw, Reason: fmt.Sprintf("frame %d out of range at %s fps", v.Frames, rate.Name)}
	}
	drop := rate.dropPerMinute()
	if drop > 0 && v.Seconds == 0 && v.Minutes%10 != 0 && v.Frames < drop {
		return Placeholder(), &ParseError{Raw: raw, Reason: "frame label skipped by drop-frame counting"}
	}

	totalMinutes := v.Hours*60 + v.Minutes
	frames := (v.Hours*3600+v.Minutes*60+v.Seconds)*rate.Nominal + v.Frames
	frames -= drop * (totalMinutes - totalMinutes/10)

	v.TotalFrames = frames
	v.Counted = true
	return v, nil
}
