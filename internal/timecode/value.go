package timecode

import (
	"fmt"
	"strconv"
)

const (
	placeholderPart = "--"
	placeholderHMS  = "--:--:--"
	placeholderHMSF = "--:--:--:--"
)

// Value is a structured timecode. The zero value is the placeholder shown when
// no rate or raw timecode is available.
type Value struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
	// TotalFrames is only meaningful when Counted is true.
	TotalFrames int
	Valid       bool
	Counted     bool
	sep         byte
}

// Placeholder returns the invalid value.
func Placeholder() Value {
	return Value{}
}

// HMS renders HH:MM:SS or the placeholder.
func (v Value) HMS() string {
	if !v.Valid {
		return placeholderHMS
	}
	return fmt.Sprintf("%02d:%02d:%02d", v.Hours, v.Minutes, v.Seconds)
}

// HMSF renders HH:MM:SS:FF (HH:MM:SS;FF for drop-frame) or the placeholder.
func (v Value) HMSF() string {
	if !v.Valid {
		return placeholderHMSF
	}
	sep := v.sep
	if sep == 0 {
		sep = ':'
	}
	return fmt.Sprintf("%s%c%02d", v.HMS(), sep, v.Frames)
}

func (v Value) String() string {
	return v.HMSF()
}

// Parts returns the two digit hour, minute, second and frame labels.
func (v Value) Parts() (h, m, s, f string) {
	if !v.Valid {
		return placeholderPart, placeholderPart, placeholderPart, placeholderPart
	}
	return pad2(v.Hours), pad2(v.Minutes), pad2(v.Seconds), pad2(v.Frames)
}

func pad2(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// FromFrames converts an absolute frame count into a timecode at rate.
// Negative counts clamp to zero.
func FromFrames(frames int, rate Rate) Value {
	if rate.Nominal <= 0 {
		return Placeholder()
	}
	if frames < 0 {
		frames = 0
	}
	total := frames
	label := frames
	if drop := rate.dropPerMinute(); drop > 0 {
		perMinute := rate.Nominal*60 - drop
		perTenMinutes := rate.Nominal*600 - drop*9
		tens := frames / perTenMinutes
		rem := frames % perTenMinutes
		label += drop * 9 * tens
		if rem > drop {
			label += drop * ((rem - drop) / perMinute)
		}
	}
	nominal := rate.Nominal
	return Value{
		Hours:       label / (nominal * 3600),
		Minutes:     (label / (nominal * 60)) % 60,
		Seconds:     (label / nominal) % 60,
		Frames:      label % nominal,
		TotalFrames: total,
		Valid:       true,
		Counted:     true,
		sep:         rate.separator(),
	}
}
