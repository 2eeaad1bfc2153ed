package session

import (
	"fmt"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deckhand/internal/timecode"
)

// unsetID renders a transport id the device has not reported.
const unsetID = "—"

// Variables returns the display variables of the current state, keyed by
// variable name.
func (s *Session) Variables() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	vars := map[string]string{
		"status":      cases.Title(language.English).String(s.transport.Status),
		"speed":       strconv.Itoa(s.transport.Speed),
		"clipId":      idVariable(s.transport.ClipID),
		"slotId":      idVariable(s.transport.SlotID),
		"videoFormat": s.transport.VideoFormat,
		"clipCount":   strconv.Itoa(s.clips.Count(s.transport.SlotID)),
	}

	for _, slot := range s.slots {
		vars[fmt.Sprintf("slot%d_recordingTime", slot.ID)] = clockDuration(slot.RecordingTime)
	}
	if active, ok := s.slots[s.transport.SlotID]; ok {
		vars["recordingTime"] = clockDuration(active.RecordingTime)
	}

	putTimecode(vars, "timecode", s.display.CountUp)
	putTimecode(vars, "countdownTimecode", s.display.CountDown)

	state := s.cue.State()
	vars["InPointHMSF"] = state.InPoint.HMSF()
	vars["OutPointHMSF"] = state.OutPoint.HMSF()
	vars["cueState"] = string(state.Phase)
	vars["cueRemainingHMSF"] = timecode.Placeholder().HMSF()
	if state.Remaining >= 0 && s.display.Rate != nil {
		vars["cueRemainingHMSF"] = timecode.FromFrames(state.Remaining, *s.display.Rate).HMSF()
	}
	return vars
}

func putTimecode(vars map[string]string, prefix string, v timecode.Value) {
	h, m, sec, f := v.Parts()
	vars[prefix+"HMS"] = v.HMS()
	vars[prefix+"HMSF"] = v.HMSF()
	vars[prefix+"H"] = h
	vars[prefix+"M"] = m
	vars[prefix+"S"] = sec
	vars[prefix+"F"] = f
}

func idVariable(id int) string {
	if id <= 0 {
		return unsetID
	}
	return strconv.Itoa(id)
}

// clockDuration renders seconds as HH:MM:SS.
func clockDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
