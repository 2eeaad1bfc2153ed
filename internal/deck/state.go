// Package deck holds the canonical device state bundle and its sparse merge
// rules.
package deck

// Transport status values reported by the device.
const (
	StatusPreview = "preview"
	StatusStopped = "stopped"
	StatusPlay    = "play"
	StatusForward = "forward"
	StatusRewind  = "rewind"
	StatusJog     = "jog"
	StatusShuttle = "shuttle"
	StatusRecord  = "record"
)

// Slot status values reported by the device.
const (
	SlotEmpty    = "empty"
	SlotError    = "error"
	SlotMounted  = "mounted"
	SlotMounting = "mounting"
)

// TransportState mirrors the device transport. SlotID and ClipID are zero
// when unset; the device numbers both from 1.
type TransportState struct {
	Status          string `json:"status"`
	Speed           int    `json:"speed"`
	SlotID          int    `json:"slot_id"`
	ClipID          int    `json:"clip_id"`
	SingleClip      bool   `json:"single_clip"`
	Loop            bool   `json:"loop"`
	DisplayTimecode string `json:"display_timecode"`
	Timecode        string `json:"timecode"`
	VideoFormat     string `json:"video_format"`
}

// TransportUpdate carries the fields present in one transport report. Nil
// fields were absent and are left untouched by Apply.
type TransportUpdate struct {
	Status          *string
	Speed           *int
	SlotID          *int
	ClipID          *int
	SingleClip      *bool
	Loop            *bool
	DisplayTimecode *string
	Timecode        *string
	VideoFormat     *string
}

// Empty reports whether the update carries no fields.
func (u TransportUpdate) Empty() bool {
	return u == TransportUpdate{}
}

// Apply merges the present fields and returns the names of fields whose value
// changed.
func (t *TransportState) Apply(u TransportUpdate) []string {
	var changed []string
	changed = mergeString(changed, "status", &t.Status, u.Status)
	changed = mergeInt(changed, "speed", &t.Speed, u.Speed)
	changed = mergeInt(changed, "slot_id", &t.SlotID, u.SlotID)
	changed = mergeInt(changed, "clip_id", &t.ClipID, u.ClipID)
	changed = mergeBool(changed, "single_clip", &t.SingleClip, u.SingleClip)
	changed = mergeBool(changed, "loop", &t.Loop, u.Loop)
	changed = mergeString(changed, "display_timecode", &t.DisplayTimecode, u.DisplayTimecode)
	changed = mergeString(changed, "timecode", &t.Timecode, u.Timecode)
	changed = mergeString(changed, "video_format", &t.VideoFormat, u.VideoFormat)
	return changed
}

// SlotState mirrors one storage bay.
type SlotState struct {
	ID            int    `json:"id"`
	Status        string `json:"status"`
	RecordingTime int    `json:"recording_time"`
	VolumeName    string `json:"volume_name,omitempty"`
	VideoFormat   string `json:"video_format,omitempty"`
}

// SlotUpdate carries the fields present in one slot report.
type SlotUpdate struct {
	ID            int
	Status        *string
	RecordingTime *int
	VolumeName    *string
	VideoFormat   *string
}

// Apply merges the present fields and returns the names of changed fields.
func (s *SlotState) Apply(u SlotUpdate) []string {
	var changed []string
	changed = mergeString(changed, "status", &s.Status, u.Status)
	changed = mergeInt(changed, "recording_time", &s.RecordingTime, u.RecordingTime)
	changed = mergeString(changed, "volume_name", &s.VolumeName, u.VolumeName)
	changed = mergeString(changed, "video_format", &s.VideoFormat, u.VideoFormat)
	return changed
}

// ConfigurationState mirrors the device input and codec configuration.
type ConfigurationState struct {
	AudioInput string `json:"audio_input"`
	VideoInput string `json:"video_input"`
	FileFormat string `json:"file_format"`
}

// ConfigurationUpdate carries the fields present in one configuration report.
type ConfigurationUpdate struct {
	AudioInput *string
	VideoInput *string
	FileFormat *string
}

// Apply merges the present fields and returns the names of changed fields.
func (c *ConfigurationState) Apply(u ConfigurationUpdate) []string {
	var changed []string
	changed = mergeString(changed, "audio_input", &c.AudioInput, u.AudioInput)
	changed = mergeString(changed, "video_input", &c.VideoInput, u.VideoInput)
	changed = mergeString(changed, "file_format", &c.FileFormat, u.FileFormat)
	return changed
}

// Clip is one entry of a slot's clip list. ID is the ordinal within the slot.
type Clip struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	Duration  string `json:"duration"`
}

func mergeString(changed []string, name string, dst *string, src *string) []string {
	if src == nil || *dst == *src {
		return changed
	}
	*dst = *src
	return append(changed, name)
}

func mergeInt(changed []string, name string, dst *int, src *int) []string {
	if src == nil || *dst == *src {
		return changed
	}
	*dst = *src
	return append(changed, name)
}

func mergeBool(changed []string, name string, dst *bool, src *bool) []string {
	if src == nil || *dst == *src {
		return changed
	}
	*dst = *src
	return append(changed, name)
}
