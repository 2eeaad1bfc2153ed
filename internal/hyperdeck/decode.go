package hyperdeck

import (
	"strconv"
	"strings"

	"deckhand/internal/deck"
	"deckhand/internal/timecode"
)

const (
	codeConnectionInfo = 500
	codeFormatReady    = 216
)

// ConnectionInfo is the greeting sent by the device on connect.
type ConnectionInfo struct {
	ProtocolVersion string
	Model           string
}

// DeviceInfoResult is the reply to the device info command.
type DeviceInfoResult struct {
	ProtocolVersion string
	Model           string
	UniqueID        string
	SlotCount       int
}

// DecodeDeviceInfo reads a device info reply. SlotCount falls back to the
// deck default when absent.
func DecodeDeviceInfo(resp Response) DeviceInfoResult {
	info := DeviceInfoResult{
		ProtocolVersion: resp.Fields["protocol version"],
		Model:           resp.Fields["model"],
		UniqueID:        resp.Fields["unique id"],
		SlotCount:       deck.DefaultSlotCount,
	}
	if n, ok := intField(resp, "slot count"); ok && n > 0 {
		info.SlotCount = n
	}
	return info
}

func decodeConnectionInfo(resp Response) ConnectionInfo {
	return ConnectionInfo{
		ProtocolVersion: resp.Fields["protocol version"],
		Model:           resp.Fields["model"],
	}
}

// DecodeTransport extracts the transport fields present in resp.
func DecodeTransport(resp Response) deck.TransportUpdate {
	var u deck.TransportUpdate
	u.Status = stringField(resp, "status")
	if n, ok := intField(resp, "speed"); ok {
		u.Speed = &n
	}
	if n, ok := intField(resp, "slot id"); ok {
		u.SlotID = &n
	} else if v, ok := resp.Fields["slot id"]; ok && v == "none" {
		u.SlotID = deck.Ptr(0)
	}
	if n, ok := intField(resp, "clip id"); ok {
		u.ClipID = &n
	} else if v, ok := resp.Fields["clip id"]; ok && v == "none" {
		u.ClipID = deck.Ptr(0)
	}
	u.SingleClip = boolField(resp, "single clip")
	u.Loop = boolField(resp, "loop")
	u.DisplayTimecode = stringField(resp, "display timecode")
	u.Timecode = stringField(resp, "timecode")
	u.VideoFormat = stringField(resp, "video format")
	return u
}

// DecodeSlot extracts the slot fields present in resp. ID is zero when the
// block does not name a slot.
func DecodeSlot(resp Response) deck.SlotUpdate {
	var u deck.SlotUpdate
	if n, ok := intField(resp, "slot id"); ok {
		u.ID = n
	}
	u.Status = stringField(resp, "status")
	if n, ok := intField(resp, "recording time"); ok {
		u.RecordingTime = &n
	}
	u.VolumeName = stringField(resp, "volume name")
	u.VideoFormat = stringField(resp, "video format")
	return u
}

// DecodeConfiguration extracts the configuration fields present in resp.
func DecodeConfiguration(resp Response) deck.ConfigurationUpdate {
	return deck.ConfigurationUpdate{
		AudioInput: stringField(resp, "audio input"),
		VideoInput: stringField(resp, "video input"),
		FileFormat: stringField(resp, "file format"),
	}
}

// DecodeClipsCount reads the clip count reply.
func DecodeClipsCount(resp Response) int {
	n, _ := intField(resp, "clip count")
	return n
}

// DecodeClips reads a clips get reply. Both the "id: name start duration"
// layout of older firmware and the "id: start duration name" layout of newer
// firmware are accepted.
func DecodeClips(resp Response) []deck.Clip {
	clips := make([]deck.Clip, 0, len(resp.Lines))
	for _, line := range resp.Lines {
		idText, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		if err != nil {
			continue
		}
		if clip, ok := parseClipLine(id, strings.TrimSpace(rest)); ok {
			clips = append(clips, clip)
		}
	}
	return clips
}

func parseClipLine(id int, rest string) (deck.Clip, bool) {
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return deck.Clip{}, false
	}
	if isTimecode(fields[0]) && isTimecode(fields[1]) {
		return deck.Clip{
			ID:        id,
			StartTime: fields[0],
			Duration:  fields[1],
			Name:      strings.Join(fields[2:], " "),
		}, true
	}
	n := len(fields)
	if isTimecode(fields[n-2]) && isTimecode(fields[n-1]) {
		return deck.Clip{
			ID:        id,
			Name:      strings.Join(fields[:n-2], " "),
			StartTime: fields[n-2],
			Duration:  fields[n-1],
		}, true
	}
	return deck.Clip{}, false
}

func isTimecode(s string) bool {
	_, err := timecode.Parse(s, nil)
	return err == nil
}

// DecodeFormatToken reads the token from a format ready reply.
func DecodeFormatToken(resp Response) (string, bool) {
	if resp.Code != codeFormatReady {
		return "", false
	}
	for _, line := range resp.Lines {
		if token := strings.TrimSpace(line); token != "" {
			return token, true
		}
	}
	return "", false
}

func stringField(resp Response, key string) *string {
	value, ok := resp.Fields[key]
	if !ok {
		return nil
	}
	return &value
}

func intField(resp Response, key string) (int, bool) {
	value, ok := resp.Fields[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

func boolField(resp Response, key string) *bool {
	value, ok := resp.Fields[key]
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}
	return &b
}
