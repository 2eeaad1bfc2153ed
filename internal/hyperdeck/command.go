package hyperdeck

import (
	"strconv"
	"strings"
)

// Param is one "key: value" argument of a command.
type Param struct {
	Key   string
	Value string
}

// Command is one protocol command line.
type Command struct {
	Name   string
	Params []Param
}

// Wire renders the command line without its terminator.
func (c Command) Wire() string {
	if len(c.Params) == 0 {
		return c.Name
	}
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(':')
	for _, p := range c.Params {
		b.WriteByte(' ')
		b.WriteString(p.Key)
		b.WriteString(": ")
		b.WriteString(p.Value)
	}
	return b.String()
}

func (c Command) String() string {
	return c.Wire()
}

func (c Command) with(key, value string) Command {
	c.Params = append(c.Params, Param{Key: key, Value: value})
	return c
}

// Notify selects which asynchronous blocks the device pushes.
type Notify struct {
	Transport       bool
	Slot            bool
	Configuration   bool
	DisplayTimecode *bool
}

func DeviceInfo() Command { return Command{Name: "device info"} }

func SlotInfo(slotID int) Command {
	return Command{Name: "slot info"}.with("slot id", strconv.Itoa(slotID))
}

func TransportInfo() Command { return Command{Name: "transport info"} }

func ConfigurationGet() Command { return Command{Name: "configuration"} }

func NotifySet(n Notify) Command {
	cmd := Command{Name: "notify"}.
		with("transport", strconv.FormatBool(n.Transport)).
		with("slot", strconv.FormatBool(n.Slot)).
		with("configuration", strconv.FormatBool(n.Configuration))
	if n.DisplayTimecode != nil {
		cmd = cmd.with("display timecode", strconv.FormatBool(*n.DisplayTimecode))
	}
	return cmd
}

// NotifyDisplayTimecode toggles only display timecode notifications.
func NotifyDisplayTimecode(enabled bool) Command {
	return Command{Name: "notify"}.with("display timecode", strconv.FormatBool(enabled))
}

func ClipsCount() Command { return Command{Name: "clips count"} }

func ClipsGet() Command { return Command{Name: "clips get"} }

// PlayOptions are the optional play arguments; nil fields are omitted.
type PlayOptions struct {
	Speed      *int
	Loop       *bool
	SingleClip *bool
}

func Play(opts PlayOptions) Command {
	cmd := Command{Name: "play"}
	if opts.Speed != nil {
		cmd = cmd.with("speed", strconv.Itoa(*opts.Speed))
	}
	if opts.Loop != nil {
		cmd = cmd.with("loop", strconv.FormatBool(*opts.Loop))
	}
	if opts.SingleClip != nil {
		cmd = cmd.with("single clip", strconv.FormatBool(*opts.SingleClip))
	}
	return cmd
}

func Stop() Command { return Command{Name: "stop"} }

// Record starts recording. A non-empty name sets the clip filename prefix.
func Record(name string) Command {
	cmd := Command{Name: "record"}
	if name != "" {
		cmd = cmd.with("name", name)
	}
	return cmd
}

// RecordAppend appends the recording to the timeline's last clip.
func RecordAppend() Command {
	return Command{Name: "record"}.with("append", "true")
}

// GoToTimecode seeks to an absolute timecode.
func GoToTimecode(tc string) Command {
	return Command{Name: "goto"}.with("timecode", tc)
}

// GoToClip seeks to a clip id. Relative ids take a leading "+" or "-".
func GoToClip(id string) Command {
	return Command{Name: "goto"}.with("clip id", id)
}

// GoToClipEdge seeks to the "start" or "end" of the current clip.
func GoToClipEdge(edge string) Command {
	return Command{Name: "goto"}.with("clip", edge)
}

// Jog moves relative to the current position. tc carries a "+" or "-" sign.
func Jog(tc string) Command {
	return Command{Name: "jog"}.with("timecode", tc)
}

func Shuttle(speed int) Command {
	return Command{Name: "shuttle"}.with("speed", strconv.Itoa(speed))
}

func SlotSelect(slotID int) Command {
	return Command{Name: "slot select"}.with("slot id", strconv.Itoa(slotID))
}

// ConfigurationSet changes one or more configuration keys.
type ConfigurationSet struct {
	VideoInput string
	AudioInput string
	FileFormat string
}

func Configuration(set ConfigurationSet) Command {
	cmd := Command{Name: "configuration"}
	if set.VideoInput != "" {
		cmd = cmd.with("video input", set.VideoInput)
	}
	if set.AudioInput != "" {
		cmd = cmd.with("audio input", set.AudioInput)
	}
	if set.FileFormat != "" {
		cmd = cmd.with("file format", set.FileFormat)
	}
	return cmd
}

// FormatPrepare asks the device for a format token for the active slot.
func FormatPrepare(filesystem string) Command {
	return Command{Name: "format"}.with("prepare", filesystem)
}

func FormatConfirm(token string) Command {
	return Command{Name: "format"}.with("confirm", token)
}

func Remote(enable bool) Command {
	return Command{Name: "remote"}.with("enable", strconv.FormatBool(enable))
}
