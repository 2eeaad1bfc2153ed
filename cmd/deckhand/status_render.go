package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"deckhand/internal/config"
	"deckhand/internal/ipc"
	"deckhand/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func sessionStatusKind(status session.Status) statusKind {
	switch status {
	case session.StatusOK:
		return statusOK
	case session.StatusConnecting:
		return statusWarn
	case session.StatusError:
		return statusError
	default:
		return statusInfo
	}
}

func renderStatus(status *ipc.StatusResponse, colorize bool) string {
	var b strings.Builder
	writeLines := func(lines ...string) {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	writeLines(renderSectionHeader("Daemon", colorize)...)
	daemonDetail := fmt.Sprintf("pid %d", status.PID)
	if status.Uptime != "" {
		daemonDetail += ", up " + status.Uptime
	}
	if status.Running {
		writeLines(renderStatusLine("Daemon", statusOK, daemonDetail, colorize))
	} else {
		writeLines(renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	writeLines(renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
	if status.APIAddress != "" {
		writeLines(renderStatusLine("HTTP API", statusInfo, status.APIAddress, colorize))
	}
	if status.OSCAddress != "" {
		writeLines(renderStatusLine("OSC", statusInfo, status.OSCAddress, colorize))
	}
	b.WriteByte('\n')

	snap := status.Session
	writeLines(renderSectionHeader("Recorder", colorize)...)
	connection := string(snap.Status)
	if snap.Error != "" {
		connection += ": " + snap.Error
	}
	writeLines(renderStatusLine(snap.Addr, sessionStatusKind(snap.Status), connection, colorize))
	if snap.Model != "" {
		model := snap.Model
		if snap.ProtocolVersion != "" {
			model += " (protocol " + snap.ProtocolVersion + ")"
		}
		writeLines(renderStatusLine("Model", statusInfo, model, colorize))
	}
	mode := snap.TimecodeMode
	if snap.TimecodeMode == config.TimecodePolling {
		mode = fmt.Sprintf("polling every %s, poller running: %s", snap.PollInterval, yesNo(snap.PollerRunning))
	}
	writeLines(renderStatusLine("Timecode", statusInfo, mode, colorize))
	b.WriteByte('\n')

	writeLines(renderSectionHeader("Transport", colorize)...)
	t := snap.Transport
	b.WriteString(renderTable(
		[]string{"Status", "Speed", "Slot", "Clip", "Timecode", "Remaining", "Format"},
		[][]string{{
			t.Status,
			strconv.Itoa(t.Speed),
			idCell(t.SlotID),
			idCell(t.ClipID),
			snap.Timecode.CountUp,
			snap.Timecode.CountDown,
			t.VideoFormat,
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	))
	b.WriteString("\n\n")

	if len(snap.Slots) > 0 {
		writeLines(renderSectionHeader("Slots", colorize)...)
		rows := make([][]string, 0, len(snap.Slots))
		for _, slot := range snap.Slots {
			rows = append(rows, []string{
				strconv.Itoa(slot.ID),
				slot.Status,
				slot.VolumeName,
				formatRecordingTime(slot.RecordingTime),
			})
		}
		b.WriteString(renderTable([]string{"Slot", "Status", "Volume", "Recording Time"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
		b.WriteString("\n\n")
	}

	writeLines(renderSectionHeader("Cue", colorize)...)
	c := snap.Cue
	writeLines(
		renderStatusLine("Phase", statusInfo, string(c.Phase), colorize),
		renderStatusLine("In / Out", statusInfo, c.InPoint+" / "+c.OutPoint, colorize),
		renderStatusLine("Stop armed", statusInfo, yesNo(c.StopArmed), colorize),
	)
	return b.String()
}

func idCell(id int) string {
	if id <= 0 {
		return "-"
	}
	return strconv.Itoa(id)
}

func formatRecordingTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
