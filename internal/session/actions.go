package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deckhand/internal/hyperdeck"
	"deckhand/internal/logging"
	"deckhand/internal/timecode"
)

// ErrInvalidAction marks actions rejected before anything is sent.
var ErrInvalidAction = errors.New("invalid action")

// Kind names an action.
type Kind string

const (
	KindPlay          Kind = "play"
	KindStop          Kind = "stop"
	KindRecord        Kind = "rec"
	KindRecordAppend  Kind = "recAppend"
	KindRecordName    Kind = "recName"
	KindRecordStamp   Kind = "recTimestamp"
	KindRecordCustom  Kind = "recCustom"
	KindGoto          Kind = "goto"
	KindGotoClip      Kind = "gotoN"
	KindGotoName      Kind = "gotoName"
	KindGoForward     Kind = "goFwd"
	KindGoRewind      Kind = "goRew"
	KindGoStartEnd    Kind = "goStartEnd"
	KindJogForward    Kind = "jogFwd"
	KindJogRewind     Kind = "jogRew"
	KindShuttle       Kind = "shuttle"
	KindSelectSlot    Kind = "select"
	KindVideoSource   Kind = "videoSrc"
	KindAudioSource   Kind = "audioSrc"
	KindFileFormat    Kind = "fileFormat"
	KindFetchClips    Kind = "fetchClips"
	KindFormatPrepare Kind = "formatPrepare"
	KindFormatConfirm Kind = "formatConfirm"
	KindRemote        Kind = "remote"
	KindSetInPoint    Kind = "setInPoint"
	KindSetOutPoint   Kind = "setOutPoint"
	KindArmCue        Kind = "armCue"
	KindArmStop       Kind = "armStop"
	KindResetCue      Kind = "resetCue"
)

// Kinds lists every supported action kind.
func Kinds() []Kind {
	return []Kind{
		KindPlay, KindStop, KindRecord, KindRecordAppend, KindRecordName, KindRecordStamp,
		KindRecordCustom, KindGoto, KindGotoClip, KindGotoName, KindGoForward, KindGoRewind,
		KindGoStartEnd, KindJogForward, KindJogRewind, KindShuttle, KindSelectSlot,
		KindVideoSource, KindAudioSource, KindFileFormat, KindFetchClips, KindFormatPrepare,
		KindFormatConfirm, KindRemote, KindSetInPoint, KindSetOutPoint, KindArmCue,
		KindArmStop, KindResetCue,
	}
}

// Action is one control request. Only the fields relevant to Kind are read.
type Action struct {
	Kind Kind `json:"kind"`
	// Timecode is the target of goto, the offset of jog and the value of
	// setInPoint/setOutPoint (empty captures the current position).
	Timecode string `json:"timecode,omitempty"`
	// Number is the clip id of gotoN, the count of goFwd/goRew, the slot of
	// select and fetchClips, and the speed of shuttle.
	Number int `json:"number,omitempty"`
	// Name is the clip name of recName and gotoName, the prefix of
	// recTimestamp and the reel of recCustom.
	Name string `json:"name,omitempty"`
	// Value is the input or file format of videoSrc, audioSrc and fileFormat,
	// the edge ("start" or "end") of goStartEnd and the filesystem of
	// formatPrepare.
	Value      string `json:"value,omitempty"`
	Speed      *int   `json:"speed,omitempty"`
	Loop       *bool  `json:"loop,omitempty"`
	SingleClip *bool  `json:"single_clip,omitempty"`
	Enable     *bool  `json:"enable,omitempty"`
}

// Result reports what an action did.
type Result struct {
	Kind    Kind   `json:"kind"`
	Command string `json:"command,omitempty"`
	Code    int    `json:"code,omitempty"`
	Text    string `json:"text,omitempty"`
	Token   string `json:"token,omitempty"`
	// Skipped is set when the action had nothing to do, such as a format
	// confirm without a prepared token.
	Skipped bool   `json:"skipped,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

const defaultFilesystem = "exFAT"

// IssueCommand validates a and performs it against the device or the local
// cue state.
func (s *Session) IssueCommand(ctx context.Context, a Action) (Result, error) {
	res := Result{Kind: a.Kind}
	logger := s.logger.With(logging.String("action", string(a.Kind)))

	switch a.Kind {
	case KindSetInPoint, KindSetOutPoint:
		set := s.SetInPoint
		if a.Kind == KindSetOutPoint {
			set = s.SetOutPoint
		}
		v, err := set(a.Timecode)
		if err != nil {
			return res, err
		}
		res.Detail = v.HMSF()
		return res, nil
	case KindArmCue:
		s.ArmCue()
		return res, nil
	case KindArmStop:
		s.ArmStop()
		return res, nil
	case KindResetCue:
		s.ResetCue()
		return res, nil
	case KindFetchClips:
		slotID := a.Number
		if slotID == 0 {
			slotID = s.Transport().SlotID
		}
		if slotID <= 0 {
			return res, fmt.Errorf("%w: no active slot", ErrInvalidAction)
		}
		n, err := s.refreshClips(ctx, slotID)
		if err != nil {
			return res, err
		}
		res.Detail = strconv.Itoa(n) + " clips"
		return res, nil
	case KindFormatConfirm:
		return s.confirmFormat(ctx, res)
	}

	cmd, err := s.build(a)
	if err != nil {
		return res, err
	}
	res.Command = cmd.Wire()
	resp, err := s.send(ctx, cmd)
	if err != nil {
		logging.WarnWithContext(logger, "action failed", "action_failed",
			logging.String("command", cmd.Wire()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the device did not change"),
		)
		return res, err
	}
	res.Code = resp.Code
	res.Text = resp.Text
	logger.Info("action completed", logging.String("command", cmd.Wire()))

	switch a.Kind {
	case KindSelectSlot:
		if err := s.refreshTransport(ctx); err != nil {
			logging.WarnWithContext(logger, "transport refresh after slot select failed", "transport_refresh_failed", logging.Error(err))
		}
		s.refreshClips(ctx, a.Number)
	case KindVideoSource, KindAudioSource, KindFileFormat:
		if resp, err := s.send(ctx, hyperdeck.ConfigurationGet()); err == nil {
			s.applyConfiguration(hyperdeck.DecodeConfiguration(resp))
		}
	case KindFormatPrepare:
		token, ok := hyperdeck.DecodeFormatToken(resp)
		if !ok {
			return res, fmt.Errorf("format prepare: no token in reply %d %s", resp.Code, resp.Text)
		}
		s.holdFormatToken(token)
		res.Token = token
	}
	return res, nil
}

// build maps a device action to its command.
func (s *Session) build(a Action) (hyperdeck.Command, error) {
	switch a.Kind {
	case KindPlay:
		return hyperdeck.Play(hyperdeck.PlayOptions{Speed: a.Speed, Loop: a.Loop, SingleClip: a.SingleClip}), nil
	case KindStop:
		return hyperdeck.Stop(), nil
	case KindRecord:
		return hyperdeck.Record(""), nil
	case KindRecordAppend:
		return hyperdeck.RecordAppend(), nil
	case KindRecordName:
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return hyperdeck.Command{}, fmt.Errorf("%w: recName needs a name", ErrInvalidAction)
		}
		return hyperdeck.Record(name), nil
	case KindRecordStamp:
		return hyperdeck.Record(timestampName(a.Name, s.opts.Now())), nil
	case KindRecordCustom:
		reel := strings.TrimSpace(a.Name)
		if reel == "" {
			reel = s.opts.Reel
		}
		if reel == "" {
			return hyperdeck.Command{}, fmt.Errorf("%w: recCustom needs a reel", ErrInvalidAction)
		}
		return hyperdeck.Record(reel + "-"), nil
	case KindGoto:
		tc, err := s.validTimecode(a.Timecode)
		if err != nil {
			return hyperdeck.Command{}, err
		}
		return hyperdeck.GoToTimecode(tc), nil
	case KindGotoClip:
		if a.Number < 1 {
			return hyperdeck.Command{}, fmt.Errorf("%w: clip id must be at least 1", ErrInvalidAction)
		}
		return hyperdeck.GoToClip(strconv.Itoa(a.Number)), nil
	case KindGotoName:
		clip, ok := s.Clip(0, ClipRef{Name: a.Name})
		if !ok {
			return hyperdeck.Command{}, fmt.Errorf("%w: no clip named %q in the active slot", ErrInvalidAction, a.Name)
		}
		s.logger.Debug("clip name resolved", logging.String("name", a.Name), logging.Clip(clip.ID))
		return hyperdeck.GoToClip(strconv.Itoa(clip.ID)), nil
	case KindGoForward, KindGoRewind:
		n := a.Number
		if n == 0 {
			n = 1
		}
		if n < 0 {
			return hyperdeck.Command{}, fmt.Errorf("%w: clip count must be positive", ErrInvalidAction)
		}
		sign := "+"
		if a.Kind == KindGoRewind {
			sign = "-"
		}
		return hyperdeck.GoToClip(sign + strconv.Itoa(n)), nil
	case KindGoStartEnd:
		switch a.Value {
		case "start", "end":
			return hyperdeck.GoToClipEdge(a.Value), nil
		default:
			return hyperdeck.Command{}, fmt.Errorf("%w: edge must be start or end, got %q", ErrInvalidAction, a.Value)
		}
	case KindJogForward, KindJogRewind:
		tc, err := s.validTimecode(a.Timecode)
		if err != nil {
			return hyperdeck.Command{}, err
		}
		sign := "+"
		if a.Kind == KindJogRewind {
			sign = "-"
		}
		return hyperdeck.Jog(sign + tc), nil
	case KindShuttle:
		speed := a.Number
		if a.Speed != nil {
			speed = *a.Speed
		}
		return hyperdeck.Shuttle(speed), nil
	case KindSelectSlot:
		if a.Number < 1 {
			return hyperdeck.Command{}, fmt.Errorf("%w: slot id must be at least 1", ErrInvalidAction)
		}
		return hyperdeck.SlotSelect(a.Number), nil
	case KindVideoSource:
		return configurationCommand(hyperdeck.ConfigurationSet{VideoInput: a.Value})
	case KindAudioSource:
		return configurationCommand(hyperdeck.ConfigurationSet{AudioInput: a.Value})
	case KindFileFormat:
		return configurationCommand(hyperdeck.ConfigurationSet{FileFormat: a.Value})
	case KindFormatPrepare:
		fs := strings.TrimSpace(a.Value)
		if fs == "" {
			fs = defaultFilesystem
		}
		return hyperdeck.FormatPrepare(fs), nil
	case KindRemote:
		if a.Enable == nil {
			return hyperdeck.Command{}, fmt.Errorf("%w: remote needs enable", ErrInvalidAction)
		}
		return hyperdeck.Remote(*a.Enable), nil
	default:
		return hyperdeck.Command{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, a.Kind)
	}
}

func configurationCommand(set hyperdeck.ConfigurationSet) (hyperdeck.Command, error) {
	if set == (hyperdeck.ConfigurationSet{}) {
		return hyperdeck.Command{}, fmt.Errorf("%w: configuration value is empty", ErrInvalidAction)
	}
	return hyperdeck.Configuration(set), nil
}

// validTimecode checks raw against the current rate, or the timecode pattern
// when the rate is unknown.
func (s *Session) validTimecode(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	v, err := timecode.Parse(raw, s.Timecode().Rate)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	return v.HMSF(), nil
}

// timestampName builds "prefix-YYYYMMDD_HHMM-", or "YYYYMMDD_HHMM-" without
// a prefix.
func timestampName(prefix string, now time.Time) string {
	stamp := now.Format("20060102_1504") + "-"
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return stamp
	}
	return prefix + "-" + stamp
}

// holdFormatToken stores token until it is confirmed or the TTL passes.
func (s *Session) holdFormatToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearFormatTokenLocked()
	s.formatToken = token
	s.formatTimer = time.AfterFunc(s.opts.FormatTokenTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.formatToken == token {
			s.formatToken = ""
			s.formatTimer = nil
			s.logger.Info("format token expired")
		}
	})
	s.logger.Info("format prepared", logging.Duration("valid_for", s.opts.FormatTokenTTL))
}

func (s *Session) clearFormatTokenLocked() {
	if s.formatTimer != nil {
		s.formatTimer.Stop()
		s.formatTimer = nil
	}
	s.formatToken = ""
}

func (s *Session) takeFormatToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.formatToken
	s.clearFormatTokenLocked()
	return token
}

func (s *Session) confirmFormat(ctx context.Context, res Result) (Result, error) {
	token := s.takeFormatToken()
	if token == "" {
		s.logger.Debug("format confirm ignored without a prepared token")
		res.Skipped = true
		res.Detail = "no format prepared"
		return res, nil
	}
	cmd := hyperdeck.FormatConfirm(token)
	res.Command = cmd.Wire()
	resp, err := s.send(ctx, cmd)
	if err != nil {
		logging.ErrorWithContext(s.logger, "format failed", "format_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "prepare the format again"),
		)
		return res, err
	}
	res.Code = resp.Code
	res.Text = resp.Text
	s.logger.Info("format confirmed")
	return res, nil
}
