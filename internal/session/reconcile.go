package session

import (
	"context"

	"deckhand/internal/cue"
	"deckhand/internal/deck"
	"deckhand/internal/hyperdeck"
	"deckhand/internal/logging"
	"deckhand/internal/timecode"
)

// ApplyNotification merges one asynchronous device block into the session.
func (s *Session) ApplyNotification(ctx context.Context, ev hyperdeck.Event) {
	switch ev.Kind {
	case hyperdeck.EventTransport, hyperdeck.EventDisplayTimecode:
		s.applyTransport(ctx, hyperdeck.DecodeTransport(ev.Response))
	case hyperdeck.EventSlot:
		u := hyperdeck.DecodeSlot(ev.Response)
		if u.ID == 0 {
			u.ID = s.Transport().SlotID
		}
		s.applySlot(u)
		if err := s.refreshTransport(ctx); err != nil {
			logging.WarnWithContext(s.logger, "transport refresh after slot change failed", "transport_refresh_failed",
				logging.Slot(u.ID),
				logging.Error(err),
			)
		}
		s.refreshClips(ctx, u.ID)
	case hyperdeck.EventConfiguration:
		s.applyConfiguration(hyperdeck.DecodeConfiguration(ev.Response))
	case hyperdeck.EventDisconnected:
	default:
		s.logger.Debug("notification ignored",
			logging.Int("code", ev.Response.Code),
			logging.String("text", ev.Response.Text),
		)
	}
}

// cueFire carries the actions of one evaluation out of the lock.
type cueFire struct {
	acts   cue.Actions
	state  cue.State
	slotID int
	clipID int
}

func (f cueFire) empty() bool {
	return !f.acts.Fade && !f.acts.Stop
}

// applyTransport merges u, recomputes the display and runs any cue action.
// A slot id that has not been seen gets a placeholder entry and a fetch.
func (s *Session) applyTransport(ctx context.Context, u deck.TransportUpdate) {
	if u.Empty() {
		return
	}
	s.mu.Lock()
	changed := s.transport.Apply(u)
	slotID := s.transport.SlotID
	unknown := slotID > 0 && s.slots[slotID] == nil
	if unknown {
		s.slots[slotID] = &deck.SlotState{ID: slotID}
	}
	fire := s.recomputeLocked()
	s.mu.Unlock()

	if len(changed) > 0 {
		s.logger.Debug("transport updated", logging.Any("fields", changed))
	}
	if unknown {
		s.fetchSlot(ctx, slotID)
		s.refreshClips(ctx, slotID)
	}
	s.fire(ctx, fire)
}

func (s *Session) applySlot(u deck.SlotUpdate) {
	if u.ID <= 0 {
		return
	}
	s.mu.Lock()
	slot, ok := s.slots[u.ID]
	if !ok {
		slot = &deck.SlotState{ID: u.ID}
		s.slots[u.ID] = slot
	}
	changed := slot.Apply(u)
	s.mu.Unlock()
	if len(changed) > 0 {
		s.logger.Debug("slot updated",
			logging.Slot(u.ID),
			logging.Any("fields", changed),
		)
	}
}

func (s *Session) applyConfiguration(u deck.ConfigurationUpdate) {
	s.mu.Lock()
	changed := s.config.Apply(u)
	s.mu.Unlock()
	if len(changed) > 0 {
		s.logger.Debug("configuration updated", logging.Any("fields", changed))
	}
}

// recomputeLocked rebuilds the display from transport and clip state and
// advances the cue machine.
func (s *Session) recomputeLocked() cueFire {
	in := timecode.Input{
		VideoFormat: s.transport.VideoFormat,
		Timecode:    s.transport.DisplayTimecode,
	}
	if in.Timecode == "" {
		in.Timecode = s.transport.Timecode
	}
	if clip, ok := s.clips.FindByID(s.transport.SlotID, s.transport.ClipID); ok && clip.Duration != "" {
		in.Clip = &timecode.Span{Start: clip.StartTime, Duration: clip.Duration}
	}
	s.display = timecode.Compute(in)
	if s.display.Err != nil {
		s.logger.Debug("timecode not computed",
			logging.String("timecode", in.Timecode),
			logging.String("video_format", in.VideoFormat),
			logging.Error(s.display.Err),
		)
	}

	acts := s.cue.Evaluate(s.display.CurrentFrame, s.display.Rate)
	return cueFire{
		acts:   acts,
		state:  s.cue.State(),
		slotID: s.transport.SlotID,
		clipID: s.transport.ClipID,
	}
}

func (s *Session) fire(ctx context.Context, f cueFire) {
	if f.empty() {
		return
	}
	ev := CueEvent{
		SessionID:   s.id,
		OutPoint:    f.state.OutPoint.HMSF(),
		FadeSeconds: f.state.FadeSeconds,
		Remaining:   f.acts.Remaining,
		SlotID:      f.slotID,
		ClipID:      f.clipID,
	}
	if f.acts.Fade {
		s.logger.Info("cue fade fired",
			logging.String("out_point", ev.OutPoint),
			logging.Int("remaining_frames", f.acts.Remaining),
			logging.Int("fade_frames", f.acts.FadeFrames),
		)
		ev.Action = CueFade
		s.opts.Dispatcher.CueFired(ctx, ev)
	}
	if f.acts.Stop {
		ev.Action = CueStop
		if _, err := s.send(ctx, hyperdeck.Stop()); err != nil {
			ev.Err = err
			logging.ErrorWithContext(s.logger, "automatic stop failed", "auto_stop_failed",
				logging.String("out_point", ev.OutPoint),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "stop the deck manually and re-arm the stop"),
			)
		} else {
			s.logger.Info("automatic stop issued", logging.String("out_point", ev.OutPoint))
		}
		s.opts.Dispatcher.CueFired(ctx, ev)
	}
}

func (s *Session) refreshTransport(ctx context.Context) error {
	resp, err := s.send(ctx, hyperdeck.TransportInfo())
	if err != nil {
		return err
	}
	s.applyTransport(ctx, hyperdeck.DecodeTransport(resp))
	return nil
}

func (s *Session) fetchSlot(ctx context.Context, id int) {
	resp, err := s.send(ctx, hyperdeck.SlotInfo(id))
	if err != nil {
		logging.WarnWithContext(s.logger, "slot fetch failed", "slot_fetch_failed",
			logging.Slot(id),
			logging.Error(err),
		)
		return
	}
	u := hyperdeck.DecodeSlot(resp)
	if u.ID == 0 {
		u.ID = id
	}
	s.applySlot(u)
}

// refreshClips reloads the clip directory of slotID and recomputes the
// countdown, which depends on the active clip's span.
func (s *Session) refreshClips(ctx context.Context, slotID int) (int, error) {
	if slotID <= 0 {
		return 0, nil
	}
	n, err := s.clips.Refresh(ctx, slotID, commandFunc(s.send))
	if err != nil {
		logging.WarnWithContext(s.logger, "clip refresh failed", "clip_refresh_failed",
			logging.Slot(slotID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "clip lookups and countdown use the previous list"),
		)
		return 0, err
	}
	s.logger.Debug("clips refreshed",
		logging.Slot(slotID),
		logging.Int("clip_count", n),
	)

	s.mu.Lock()
	fire := s.recomputeLocked()
	s.mu.Unlock()
	s.fire(ctx, fire)
	return n, nil
}
