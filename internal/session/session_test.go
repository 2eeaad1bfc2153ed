package session_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"deckhand/internal/config"
	"deckhand/internal/cue"
	"deckhand/internal/deck"
	"deckhand/internal/hyperdeck"
	"deckhand/internal/logging"
	"deckhand/internal/session"
	"deckhand/internal/testsupport"
)

type recorder struct {
	mu       sync.Mutex
	cues     []session.CueEvent
	statuses []session.StatusEvent
}

func (r *recorder) CueFired(_ context.Context, ev session.CueEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, ev)
}

func (r *recorder) StatusChanged(_ context.Context, ev session.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, ev)
}

func (r *recorder) cueCount(action session.CueAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.cues {
		if ev.Action == action {
			n++
		}
	}
	return n
}

func (r *recorder) lastStatus() session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1].Status
}

func newSession(t *testing.T, fake *testsupport.FakeDeck, mutate func(*session.Options)) (*session.Session, *recorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFakeDeck(fake))
	opts := session.OptionsFromConfig(cfg, logging.NewNop())
	rec := &recorder{}
	opts.Dispatcher = rec
	if mutate != nil {
		mutate(&opts)
	}
	s := session.New(opts)
	t.Cleanup(s.Disconnect)
	return s, rec
}

func connect(t *testing.T, s *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func displayTimecode(tc string) string {
	return testsupport.Block(513, "display timecode", "display timecode: "+tc)
}

func withClips(fake *testsupport.FakeDeck, lines ...string) {
	fake.Handle("clips count", testsupport.Block(214, "clips count", "clip count: "+strconv.Itoa(len(lines))))
	fake.Handle("clips get", testsupport.Block(205, "clips info", append([]string{"clip count: " + strconv.Itoa(len(lines))}, lines...)...))
}

func TestConnectRunsInitialFetchInOrder(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, rec := newSession(t, fake, nil)
	connect(t, s)

	want := []string{
		"notify: transport: true slot: true configuration: true display timecode: true",
		"device info",
		"slot info: slot id: 1",
		"slot info: slot id: 2",
		"transport info",
		"configuration",
		"clips count",
	}
	got := fake.Received()
	if len(got) < len(want) {
		t.Fatalf("expected at least %d commands, got %v", len(want), got)
	}
	for i, line := range want {
		if got[i] != line {
			t.Fatalf("command %d: expected %q, got %q", i, line, got[i])
		}
	}

	if status, err := s.Status(); status != session.StatusOK || err != nil {
		t.Fatalf("expected ok status, got %s %v", status, err)
	}
	snap := s.Snapshot()
	if snap.Model != deck.ModelStudioMini {
		t.Fatalf("expected detected model %q, got %q", deck.ModelStudioMini, snap.Model)
	}
	if len(snap.Slots) != 2 {
		t.Fatalf("expected two slots, got %+v", snap.Slots)
	}
	if snap.Configuration.VideoInput != "SDI" {
		t.Fatalf("expected configuration merged, got %+v", snap.Configuration)
	}
	if snap.Transport.VideoFormat != "1080p30" || snap.Timecode.Rate != "30" {
		t.Fatalf("expected 1080p30 transport, got %+v / %+v", snap.Transport, snap.Timecode)
	}
	if rec.lastStatus() != session.StatusOK {
		t.Fatalf("expected ok dispatched last, got %q", rec.lastStatus())
	}
}

func TestConnectFailureReportsErrorStatus(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, rec := newSession(t, fake, nil)
	fake.Close()

	err := s.Connect(context.Background())
	if !errors.Is(err, hyperdeck.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if status, _ := s.Status(); status != session.StatusError {
		t.Fatalf("expected error status, got %s", status)
	}
	if rec.lastStatus() != session.StatusError {
		t.Fatalf("expected error dispatched, got %q", rec.lastStatus())
	}
}

func TestConnectTwiceFails(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)
	if err := s.Connect(context.Background()); !errors.Is(err, session.ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestPollingModeOmitsDisplayTimecodeAndPolls(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, func(o *session.Options) {
		o.TimecodeMode = config.TimecodePolling
		o.PollInterval = 20 * time.Millisecond
	})
	connect(t, s)

	if first := fake.Received()[0]; strings.Contains(first, "display timecode") {
		t.Fatalf("expected no display timecode subscription in polling mode, got %q", first)
	}
	if !fake.WaitFor("transport info", 4, 2*time.Second) {
		t.Fatalf("expected repeated transport polls, got %d", fake.Count("transport info"))
	}
	if !s.Snapshot().PollerRunning {
		t.Fatal("expected poller running")
	}
}

func TestNotificationModeDoesNotPoll(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	time.Sleep(100 * time.Millisecond)
	if n := fake.Count("transport info"); n != 1 {
		t.Fatalf("expected only the initial transport fetch, got %d", n)
	}
	if s.Snapshot().PollerRunning {
		t.Fatal("expected poller stopped in notification mode")
	}
}

func TestSlotNotificationRefetchesTransportAndClips(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)
	before := len(fake.Received())

	withClips(fake,
		"1: Interview A.mov 00:00:00:00 00:00:30:00",
		"2: Interview B.mov 00:00:30:00 00:00:10:00",
	)
	fake.Push(testsupport.Block(502, "slot info", "slot id: 1", "status: mounted", "recording time: 3600"))

	if !fake.WaitFor("clips get", 1, 2*time.Second) {
		t.Fatal("expected clip list fetch after slot notification")
	}
	eventually(t, "clip list", func() bool { return len(s.Clips(1)) == 2 })

	got := fake.Received()[before:]
	want := []string{"transport info", "clips count", "clips get"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	slot, ok := s.Slot(1)
	if !ok || slot.Status != deck.SlotMounted || slot.RecordingTime != 3600 {
		t.Fatalf("expected mounted slot, got %+v", slot)
	}
	vars := s.Variables()
	if vars["slot1_recordingTime"] != "01:00:00" || vars["recordingTime"] != "01:00:00" {
		t.Fatalf("unexpected recording time variables: %q %q", vars["slot1_recordingTime"], vars["recordingTime"])
	}
	if vars["clipCount"] != "2" {
		t.Fatalf("expected clipCount 2, got %q", vars["clipCount"])
	}
	if clip, ok := s.Clip(0, session.ClipRef{Name: "interview b.mov"}); !ok || clip.ID != 2 {
		t.Fatalf("expected case-insensitive lookup of clip 2, got %+v %v", clip, ok)
	}
}

func TestTransportNotificationComputesCountdown(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	withClips(fake, "1: Take 1.mov 00:00:00:00 00:00:15:00")
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	fake.Push(testsupport.Block(508, "transport info", "status: play", "clip id: 1", "display timecode: 00:00:00:00"))
	eventually(t, "countdown", func() bool {
		return s.Variables()["countdownTimecodeHMSF"] == "00:00:14:29"
	})

	vars := s.Variables()
	checks := map[string]string{
		"status":             "Play",
		"clipId":             "1",
		"slotId":             "1",
		"timecodeHMSF":       "00:00:00:00",
		"timecodeHMS":        "00:00:00",
		"countdownTimecodeS": "14",
		"countdownTimecodeF": "29",
	}
	for key, want := range checks {
		if vars[key] != want {
			t.Fatalf("%s: expected %q, got %q", key, want, vars[key])
		}
	}
}

func TestVariablesBeforeConnectUsePlaceholders(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	vars := s.Variables()
	if vars["clipId"] != "—" || vars["slotId"] != "—" {
		t.Fatalf("expected unset ids, got %q %q", vars["clipId"], vars["slotId"])
	}
	if vars["timecodeHMSF"] != "--:--:--:--" || vars["countdownTimecodeH"] != "--" {
		t.Fatalf("expected placeholders, got %q %q", vars["timecodeHMSF"], vars["countdownTimecodeH"])
	}
}

func TestCueFiresFadeOnceAndStopsAtOutPoint(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, rec := newSession(t, fake, func(o *session.Options) { o.FadeSeconds = 1 })
	connect(t, s)

	if _, err := s.SetOutPoint("00:00:10:00"); err != nil {
		t.Fatalf("set out point: %v", err)
	}
	s.ArmCue()
	s.ArmStop()

	fake.Push(displayTimecode("00:00:09:00"))
	fake.Push(displayTimecode("00:00:09:01"))
	fake.Push(displayTimecode("00:00:09:01"))
	fake.Push(displayTimecode("00:00:09:15"))
	fake.Push(displayTimecode("00:00:10:00"))

	if !fake.WaitFor("stop", 1, 2*time.Second) {
		t.Fatal("expected automatic stop")
	}
	eventually(t, "stop dispatch", func() bool { return rec.cueCount(session.CueStop) == 1 })

	fake.Push(displayTimecode("00:00:10:00"))
	time.Sleep(50 * time.Millisecond)

	if n := rec.cueCount(session.CueFade); n != 1 {
		t.Fatalf("expected one fade, got %d", n)
	}
	if n := fake.Count("stop"); n != 1 {
		t.Fatalf("expected one stop command, got %d", n)
	}
	state := s.Cue()
	if state.Phase != cue.Idle || state.StopArmed {
		t.Fatalf("expected idle cue with stop cleared, got %+v", state)
	}
	rec.mu.Lock()
	fade := rec.cues[0]
	rec.mu.Unlock()
	if fade.OutPoint != "00:00:10:00" || fade.Remaining != 29 {
		t.Fatalf("unexpected fade event %+v", fade)
	}
}

func TestSetInPointCapturesCurrentTimecode(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	fake.Push(displayTimecode("00:00:05:00"))
	eventually(t, "display timecode", func() bool { return s.Timecode().CountUp.HMSF() == "00:00:05:00" })

	res, err := s.IssueCommand(context.Background(), session.Action{Kind: session.KindSetInPoint})
	if err != nil {
		t.Fatalf("set in point: %v", err)
	}
	if res.Detail != "00:00:05:00" || s.Variables()["InPointHMSF"] != "00:00:05:00" {
		t.Fatalf("expected captured in point, got %q / %q", res.Detail, s.Variables()["InPointHMSF"])
	}
	if _, err := s.SetOutPoint("00:00:99:00"); !errors.Is(err, session.ErrInvalidAction) {
		t.Fatalf("expected invalid out point rejected, got %v", err)
	}
}

func TestSetTimecodeModeSwitchesDelivery(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)
	ctx := context.Background()

	if err := s.SetTimecodeMode(ctx, config.TimecodePolling, 20*time.Millisecond); err != nil {
		t.Fatalf("switch to polling: %v", err)
	}
	if fake.Count("notify: display timecode: false") != 1 {
		t.Fatalf("expected display timecode unsubscribe, got %v", fake.Received())
	}
	if !fake.WaitFor("transport info", 3, 2*time.Second) {
		t.Fatal("expected polling after mode switch")
	}

	if err := s.SetTimecodeMode(ctx, config.TimecodeNotifications, 0); err != nil {
		t.Fatalf("switch to notifications: %v", err)
	}
	if s.Snapshot().PollerRunning {
		t.Fatal("expected poller stopped in notification mode")
	}
	if fake.Count("notify: display timecode: true") != 1 {
		t.Fatalf("expected display timecode subscribe, got %v", fake.Received())
	}
	polls := fake.Count("transport info")
	time.Sleep(100 * time.Millisecond)
	if n := fake.Count("transport info"); n != polls {
		t.Fatalf("expected no polls after switching back, got %d more", n-polls)
	}

	if err := s.SetTimecodeMode(ctx, "sometimes", 0); !errors.Is(err, session.ErrInvalidAction) {
		t.Fatalf("expected unknown mode rejected, got %v", err)
	}
}

func TestIssueCommandSendsWireCommands(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, func(o *session.Options) {
		o.Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }
	})
	connect(t, s)

	speed := 50
	loop := true
	enable := true
	cases := []struct {
		name   string
		action session.Action
		want   string
	}{
		{"play", session.Action{Kind: session.KindPlay}, "play"},
		{"play options", session.Action{Kind: session.KindPlay, Speed: &speed, Loop: &loop}, "play: speed: 50 loop: true"},
		{"stop", session.Action{Kind: session.KindStop}, "stop"},
		{"record", session.Action{Kind: session.KindRecord}, "record"},
		{"record append", session.Action{Kind: session.KindRecordAppend}, "record: append: true"},
		{"record name", session.Action{Kind: session.KindRecordName, Name: "Interview"}, "record: name: Interview"},
		{"record timestamp prefix", session.Action{Kind: session.KindRecordStamp, Name: "cam1"}, "record: name: cam1-20240309_1405-"},
		{"record timestamp", session.Action{Kind: session.KindRecordStamp}, "record: name: 20240309_1405-"},
		{"record custom reel", session.Action{Kind: session.KindRecordCustom}, "record: name: A001-"},
		{"goto timecode", session.Action{Kind: session.KindGoto, Timecode: "00:01:00:00"}, "goto: timecode: 00:01:00:00"},
		{"goto clip", session.Action{Kind: session.KindGotoClip, Number: 3}, "goto: clip id: 3"},
		{"go forward", session.Action{Kind: session.KindGoForward, Number: 2}, "goto: clip id: +2"},
		{"go rewind", session.Action{Kind: session.KindGoRewind}, "goto: clip id: -1"},
		{"go end", session.Action{Kind: session.KindGoStartEnd, Value: "end"}, "goto: clip: end"},
		{"jog forward", session.Action{Kind: session.KindJogForward, Timecode: "00:00:01:00"}, "jog: timecode: +00:00:01:00"},
		{"jog rewind", session.Action{Kind: session.KindJogRewind, Timecode: "00:00:00:10"}, "jog: timecode: -00:00:00:10"},
		{"shuttle", session.Action{Kind: session.KindShuttle, Number: -200}, "shuttle: speed: -200"},
		{"video source", session.Action{Kind: session.KindVideoSource, Value: "HDMI"}, "configuration: video input: HDMI"},
		{"audio source", session.Action{Kind: session.KindAudioSource, Value: "XLR"}, "configuration: audio input: XLR"},
		{"file format", session.Action{Kind: session.KindFileFormat, Value: "H.264High"}, "configuration: file format: H.264High"},
		{"remote", session.Action{Kind: session.KindRemote, Enable: &enable}, "remote: enable: true"},
		{"select slot", session.Action{Kind: session.KindSelectSlot, Number: 2}, "slot select: slot id: 2"},
	}
	for _, tc := range cases {
		before := len(fake.Received())
		res, err := s.IssueCommand(context.Background(), tc.action)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		got := fake.Received()
		if len(got) <= before || got[before] != tc.want {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, got[before:])
		}
		if res.Command != tc.want || res.Code != 200 {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
	}
}

func TestIssueCommandRejectsInvalidActions(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	cases := []session.Action{
		{Kind: "teleport"},
		{Kind: session.KindGoto, Timecode: "00:00:00:45"},
		{Kind: session.KindGoto, Timecode: "soon"},
		{Kind: session.KindGotoClip},
		{Kind: session.KindGotoName, Name: "missing.mov"},
		{Kind: session.KindRecordName},
		{Kind: session.KindGoStartEnd, Value: "middle"},
		{Kind: session.KindRemote},
		{Kind: session.KindVideoSource},
		{Kind: session.KindSelectSlot},
	}
	before := len(fake.Received())
	for _, action := range cases {
		if _, err := s.IssueCommand(context.Background(), action); !errors.Is(err, session.ErrInvalidAction) {
			t.Fatalf("%+v: expected ErrInvalidAction, got %v", action, err)
		}
	}
	if got := fake.Received()[before:]; len(got) != 0 {
		t.Fatalf("expected nothing sent, got %v", got)
	}
}

func TestGotoNameUsesClipDirectory(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	withClips(fake, "1: Opening.mov 00:00:00:00 00:00:20:00", "2: Closing.mov 00:00:20:00 00:00:05:00")
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	before := len(fake.Received())
	if _, err := s.IssueCommand(context.Background(), session.Action{Kind: session.KindGotoName, Name: "CLOSING.mov"}); err != nil {
		t.Fatalf("goto name: %v", err)
	}
	if got := fake.Received()[before]; got != "goto: clip id: 2" {
		t.Fatalf("expected goto clip 2, got %q", got)
	}
}

func TestCommandErrorSurfaces(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	fake.Handle("record", testsupport.Block(105, "disk full"))
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	_, err := s.IssueCommand(context.Background(), session.Action{Kind: session.KindRecord})
	var cmdErr *hyperdeck.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != 105 {
		t.Fatalf("expected command error 105, got %v", err)
	}
	if status, _ := s.Status(); status != session.StatusOK {
		t.Fatalf("expected connection to stay ok, got %s", status)
	}
}

func TestFormatPrepareAndConfirm(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	fake.HandleFunc("format", func(line string) string {
		if strings.Contains(line, "prepare") {
			return testsupport.Block(216, "format ready", "abc123")
		}
		return testsupport.Block(200, "ok")
	})
	s, _ := newSession(t, fake, nil)
	connect(t, s)
	ctx := context.Background()

	res, err := s.IssueCommand(ctx, session.Action{Kind: session.KindFormatPrepare, Value: "HFS+"})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if res.Token != "abc123" || !s.FormatReady() {
		t.Fatalf("expected held token, got %+v", res)
	}
	if fake.Count("format: prepare: HFS+") != 1 {
		t.Fatalf("expected prepare command, got %v", fake.Received())
	}

	if _, err := s.IssueCommand(ctx, session.Action{Kind: session.KindFormatConfirm}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if fake.Count("format: confirm: abc123") != 1 || s.FormatReady() {
		t.Fatalf("expected token consumed, got %v", fake.Received())
	}

	res, err = s.IssueCommand(ctx, session.Action{Kind: session.KindFormatConfirm})
	if err != nil || !res.Skipped {
		t.Fatalf("expected skipped confirm, got %+v %v", res, err)
	}
	if fake.Count("format: confirm") != 1 {
		t.Fatal("expected no confirmation without a token")
	}
}

func TestFormatTokenExpires(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	fake.Handle("format", testsupport.Block(216, "format ready", "tok"))
	s, _ := newSession(t, fake, func(o *session.Options) { o.FormatTokenTTL = 50 * time.Millisecond })
	connect(t, s)

	if _, err := s.IssueCommand(context.Background(), session.Action{Kind: session.KindFormatPrepare}); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	eventually(t, "token expiry", func() bool { return !s.FormatReady() })

	res, err := s.IssueCommand(context.Background(), session.Action{Kind: session.KindFormatConfirm})
	if err != nil || !res.Skipped {
		t.Fatalf("expected skipped confirm after expiry, got %+v %v", res, err)
	}
}

func TestUnknownSlotGetsPlaceholderAndFetch(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	fake.Push(testsupport.Block(508, "transport info", "slot id: 3"))
	if !fake.WaitFor("slot info: slot id: 3", 1, 2*time.Second) {
		t.Fatal("expected fetch of the unknown slot")
	}
	eventually(t, "slot 3", func() bool {
		slot, ok := s.Slot(3)
		return ok && slot.Status == deck.SlotEmpty
	})
}

func TestDroppedConnectionSetsErrorStatus(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, rec := newSession(t, fake, nil)
	connect(t, s)

	fake.DropConnections()
	eventually(t, "error status", func() bool {
		status, _ := s.Status()
		return status == session.StatusError && rec.lastStatus() == session.StatusError
	})
	if _, err := s.IssueCommand(context.Background(), session.Action{Kind: session.KindStop}); !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	fake := testsupport.NewFakeDeck(t)
	s, _ := newSession(t, fake, nil)
	connect(t, s)

	s.Disconnect()
	s.Disconnect()
	status, err := s.Status()
	if status != session.StatusError || !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("expected disconnected error status, got %s %v", status, err)
	}
}
