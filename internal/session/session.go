package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deckhand/internal/clips"
	"deckhand/internal/config"
	"deckhand/internal/cue"
	"deckhand/internal/deck"
	"deckhand/internal/hyperdeck"
	"deckhand/internal/logging"
	"deckhand/internal/timecode"
)

// Status is the connection status surfaced to callers.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOK         Status = "ok"
	StatusError      Status = "error"
)

var (
	// ErrNotConnected is returned by commands issued without a live connection.
	ErrNotConnected = errors.New("session not connected")
	// ErrAlreadyConnected is returned by Connect on a connected session.
	ErrAlreadyConnected = errors.New("session already connected")
)

// Options configures a Session.
type Options struct {
	Addr           string
	CommandTimeout time.Duration
	// Model overrides model detection unless empty or "auto".
	Model          string
	Reel           string
	TimecodeMode   string
	PollInterval   time.Duration
	FadeSeconds    float64
	FormatTokenTTL time.Duration
	Logger         *slog.Logger
	// ProtocolLogger receives wire level logs; defaults to Logger.
	ProtocolLogger *slog.Logger
	Dispatcher     Dispatcher
	Now            func() time.Time
}

// OptionsFromConfig maps configuration onto session options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	protocol := logger
	if level := strings.TrimSpace(cfg.Logging.ProtocolLevel); level != "" && logger != nil {
		protocol = logging.WithLevelOverride(logger, level)
	}
	return Options{
		Addr:           cfg.DeviceAddr(),
		CommandTimeout: cfg.CommandTimeout(),
		Model:          cfg.Device.Model,
		Reel:           cfg.Device.Reel,
		TimecodeMode:   cfg.Timecode.Mode,
		PollInterval:   cfg.PollInterval(),
		FadeSeconds:    cfg.Timecode.FadeSeconds,
		FormatTokenTTL: cfg.FormatTokenTTL(),
		Logger:         logger,
		ProtocolLogger: protocol,
	}
}

func (o Options) withDefaults() Options {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 5 * time.Second
	}
	if o.TimecodeMode == "" {
		o.TimecodeMode = config.TimecodeNotifications
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.FormatTokenTTL <= 0 {
		o.FormatTokenTTL = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.ProtocolLogger == nil {
		o.ProtocolLogger = o.Logger
	}
	if o.Dispatcher == nil {
		o.Dispatcher = nopDispatcher{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session is one device connection together with its reconciled state.
type Session struct {
	opts   Options
	id     string
	logger *slog.Logger
	clips  *clips.Directory
	poller *Poller

	mu           sync.Mutex
	status       Status
	lastErr      error
	client       *hyperdeck.Client
	cancel       context.CancelFunc
	actorDone    chan struct{}
	info         hyperdeck.DeviceInfoResult
	model        string
	mode         string
	pollInterval time.Duration
	transport    deck.TransportState
	slots        map[int]*deck.SlotState
	config       deck.ConfigurationState
	display      timecode.Display
	cue          *cue.Machine
	formatToken  string
	formatTimer  *time.Timer
}

// New builds a disconnected session.
func New(opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.NewString()
	logger := logging.NewComponentLogger(opts.Logger, "session").With(logging.Device(opts.Addr))
	logger = logging.WithSessionID(logger, id)

	s := &Session{
		opts:         opts,
		id:           id,
		logger:       logger,
		clips:        clips.New(),
		status:       StatusError,
		lastErr:      ErrNotConnected,
		mode:         opts.TimecodeMode,
		pollInterval: ClampInterval(opts.PollInterval),
		slots:        map[int]*deck.SlotState{},
		display:      timecode.Compute(timecode.Input{}),
		cue:          cue.New(opts.FadeSeconds),
	}
	s.poller = NewPoller(s.pollTransport, logging.NewComponentLogger(logger, "poller"))
	return s
}

// ID returns the session identifier carried in every log line.
func (s *Session) ID() string { return s.id }

// Directory exposes the clip directory so control surfaces can observe
// choice changes.
func (s *Session) Directory() *clips.Directory { return s.clips }

// Connect dials the device, subscribes to notifications and loads the
// initial state. Fetch failures after the dial are logged and leave the
// affected state at its defaults.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.status = StatusConnecting
	s.lastErr = nil
	s.mu.Unlock()
	s.dispatchStatus(ctx)

	client, info, err := hyperdeck.Dial(ctx, s.opts.Addr, hyperdeck.Options{
		CommandTimeout: s.opts.CommandTimeout,
		Logger:         logging.NewComponentLogger(s.opts.ProtocolLogger, "hyperdeck"),
	})
	if err != nil {
		s.setStatus(StatusError, err)
		logging.ErrorWithContext(s.logger, "device connection failed", "connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check device.host and that no other controller holds the connection"),
		)
		s.dispatchStatus(ctx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.client = client
	s.cancel = cancel
	s.actorDone = done
	s.info = hyperdeck.DeviceInfoResult{
		ProtocolVersion: info.ProtocolVersion,
		Model:           info.Model,
		SlotCount:       deck.DefaultSlotCount,
	}
	s.model = s.resolveModel(info.Model)
	mode := s.mode
	interval := s.pollInterval
	model := s.model
	s.mu.Unlock()
	go s.run(runCtx, client, done)

	s.logger.Info("device connected",
		logging.String("model", model),
		logging.String("device_name", info.Model),
		logging.String("protocol_version", info.ProtocolVersion),
	)

	notify := hyperdeck.Notify{Transport: true, Slot: true, Configuration: true}
	if mode == config.TimecodeNotifications && protocolAtLeast(info.ProtocolVersion, 1, 11) {
		notify.DisplayTimecode = deck.Ptr(true)
	}
	if _, err := s.send(ctx, hyperdeck.NotifySet(notify)); err != nil {
		logging.WarnWithContext(s.logger, "notification subscription failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "state only updates through polling and commands"),
		)
	}
	s.initialFetch(ctx)

	if !s.markConnected(client) {
		return s.Err()
	}
	s.dispatchStatus(ctx)
	if mode == config.TimecodePolling {
		s.poller.Reschedule(interval)
	}
	return nil
}

func (s *Session) initialFetch(ctx context.Context) {
	slotCount := deck.DefaultSlotCount
	if resp, err := s.send(ctx, hyperdeck.DeviceInfo()); err != nil {
		s.warnFetch("device info", err)
	} else {
		di := hyperdeck.DecodeDeviceInfo(resp)
		s.mu.Lock()
		if di.ProtocolVersion != "" {
			s.info.ProtocolVersion = di.ProtocolVersion
		}
		if di.Model != "" {
			s.info.Model = di.Model
			s.model = s.resolveModel(di.Model)
		}
		s.info.UniqueID = di.UniqueID
		if di.SlotCount > 0 {
			s.info.SlotCount = di.SlotCount
		}
		slotCount = s.info.SlotCount
		s.mu.Unlock()
	}

	for id := 1; id <= slotCount; id++ {
		s.fetchSlot(ctx, id)
	}
	if err := s.refreshTransport(ctx); err != nil {
		s.warnFetch("transport info", err)
	}
	if resp, err := s.send(ctx, hyperdeck.ConfigurationGet()); err != nil {
		s.warnFetch("configuration", err)
	} else {
		s.applyConfiguration(hyperdeck.DecodeConfiguration(resp))
	}
	s.refreshClips(ctx, s.Transport().SlotID)
}

func (s *Session) warnFetch(what string, err error) {
	logging.WarnWithContext(s.logger, "initial fetch failed", "initial_fetch_failed",
		logging.String("fetch", what),
		logging.Error(err),
	)
}

func (s *Session) resolveModel(name string) string {
	if override := strings.TrimSpace(s.opts.Model); override != "" && override != "auto" {
		return override
	}
	return deck.DetectModel(name)
}

func (s *Session) markConnected(client *hyperdeck.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != client {
		return false
	}
	s.status = StatusOK
	s.lastErr = nil
	return true
}

// run drains the client's event mailbox in arrival order until the
// connection ends.
func (s *Session) run(ctx context.Context, client *hyperdeck.Client, done chan struct{}) {
	defer close(done)
	for ev := range client.Events() {
		if ev.Kind == hyperdeck.EventDisconnected {
			s.lost(client, ev.Err)
			continue
		}
		s.ApplyNotification(ctx, ev)
	}
}

func (s *Session) lost(client *hyperdeck.Client, cause error) {
	s.mu.Lock()
	if s.client != client {
		s.mu.Unlock()
		return
	}
	if cause == nil {
		cause = &hyperdeck.ConnectionError{Addr: s.opts.Addr}
	}
	s.client = nil
	cancel := s.cancel
	s.cancel = nil
	s.status = StatusError
	s.lastErr = cause
	s.clearFormatTokenLocked()
	s.mu.Unlock()

	s.poller.Stop()
	if cancel != nil {
		cancel()
	}
	logging.ErrorWithContext(s.logger, "device connection lost", "connection_lost",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "reconnect with deckhand daemon restart once the device is reachable"),
		logging.String(logging.FieldImpact, "state is frozen at the last known values"),
	)
	s.dispatchStatus(context.Background())
}

// Disconnect stops polling and closes the connection. It is safe to call on
// a disconnected session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	client := s.client
	cancel := s.cancel
	done := s.actorDone
	s.client = nil
	s.cancel = nil
	if client != nil {
		s.status = StatusError
		s.lastErr = ErrNotConnected
	}
	s.clearFormatTokenLocked()
	s.mu.Unlock()

	if client == nil {
		return
	}
	s.poller.Stop()
	cancel()
	_ = client.Close()
	<-done
	s.logger.Info("device disconnected")
	s.dispatchStatus(context.Background())
}

// Status reports the connection status and the error behind StatusError.
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// Err returns the error behind the current status, if any.
func (s *Session) Err() error {
	_, err := s.Status()
	return err
}

func (s *Session) setStatus(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.lastErr = err
}

func (s *Session) dispatchStatus(ctx context.Context) {
	s.mu.Lock()
	ev := StatusEvent{
		SessionID:       s.id,
		Status:          s.status,
		Addr:            s.opts.Addr,
		Model:           s.model,
		ProtocolVersion: s.info.ProtocolVersion,
	}
	if s.status == StatusError {
		ev.Err = s.lastErr
	}
	s.mu.Unlock()
	s.opts.Dispatcher.StatusChanged(ctx, ev)
}

// send performs one round trip with a correlation id attached.
func (s *Session) send(ctx context.Context, cmd hyperdeck.Command) (hyperdeck.Response, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return hyperdeck.Response{}, fmt.Errorf("%s: %w", cmd.Name, ErrNotConnected)
	}
	if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
		ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, s.logger)

	start := time.Now()
	resp, err := client.Send(ctx, cmd)
	if err != nil {
		logger.Debug("command failed",
			logging.String("command", cmd.Wire()),
			logging.Error(err),
		)
		return resp, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	logger.Debug("command completed",
		logging.String("command", cmd.Wire()),
		logging.Int("code", resp.Code),
		logging.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// commandFunc adapts a send function to clips.Fetcher.
type commandFunc func(ctx context.Context, cmd hyperdeck.Command) (hyperdeck.Response, error)

func (f commandFunc) Send(ctx context.Context, cmd hyperdeck.Command) (hyperdeck.Response, error) {
	return f(ctx, cmd)
}

// Transport returns a copy of the transport state.
func (s *Session) Transport() deck.TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Slot returns a copy of one slot's state.
func (s *Session) Slot(id int) (deck.SlotState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return deck.SlotState{}, false
	}
	return *slot, true
}

// Slots returns every known slot ordered by id.
func (s *Session) Slots() []deck.SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotsLocked()
}

func (s *Session) slotsLocked() []deck.SlotState {
	out := make([]deck.SlotState, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, *slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Configuration returns a copy of the device configuration.
func (s *Session) Configuration() deck.ConfigurationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// ClipRef selects a clip by id, or by name when ID is zero.
type ClipRef struct {
	ID   int
	Name string
}

// Clip looks up a clip in slotID, or in the active slot when slotID is zero.
func (s *Session) Clip(slotID int, ref ClipRef) (deck.Clip, bool) {
	if slotID == 0 {
		slotID = s.Transport().SlotID
	}
	if ref.ID > 0 {
		return s.clips.FindByID(slotID, ref.ID)
	}
	if ref.Name != "" {
		return s.clips.FindByName(slotID, ref.Name)
	}
	return deck.Clip{}, false
}

// Clips returns the cached clip list of slotID, or of the active slot when
// slotID is zero.
func (s *Session) Clips(slotID int) []deck.Clip {
	if slotID == 0 {
		slotID = s.Transport().SlotID
	}
	return s.clips.Clips(slotID)
}

// Timecode returns the last computed display.
func (s *Session) Timecode() timecode.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// Cue returns the cue machine state.
func (s *Session) Cue() cue.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cue.State()
}

// ArmCue readies the out point fade.
func (s *Session) ArmCue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cue.Arm()
	s.logger.Info("cue armed", logging.String("out_point", s.cue.State().OutPoint.String()))
}

// ArmStop readies the automatic stop at the out point.
func (s *Session) ArmStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cue.ArmStop()
	s.logger.Info("cue stop armed", logging.String("out_point", s.cue.State().OutPoint.String()))
}

// ResetCue returns the cue machine to idle.
func (s *Session) ResetCue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cue.Reset()
	s.logger.Info("cue reset")
}

// SetInPoint records the cue in point. An empty raw value captures the
// current count-up timecode.
func (s *Session) SetInPoint(raw string) (timecode.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.pointLocked(raw)
	if err != nil {
		return timecode.Value{}, err
	}
	s.cue.SetIn(v)
	s.logger.Info("cue in point set", logging.String("in_point", v.HMSF()))
	return v, nil
}

// SetOutPoint records the cue out point. An empty raw value captures the
// current count-up timecode.
func (s *Session) SetOutPoint(raw string) (timecode.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.pointLocked(raw)
	if err != nil {
		return timecode.Value{}, err
	}
	s.cue.SetOut(v)
	s.logger.Info("cue out point set", logging.String("out_point", v.HMSF()))
	return v, nil
}

// SetFadeSeconds changes the fade lead of the cue.
func (s *Session) SetFadeSeconds(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cue.SetFadeSeconds(seconds)
}

func (s *Session) pointLocked(raw string) (timecode.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if !s.display.CountUp.Valid {
			return timecode.Value{}, fmt.Errorf("%w: no current timecode to capture", ErrInvalidAction)
		}
		raw = s.display.CountUp.HMSF()
	}
	v, err := timecode.Parse(raw, s.display.Rate)
	if err != nil {
		return timecode.Value{}, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	return v, nil
}

// Mode returns the active timecode delivery mode.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// FormatReady reports whether a prepared format token is held.
func (s *Session) FormatReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formatToken != ""
}

// TimecodeView is the rendered display pair.
type TimecodeView struct {
	CountUp   string `json:"count_up"`
	CountDown string `json:"count_down"`
	Rate      string `json:"rate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CueView is the rendered cue state.
type CueView struct {
	Phase       cue.Phase `json:"phase"`
	InPoint     string    `json:"in_point"`
	OutPoint    string    `json:"out_point"`
	FadeSeconds float64   `json:"fade_seconds"`
	StopArmed   bool      `json:"stop_armed"`
	Remaining   int       `json:"remaining"`
}

// Snapshot is a consistent copy of the whole session state.
type Snapshot struct {
	SessionID       string                  `json:"session_id"`
	Status          Status                  `json:"status"`
	Error           string                  `json:"error,omitempty"`
	Addr            string                  `json:"addr"`
	Model           string                  `json:"model,omitempty"`
	DeviceName      string                  `json:"device_name,omitempty"`
	ProtocolVersion string                  `json:"protocol_version,omitempty"`
	TimecodeMode    string                  `json:"timecode_mode"`
	PollInterval    string                  `json:"poll_interval"`
	PollerRunning   bool                    `json:"poller_running"`
	Transport       deck.TransportState     `json:"transport"`
	Slots           []deck.SlotState        `json:"slots"`
	Configuration   deck.ConfigurationState `json:"configuration"`
	Timecode        TimecodeView            `json:"timecode"`
	Cue             CueView                 `json:"cue"`
	ClipCount       int                     `json:"clip_count"`
	FormatReady     bool                    `json:"format_ready"`
	DroppedEvents   uint64                  `json:"dropped_events"`
}

// Snapshot returns the current state in one consistent copy.
func (s *Session) Snapshot() Snapshot {
	running := s.poller.Running()

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.cue.State()
	snap := Snapshot{
		SessionID:       s.id,
		Status:          s.status,
		Addr:            s.opts.Addr,
		Model:           s.model,
		DeviceName:      s.info.Model,
		ProtocolVersion: s.info.ProtocolVersion,
		TimecodeMode:    s.mode,
		PollInterval:    s.pollInterval.String(),
		PollerRunning:   running,
		Transport:       s.transport,
		Slots:           s.slotsLocked(),
		Configuration:   s.config,
		Timecode: TimecodeView{
			CountUp:   s.display.CountUp.HMSF(),
			CountDown: s.display.CountDown.HMSF(),
		},
		Cue: CueView{
			Phase:       state.Phase,
			InPoint:     state.InPoint.HMSF(),
			OutPoint:    state.OutPoint.HMSF(),
			FadeSeconds: state.FadeSeconds,
			StopArmed:   state.StopArmed,
			Remaining:   state.Remaining,
		},
		ClipCount:   s.clips.Count(s.transport.SlotID),
		FormatReady: s.formatToken != "",
	}
	if s.status == StatusError && s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	if s.display.Rate != nil {
		snap.Timecode.Rate = s.display.Rate.Name
	}
	if s.display.Err != nil {
		snap.Timecode.Error = s.display.Err.Error()
	}
	if s.client != nil {
		snap.DroppedEvents = s.client.Dropped()
	}
	return snap
}

// protocolAtLeast compares a "major.minor" protocol version.
func protocolAtLeast(version string, major, minor int) bool {
	majorText, minorText, _ := strings.Cut(strings.TrimSpace(version), ".")
	gotMajor, err := strconv.Atoi(majorText)
	if err != nil {
		return false
	}
	gotMinor, _ := strconv.Atoi(minorText)
	if gotMajor != major {
		return gotMajor > major
	}
	return gotMinor >= minor
}
