package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"deckhand/internal/config"
	"deckhand/internal/deck"
	"deckhand/internal/logging"
	"deckhand/internal/notifications"
	"deckhand/internal/oscbridge"
	"deckhand/internal/session"
)

// Daemon owns the device session and enforces one controller per recorder.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	session  *session.Session
	notifier *notifications.Dispatcher
	osc      *oscbridge.Server
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	Uptime       string           `json:"uptime,omitempty"`
	LockFilePath string           `json:"lock_path"`
	SocketPath   string           `json:"socket_path"`
	APIAddress   string           `json:"api_address,omitempty"`
	OSCAddress   string           `json:"osc_address,omitempty"`
	Session      session.Snapshot `json:"session"`
}

// New constructs a daemon with initialized dependencies. Nothing touches the
// network until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		notifier: notifications.NewDispatcher(notifications.NewService(cfg), logger),
		lockPath: cfg.LockPath(),
	}
	d.lock = flock.New(d.lockPath)

	dispatchers := session.Dispatchers{d.notifier}
	if cfg.OSC.Enabled && strings.TrimSpace(cfg.OSC.TargetHost) != "" {
		dispatchers = append(dispatchers, oscbridge.NewEmitter(cfg.OSC.TargetHost, cfg.OSC.TargetPort, cfg.OSC.FadeAddress, logger))
	}
	opts := session.OptionsFromConfig(cfg, logger)
	opts.Dispatcher = dispatchers
	d.session = session.New(opts)

	if cfg.OSC.Enabled {
		srv, err := oscbridge.NewServer(cfg.OSC.Listen, d, logger)
		if err != nil {
			return nil, fmt.Errorf("osc server: %w", err)
		}
		d.osc = srv
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the device lock, connects to the recorder and opens the
// control surfaces. A failed connection is logged and leaves the session in
// error status; Connect retries it.
func (d *Daemon) Start(ctx context.Context) error {
	connectCtx, err := d.start(ctx)
	if err != nil {
		return err
	}
	if err := d.session.Connect(connectCtx); err != nil {
		logging.WarnWithContext(d.logger, "initial connection failed", "connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the recorder is powered and reachable, then run deckhand connect"),
			logging.String(logging.FieldImpact, "device state is unavailable until a connection succeeds"),
		)
	}
	return nil
}

func (d *Daemon) start(ctx context.Context) (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return nil, errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another deckhand daemon already controls %s", d.cfg.DeviceAddr())
	}

	d.notifier.Resume()
	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		d.releaseLocked()
		return nil, err
	}
	if d.osc != nil {
		if err := d.osc.Start(); err != nil {
			d.api.stop()
			d.releaseLocked()
			return nil, fmt.Errorf("start osc server: %w", err)
		}
	}

	d.running.Store(true)
	d.started = time.Now()
	d.logger.Info("deckhand daemon started",
		logging.String("lock", d.lockPath),
		logging.Device(d.cfg.DeviceAddr()),
	)
	return d.ctx, nil
}

// Stop disconnects from the recorder, closes the control surfaces and
// releases the device lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.osc != nil {
		if err := d.osc.Close(); err != nil {
			d.logger.Warn("failed to close osc server", logging.Error(err))
		}
	}
	d.api.stop()
	d.session.Disconnect()
	d.notifier.Wait()
	d.releaseLocked()
	d.running.Store(false)
	d.logger.Info("deckhand daemon stopped")
}

func (d *Daemon) releaseLocked() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Session exposes the device session.
func (d *Daemon) Session() *session.Session {
	return d.session
}

// Connect opens the control connection if it is not already up.
func (d *Daemon) Connect(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	if err := d.session.Connect(ctx); err != nil && !errors.Is(err, session.ErrAlreadyConnected) {
		return err
	}
	return nil
}

// Disconnect drops the control connection and keeps the daemon running.
func (d *Daemon) Disconnect() {
	d.session.Disconnect()
}

// IssueCommand runs one action and publishes format milestones.
func (d *Daemon) IssueCommand(ctx context.Context, a session.Action) (session.Result, error) {
	res, err := d.session.IssueCommand(ctx, a)
	if err != nil {
		if !errors.Is(err, session.ErrInvalidAction) && !errors.Is(err, session.ErrNotConnected) {
			d.notifier.Publish(notifications.EventError, notifications.Payload{
				"context": string(a.Kind),
				"error":   err.Error(),
			})
		}
		return res, err
	}
	switch a.Kind {
	case session.KindFormatPrepare:
		filesystem := a.Value
		if filesystem == "" {
			filesystem = "exFAT"
		}
		d.notifier.Publish(notifications.EventFormatReady, notifications.Payload{
			"device":     d.cfg.DeviceAddr(),
			"filesystem": filesystem,
		})
	case session.KindFormatConfirm:
		if !res.Skipped {
			d.notifier.Publish(notifications.EventFormatDone, notifications.Payload{"device": d.cfg.DeviceAddr()})
		}
	}
	return res, nil
}

// SetTimecodeMode switches timecode delivery at runtime.
func (d *Daemon) SetTimecodeMode(ctx context.Context, mode string, interval time.Duration) error {
	return d.session.SetTimecodeMode(ctx, mode, interval)
}

// Clips returns the cached clips of slotID, or of the active slot when zero.
func (d *Daemon) Clips(slotID int) []deck.Clip {
	return d.session.Clips(slotID)
}

// Variables returns the display variables.
func (d *Daemon) Variables() map[string]string {
	return d.session.Variables()
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIAddress:   d.api.address(),
		Session:      d.session.Snapshot(),
	}
	if status.Running {
		d.mu.Lock()
		status.Uptime = time.Since(d.started).Round(time.Second).String()
		d.mu.Unlock()
	}
	if d.osc != nil && status.Running {
		status.OSCAddress = d.osc.Addr()
	}
	return status
}
