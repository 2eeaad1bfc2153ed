package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deckhand/internal/config"
	"deckhand/internal/hyperdeck"
	"deckhand/internal/logging"
)

// MaxPollFailures is the number of consecutive failed polls that halts the
// poller.
const MaxPollFailures = 3

// ClampInterval bounds a poll interval to the supported range.
func ClampInterval(d time.Duration) time.Duration {
	ms := config.ClampPollInterval(int(d / time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// Poller runs a tick function on a fixed interval. At most one timer
// goroutine exists at a time.
type Poller struct {
	tick   func(context.Context) error
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// NewPoller returns a stopped poller.
func NewPoller(tick func(context.Context) error, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Poller{tick: tick, logger: logger}
}

// Reschedule stops any running timer and starts a new one at the clamped
// interval, which it returns.
func (p *Poller) Reschedule(interval time.Duration) time.Duration {
	interval = ClampInterval(interval)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.interval = interval
	go p.loop(ctx, interval, done)
	p.logger.Debug("poller started", logging.Duration("interval", interval))
	return interval
}

// Stop halts the timer and waits for an in-flight tick to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

// Running reports whether the timer goroutine is alive. A poller halted by
// repeated failures is not running.
func (p *Poller) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Interval returns the interval of the most recent schedule.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := p.tick(ctx)
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return
			}
			failures++
			logging.WarnWithContext(p.logger, "transport poll failed", "poll_failed",
				logging.Error(err),
				logging.Int("consecutive_failures", failures),
			)
			if failures >= MaxPollFailures {
				logging.ErrorWithContext(p.logger, "transport polling halted", "poll_halted",
					logging.Int("consecutive_failures", failures),
					logging.String(logging.FieldErrorHint, "switch the timecode mode to polling again to restart"),
				)
				return
			}
		}
	}
}

func (s *Session) pollTransport(ctx context.Context) error {
	return s.refreshTransport(ctx)
}

// SetTimecodeMode switches timecode delivery at runtime. A positive interval
// replaces the poll interval. Switching modes never leaves polling and
// display timecode notifications active together.
func (s *Session) SetTimecodeMode(ctx context.Context, mode string, interval time.Duration) error {
	switch mode {
	case config.TimecodeDisabled, config.TimecodeNotifications, config.TimecodePolling:
	default:
		return fmt.Errorf("%w: unknown timecode mode %q", ErrInvalidAction, mode)
	}

	s.mu.Lock()
	prev := s.mode
	s.mode = mode
	if interval > 0 {
		s.pollInterval = ClampInterval(interval)
	}
	pollInterval := s.pollInterval
	connected := s.client != nil
	displayNotify := protocolAtLeast(s.info.ProtocolVersion, 1, 11)
	s.mu.Unlock()

	s.logger.Info("timecode mode changed",
		logging.String("from", prev),
		logging.String("to", mode),
		logging.Duration("poll_interval", pollInterval),
	)
	if !connected {
		return nil
	}

	var err error
	switch mode {
	case config.TimecodeNotifications:
		s.poller.Stop()
		if prev != config.TimecodeNotifications && displayNotify {
			_, err = s.send(ctx, hyperdeck.NotifyDisplayTimecode(true))
		}
	case config.TimecodePolling:
		if prev == config.TimecodeNotifications && displayNotify {
			_, err = s.send(ctx, hyperdeck.NotifyDisplayTimecode(false))
		}
		s.poller.Reschedule(pollInterval)
	case config.TimecodeDisabled:
		s.poller.Stop()
		if prev == config.TimecodeNotifications && displayNotify {
			_, err = s.send(ctx, hyperdeck.NotifyDisplayTimecode(false))
		}
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "display timecode subscription change failed", "notify_failed",
			logging.String("mode", mode),
			logging.Error(err),
		)
	}
	return err
}
