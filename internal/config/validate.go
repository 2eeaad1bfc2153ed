package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateTimecode(); err != nil {
		return err
	}
	if err := c.validateOSC(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"device.command_timeout_ms":     c.Device.CommandTimeoutMS,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDevice() error {
	if c.Device.Host == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("device.host is required. Set DECKHAND_HOST env var or edit %s (create with 'deckhand config init')", defaultPath)
	}
	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		return fmt.Errorf("device.port %d is out of range", c.Device.Port)
	}
	if strings.ContainsAny(c.Device.Reel, " \t:") {
		return errors.New("device.reel must not contain spaces or colons")
	}
	return nil
}

func (c *Config) validateTimecode() error {
	switch c.Timecode.Mode {
	case TimecodeDisabled, TimecodeNotifications, TimecodePolling:
	default:
		return fmt.Errorf("timecode.mode %q must be one of disabled, notifications, polling", c.Timecode.Mode)
	}
	if c.Timecode.PollIntervalMS < MinPollIntervalMS || c.Timecode.PollIntervalMS > MaxPollIntervalMS {
		return fmt.Errorf("timecode.poll_interval_ms must be between %d and %d", MinPollIntervalMS, MaxPollIntervalMS)
	}
	if c.Timecode.FadeSeconds < 0 {
		return errors.New("timecode.fade_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateOSC() error {
	if !c.OSC.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.OSC.Listen); err != nil {
		return fmt.Errorf("osc.listen: %w", err)
	}
	if c.OSC.TargetHost != "" && (c.OSC.TargetPort <= 0 || c.OSC.TargetPort > 65535) {
		return fmt.Errorf("osc.target_port %d is out of range", c.OSC.TargetPort)
	}
	if !strings.HasPrefix(c.OSC.FadeAddress, "/") {
		return errors.New("osc.fade_address must start with '/'")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
