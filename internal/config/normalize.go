package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeDevice()
	c.normalizeTimecode()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOSC()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeDevice() {
	c.Device.Host = strings.TrimSpace(c.Device.Host)
	if c.Device.Host == "" {
		if value, ok := os.LookupEnv("DECKHAND_HOST"); ok {
			c.Device.Host = strings.TrimSpace(value)
		}
	}
	if c.Device.Port == 0 {
		c.Device.Port = defaultDevicePort
	}
	c.Device.Model = strings.TrimSpace(c.Device.Model)
	if c.Device.Model == "" {
		c.Device.Model = defaultDeviceModel
	}
	if c.Device.CommandTimeoutMS <= 0 {
		c.Device.CommandTimeoutMS = defaultCommandTimeoutMS
	}
	c.Device.Reel = strings.TrimSpace(c.Device.Reel)
	if c.Device.Reel == "" {
		c.Device.Reel = defaultReel
	}
}

func (c *Config) normalizeTimecode() {
	c.Timecode.Mode = strings.ToLower(strings.TrimSpace(c.Timecode.Mode))
	if c.Timecode.Mode == "" {
		c.Timecode.Mode = defaultTimecodeMode
	}
	if c.Timecode.PollIntervalMS == 0 {
		c.Timecode.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Timecode.FormatTokenSeconds <= 0 {
		c.Timecode.FormatTokenSeconds = defaultFormatTokenSeconds
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("DECKHAND_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeOSC() {
	c.OSC.Listen = strings.TrimSpace(c.OSC.Listen)
	if c.OSC.Listen == "" {
		c.OSC.Listen = defaultOSCListen
	}
	c.OSC.TargetHost = strings.TrimSpace(c.OSC.TargetHost)
	if c.OSC.TargetPort == 0 {
		c.OSC.TargetPort = defaultOSCTargetPort
	}
	c.OSC.FadeAddress = strings.TrimSpace(c.OSC.FadeAddress)
	if c.OSC.FadeAddress == "" {
		c.OSC.FadeAddress = defaultOSCFadeAddress
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.ProtocolLevel = strings.ToLower(strings.TrimSpace(c.Logging.ProtocolLevel))
}
