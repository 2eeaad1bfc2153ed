package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Timecode delivery modes.
const (
	TimecodeDisabled      = "disabled"
	TimecodeNotifications = "notifications"
	TimecodePolling       = "polling"
)

// Poll interval bounds in milliseconds.
const (
	MinPollIntervalMS = 15
	MaxPollIntervalMS = 10000
)

// Device identifies the recorder to control.
type Device struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Model is a model id such as "hdStudioMini", or "auto" to detect it
	// from the device greeting.
	Model            string `toml:"model"`
	CommandTimeoutMS int    `toml:"command_timeout_ms"`
	// Reel is the clip name prefix used by custom reel recording.
	Reel string `toml:"reel"`
}

// Timecode controls how display timecode reaches the daemon and how cues fire.
type Timecode struct {
	Mode           string  `toml:"mode"`
	PollIntervalMS int     `toml:"poll_interval_ms"`
	FadeSeconds    float64 `toml:"fade_seconds"`
	// FormatTokenSeconds is how long a prepared format token stays valid.
	FormatTokenSeconds int `toml:"format_token_seconds"`
}

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// OSC configures the OSC control surface and the cue emitter.
type OSC struct {
	Enabled     bool   `toml:"enabled"`
	Listen      string `toml:"listen"`
	TargetHost  string `toml:"target_host"`
	TargetPort  int    `toml:"target_port"`
	FadeAddress string `toml:"fade_address"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Connection     bool   `toml:"connection"`
	Cue            bool   `toml:"cue"`
	Format         bool   `toml:"format"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// ProtocolLevel overrides the level of the wire protocol logger.
	ProtocolLevel string `toml:"protocol_level"`
}

// Config encapsulates all configuration values for deckhand.
type Config struct {
	Device        Device        `toml:"device"`
	Timecode      Timecode      `toml:"timecode"`
	Paths         Paths         `toml:"paths"`
	OSC           OSC           `toml:"osc"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("deckhand.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DeviceAddr returns host:port of the configured device.
func (c *Config) DeviceAddr() string {
	return net.JoinHostPort(c.Device.Host, strconv.Itoa(c.Device.Port))
}

// CommandTimeout returns the per-command reply bound.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Device.CommandTimeoutMS) * time.Millisecond
}

// PollInterval returns the transport poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timecode.PollIntervalMS) * time.Millisecond
}

// FormatTokenTTL returns how long a prepared format token is kept.
func (c *Config) FormatTokenTTL() time.Duration {
	return time.Duration(c.Timecode.FormatTokenSeconds) * time.Second
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "deckhand.sock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "deckhand.pid")
}

// LockPath returns the per-device daemon lock file. HyperDeck accepts a
// single control connection, so one daemon per device address is enforced.
func (c *Config) LockPath() string {
	name := strings.NewReplacer(":", "_", "/", "_", "[", "", "]", "").Replace(c.DeviceAddr())
	return filepath.Join(c.Paths.StateDir, "deckhand-"+name+".lock")
}

// ClampPollInterval bounds a poll interval in milliseconds.
func ClampPollInterval(ms int) int {
	switch {
	case ms <= 0:
		return defaultPollIntervalMS
	case ms < MinPollIntervalMS:
		return MinPollIntervalMS
	case ms > MaxPollIntervalMS:
		return MaxPollIntervalMS
	default:
		return ms
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
