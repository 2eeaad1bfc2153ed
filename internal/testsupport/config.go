package testsupport

import (
	"path/filepath"
	"testing"

	"deckhand/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Device.Host = "127.0.0.1"
	cfgVal.Device.CommandTimeoutMS = 1000
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.OSC.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDevice points the test config at a device address.
func WithDevice(host string, port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.Host = host
		b.cfg.Device.Port = port
	}
}

// WithFakeDeck points the test config at a running fake device.
func WithFakeDeck(deck *FakeDeck) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.Host = deck.Host()
		b.cfg.Device.Port = deck.Port()
	}
}

// WithTimecodeMode sets the timecode delivery mode and poll interval.
func WithTimecodeMode(mode string, pollIntervalMS int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timecode.Mode = mode
		if pollIntervalMS > 0 {
			b.cfg.Timecode.PollIntervalMS = pollIntervalMS
		}
	}
}

// WithAPIToken sets the HTTP API bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
