package config

const (
	defaultConfigPath         = "~/.config/deckhand/config.toml"
	defaultStateDir           = "~/.local/share/deckhand"
	defaultLogDir             = "~/.local/share/deckhand/logs"
	defaultAPIBind            = "127.0.0.1:7493"
	defaultDevicePort         = 9993
	defaultDeviceModel        = "auto"
	defaultCommandTimeoutMS   = 5000
	defaultReel               = "A001"
	defaultTimecodeMode       = TimecodeNotifications
	defaultPollIntervalMS     = 500
	defaultFadeSeconds        = 3.0
	defaultFormatTokenSeconds = 10
	defaultOSCListen          = "127.0.0.1:9994"
	defaultOSCTargetPort      = 53000
	defaultOSCFadeAddress     = "/deckhand/cue/fade"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Device: Device{
			Port:             defaultDevicePort,
			Model:            defaultDeviceModel,
			CommandTimeoutMS: defaultCommandTimeoutMS,
			Reel:             defaultReel,
		},
		Timecode: Timecode{
			Mode:               defaultTimecodeMode,
			PollIntervalMS:     defaultPollIntervalMS,
			FadeSeconds:        defaultFadeSeconds,
			FormatTokenSeconds: defaultFormatTokenSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		OSC: OSC{
			Listen:      defaultOSCListen,
			TargetPort:  defaultOSCTargetPort,
			FadeAddress: defaultOSCFadeAddress,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Connection:     true,
			Cue:            true,
			Format:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
