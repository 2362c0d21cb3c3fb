package config

const (
	defaultLogDir        = "~/.local/share/matte/logs"
	defaultJournalPath   = "~/.local/share/matte/journal.db"
	defaultLockDir       = "~/.local/share/matte/locks"
	defaultBackendKind   = "cli"
	defaultBackendBinary = "rembg"
	defaultBackendModel  = "isnet-general-use"
	defaultNotifyTimeout = 10
	defaultWatchDebounce = 500
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			JournalPath: defaultJournalPath,
			LockDir:     defaultLockDir,
		},
		Backend: Backend{
			Kind:   defaultBackendKind,
			Binary: defaultBackendBinary,
			Model:  defaultBackendModel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Watch: Watch{
			DebounceMS: defaultWatchDebounce,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
