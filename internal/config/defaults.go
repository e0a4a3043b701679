package config

const (
	defaultDownloadDir        = "~/Downloads"
	defaultStateDir           = "~/.local/share/centrifugue"
	defaultLogDir             = "~/.local/share/centrifugue/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultMP3Bitrate         = 320
	defaultStalenessSeconds   = 600
	defaultTitleTimeout       = 30
	defaultDownloadTimeout    = 300
	defaultMixTimeout         = 120
	defaultCancelGraceSeconds = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Separation: Separation{
			MP3Bitrate: defaultMP3Bitrate,
		},
		Jobs: Jobs{
			StalenessSeconds:   defaultStalenessSeconds,
			TitleTimeout:       defaultTitleTimeout,
			DownloadTimeout:    defaultDownloadTimeout,
			MixTimeout:         defaultMixTimeout,
			CancelGraceSeconds: defaultCancelGraceSeconds,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
