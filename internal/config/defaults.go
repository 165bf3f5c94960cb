package config

const (
	defaultDataDir               = "~/.local/share/bookforge"
	defaultStagingDir            = "~/.local/share/bookforge/staging"
	defaultLogDir                = "~/.local/share/bookforge/logs"
	defaultSessionsDir           = "~/.local/share/bookforge/sessions"
	defaultOutputDir             = "~/audiobooks"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultErrorRetryInterval    = 10
	defaultSnapshotFlushInterval = 30
	defaultStaleTimeoutMinutes   = 0
	defaultTTSBinary             = "bookforge-tts"
	defaultTTSWorkers            = 2
	defaultTTSLanguage           = "en"
	defaultTTSTimeoutSeconds     = 0
	defaultAIBaseURL             = "https://openrouter.ai/api/v1"
	defaultAIModel               = "google/gemini-3-flash-preview"
	defaultAITimeoutSeconds      = 120
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultDenoiseBinary         = "resemble-denoise"
	defaultOutputFormat          = "m4b"
	defaultNtfyTimeoutSeconds    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			StagingDir:  defaultStagingDir,
			LogDir:      defaultLogDir,
			SessionsDir: defaultSessionsDir,
			OutputDir:   defaultOutputDir,
		},
		Workflow: Workflow{
			ErrorRetryInterval:    defaultErrorRetryInterval,
			SnapshotFlushInterval: defaultSnapshotFlushInterval,
			StaleTimeoutMinutes:   defaultStaleTimeoutMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		TTS: TTS{
			Binary:          defaultTTSBinary,
			Workers:         defaultTTSWorkers,
			DefaultLanguage: defaultTTSLanguage,
			TimeoutSeconds:  defaultTTSTimeoutSeconds,
		},
		AI: AI{
			BaseURL:        defaultAIBaseURL,
			Model:          defaultAIModel,
			TimeoutSeconds: defaultAITimeoutSeconds,
		},
		Audio: Audio{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			DenoiseBinary: defaultDenoiseBinary,
			OutputFormat:  defaultOutputFormat,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
	}
}
