package config

import (
	"os"
	"strings"
)

// normalize expands paths and applies environment fallbacks after decoding.
func (c *Config) normalize() error {
	if key := strings.TrimSpace(os.Getenv("BOOKFORGE_AI_API_KEY")); key != "" && strings.TrimSpace(c.AI.APIKey) == "" {
		c.AI.APIKey = key
	}

	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Paths.StagingDir,
		&c.Paths.LogDir,
		&c.Paths.SessionsDir,
		&c.Paths.OutputDir,
	} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Audio.OutputFormat == "" {
		c.Audio.OutputFormat = defaultOutputFormat
	}
	if c.TTS.Workers == 0 {
		c.TTS.Workers = defaultTTSWorkers
	}
	return nil
}
