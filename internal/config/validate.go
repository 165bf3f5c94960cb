package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	for key, value := range map[string]string{
		"paths.data_dir":     c.Paths.DataDir,
		"paths.staging_dir":  c.Paths.StagingDir,
		"paths.log_dir":      c.Paths.LogDir,
		"paths.sessions_dir": c.Paths.SessionsDir,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.SnapshotFlushInterval <= 0 {
		return errors.New("workflow.snapshot_flush_interval must be positive")
	}
	if c.Workflow.StaleTimeoutMinutes < 0 {
		return errors.New("workflow.stale_timeout_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if strings.TrimSpace(c.TTS.Binary) == "" {
		return errors.New("tts.binary must be set")
	}
	if c.TTS.Workers <= 0 {
		return errors.New("tts.workers must be positive")
	}
	if c.TTS.TimeoutSeconds < 0 {
		return errors.New("tts.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if strings.TrimSpace(c.Audio.FFmpegBinary) == "" {
		return errors.New("audio.ffmpeg_binary must be set")
	}
	if strings.TrimSpace(c.Audio.FFprobeBinary) == "" {
		return errors.New("audio.ffprobe_binary must be set")
	}
	switch strings.ToLower(strings.TrimSpace(c.Audio.OutputFormat)) {
	case "m4b", "mp3", "wav", "flac":
		return nil
	default:
		return fmt.Errorf("audio.output_format: unsupported value %q", c.Audio.OutputFormat)
	}
}
