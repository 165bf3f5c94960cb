package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Error("file should not exist")
	}
	if resolved != path {
		t.Errorf("resolved = %s, want %s", resolved, path)
	}
	if cfg.Audio.OutputFormat != "m4b" {
		t.Errorf("output format = %s", cfg.Audio.OutputFormat)
	}
	if cfg.TTS.Workers != 2 {
		t.Errorf("workers = %d", cfg.TTS.Workers)
	}
	if cfg.Workflow.StaleTimeoutMinutes != 0 {
		t.Error("watchdog should default to disabled")
	}
	if strings.HasSuffix(cfg.AI.BaseURL, "/chat/completions") {
		t.Errorf("base url should not include the completions path: %s", cfg.AI.BaseURL)
	}
}

func TestLoadAppliesOverridesAndExpandsPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/bookforge-test-data"

[tts]
workers = 6

[logging]
format = "JSON"

[audio]
output_format = "mp3"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("config file should be detected")
	}
	if cfg.TTS.Workers != 6 {
		t.Errorf("workers = %d", cfg.TTS.Workers)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("format should be lowercased, got %q", cfg.Logging.Format)
	}
	if cfg.Audio.OutputFormat != "mp3" {
		t.Errorf("output format = %s", cfg.Audio.OutputFormat)
	}
	if strings.HasPrefix(cfg.Paths.DataDir, "~") || !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Errorf("data dir not expanded: %s", cfg.Paths.DataDir)
	}
	// Unset sections keep their defaults.
	if cfg.Paths.StagingDir == "" || strings.HasPrefix(cfg.Paths.StagingDir, "~") {
		t.Errorf("staging dir = %s", cfg.Paths.StagingDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad format":   "[audio]\noutput_format = \"ogg\"\n",
		"zero workers": "[tts]\nworkers = -1\n",
		"negative watchdog": "[workflow]\nstale_timeout_minutes = -5\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, _, _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAPIKeyEnvironmentFallback(t *testing.T) {
	t.Setenv("BOOKFORGE_AI_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.APIKey != "env-key" {
		t.Errorf("api key = %q, want env fallback", cfg.AI.APIKey)
	}

	if err := os.WriteFile(path, []byte("[ai]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, _, err = Load(path)
	if err != nil {
		t.Fatalf("load with file key: %v", err)
	}
	if cfg.AI.APIKey != "file-key" {
		t.Errorf("api key = %q, file value should win", cfg.AI.APIKey)
	}
}

func TestCreateSampleParsesCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
