package deps

import (
	"os"
	"path/filepath"
	"testing"

	"bookforge/internal/config"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present")

	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	})
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Errorf("present tool = %+v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Errorf("missing tool = %+v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Errorf("unset tool = %+v", results[2])
	}
}

func TestForConfigCoversPipelineTools(t *testing.T) {
	cfg := config.Default()
	requirements := ForConfig(&cfg)

	byName := map[string]Requirement{}
	for _, req := range requirements {
		byName[req.Name] = req
	}
	for _, name := range []string{"ffmpeg", "ffprobe", "TTS engine"} {
		req, ok := byName[name]
		if !ok {
			t.Errorf("requirement %s missing", name)
			continue
		}
		if req.Optional {
			t.Errorf("%s should be required", name)
		}
	}
	if denoiser, ok := byName["Denoiser"]; !ok || !denoiser.Optional {
		t.Error("denoiser should be listed as optional")
	}
}

func TestMissingRequired(t *testing.T) {
	missing := MissingRequired([]Status{
		{Name: "ffmpeg", Available: true},
		{Name: "TTS engine", Available: false},
		{Name: "Denoiser", Available: false, Optional: true},
	})
	if len(missing) != 1 || missing[0] != "TTS engine" {
		t.Errorf("missing = %v", missing)
	}
}
