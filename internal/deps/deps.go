// Package deps checks the external tools the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"bookforge/internal/config"
)

// Requirement is one external tool the pipeline depends on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the tools a configuration requires. Required entries block
// the stages that use them; optional ones only degrade functionality.
func ForConfig(cfg *config.Config) []Requirement {
	requirements := []Requirement{
		{
			Name:        "ffmpeg",
			Command:     cfg.Audio.FFmpegBinary,
			Description: "Audio assembly and video rendering",
		},
		{
			Name:        "ffprobe",
			Command:     cfg.Audio.FFprobeBinary,
			Description: "Chunk duration probing",
		},
		{
			Name:        "TTS engine",
			Command:     cfg.TTS.Binary,
			Description: "Speech synthesis helper",
		},
		{
			Name:        "Denoiser",
			Command:     cfg.Audio.DenoiseBinary,
			Description: "External audio enhancement (ffmpeg filter used when absent)",
			Optional:    true,
		},
	}
	return requirements
}

// CheckBinaries resolves each requirement on PATH and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case command == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", command)
			} else {
				status.Command = resolved
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional tools.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
