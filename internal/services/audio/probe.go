package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"bookforge/internal/services"
)

// probeConcurrency bounds parallel ffprobe processes.
const probeConcurrency = 4

// ChunkInfo is one synthesized chunk with its probed duration.
type ChunkInfo struct {
	Path     string
	Duration time.Duration
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns a media file's duration via ffprobe.
func ProbeDuration(ctx context.Context, ffprobeBin, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "audio", "probe",
			fmt.Sprintf("ffprobe %s", path), err)
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "audio", "probe",
			"decode ffprobe output", err)
	}
	seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "audio", "probe",
			fmt.Sprintf("unparseable duration %q", parsed.Format.Duration), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ProbeChunks probes all chunk files in order, running a bounded number of
// ffprobe processes in parallel. The returned slice preserves input order.
func ProbeChunks(ctx context.Context, ffprobeBin string, paths []string) ([]ChunkInfo, error) {
	chunks := make([]ChunkInfo, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(probeConcurrency)
	for i, path := range paths {
		group.Go(func() error {
			duration, err := ProbeDuration(groupCtx, ffprobeBin, path)
			if err != nil {
				return err
			}
			chunks[i] = ChunkInfo{Path: path, Duration: duration}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}
