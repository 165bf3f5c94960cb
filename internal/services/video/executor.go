package video

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/progress"
	"bookforge/internal/queue"
	"bookforge/internal/services"
	"bookforge/internal/services/audio"
	"bookforge/internal/stage"
)

// Executor renders video assembly jobs with ffmpeg: a looped still image
// over the audiobook's audio track.
type Executor struct {
	cfg       config.Audio
	outputDir string
	logger    *slog.Logger
}

// NewExecutor builds the video assembly stage executor.
func NewExecutor(cfg config.Audio, outputDir string, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "video"),
	}
}

func (e *Executor) Start(ctx context.Context, job queue.Job, report stage.ProgressFunc) (stage.Result, error) {
	if job.Config.ImagePath == "" {
		return stage.Result{}, services.Wrap(services.ErrValidation, "video", "start",
			"video assembly requires a cover image", nil)
	}
	if _, err := os.Stat(job.InputRef); err != nil {
		return stage.Result{}, services.Wrap(services.ErrNotFound, "video", "start",
			fmt.Sprintf("audio input %s", job.InputRef), err)
	}

	total, err := audio.ProbeDuration(ctx, e.cfg.FFprobeBinary, job.InputRef)
	if err != nil {
		if ctx.Err() != nil {
			return stage.Result{Stopped: true}, nil
		}
		return stage.Failure(err), nil
	}

	outputPath := e.outputPath(job)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "video", "render",
			"create output directory", err)
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, e.cfg.FFmpegBinary,
		"-hide_banner", "-nostdin", "-y",
		"-loop", "1", "-framerate", "1",
		"-i", job.Config.ImagePath,
		"-i", job.InputRef,
		"-c:v", "libx264", "-tune", "stillimage", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-shortest", "-movflags", "+faststart",
		"-progress", "pipe:1",
		outputPath,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "video", "render",
			"open stdout pipe", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "video", "render",
			fmt.Sprintf("launch %s", e.cfg.FFmpegBinary), err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found || key != "out_time_us" || report == nil || total <= 0 {
			continue
		}
		us, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			continue
		}
		report(progress.Envelope{
			Phase:        progress.PhaseAssembly,
			PhasePercent: float64(us) / float64(total.Microseconds()) * 100,
			Message:      "Rendering video",
		})
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return stage.Result{Stopped: true}, nil
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		return stage.Failure(services.Wrap(services.ErrExternalTool, "video", "render",
			fmt.Sprintf("ffmpeg failed: %s", detail), err)), nil
	}

	e.logger.Info("video rendered",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("output", outputPath),
		logging.Duration("audio_duration", total),
	)
	return stage.Result{
		Success:    true,
		OutputPath: outputPath,
		Analytics:  &stage.Analytics{Units: 1, Duration: time.Since(started), Engine: e.cfg.FFmpegBinary},
	}, nil
}

func (e *Executor) Cancel(ctx context.Context, jobID string) error { return nil }

func (e *Executor) outputPath(job queue.Job) string {
	dir := job.Config.OutputDir
	if dir == "" {
		dir = e.outputDir
	}
	base := strings.TrimSuffix(filepath.Base(job.InputRef), filepath.Ext(job.InputRef))
	return filepath.Join(dir, base+".mp4")
}
