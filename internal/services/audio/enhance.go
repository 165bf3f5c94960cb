package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/progress"
	"bookforge/internal/queue"
	"bookforge/internal/services"
	"bookforge/internal/stage"
)

// EnhancementExecutor runs post-processing on an assembled audiobook: a
// dedicated denoiser when one is configured, otherwise ffmpeg's afftdn
// filter.
type EnhancementExecutor struct {
	cfg    config.Audio
	logger *slog.Logger
}

// NewEnhancementExecutor builds the enhancement stage executor.
func NewEnhancementExecutor(cfg config.Audio, logger *slog.Logger) *EnhancementExecutor {
	return &EnhancementExecutor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "enhance"),
	}
}

func (e *EnhancementExecutor) Start(ctx context.Context, job queue.Job, report stage.ProgressFunc) (stage.Result, error) {
	if _, err := os.Stat(job.InputRef); err != nil {
		return stage.Result{}, services.Wrap(services.ErrNotFound, "enhance", "start",
			fmt.Sprintf("input %s", job.InputRef), err)
	}

	outputPath := enhancedPath(job.InputRef)
	started := time.Now()
	if report != nil {
		report(progress.Envelope{Phase: "enhance", Message: "Enhancing audio"})
	}

	var cmd *exec.Cmd
	engine := e.cfg.FFmpegBinary
	if e.cfg.DenoiseBinary != "" {
		engine = e.cfg.DenoiseBinary
		cmd = exec.CommandContext(ctx, e.cfg.DenoiseBinary, job.InputRef, outputPath)
	} else {
		cmd = exec.CommandContext(ctx, e.cfg.FFmpegBinary,
			"-hide_banner", "-nostdin", "-y",
			"-i", job.InputRef,
			"-af", "afftdn=nf=-25",
			"-c:a", "aac", "-b:a", "128k",
			outputPath,
		)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stage.Result{Stopped: true}, nil
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		return stage.Failure(services.Wrap(services.ErrExternalTool, "enhance", "run",
			fmt.Sprintf("%s failed: %s", filepath.Base(engine), detail), err)), nil
	}

	e.logger.Info("audio enhanced",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("output", outputPath),
	)
	return stage.Result{
		Success:    true,
		OutputPath: outputPath,
		Analytics:  &stage.Analytics{Units: 1, Duration: time.Since(started), Engine: engine},
	}, nil
}

func (e *EnhancementExecutor) Cancel(ctx context.Context, jobID string) error { return nil }

func enhancedPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".enhanced" + ext
}
