package audio

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
	"bookforge/internal/stage"
)

// Executor assembles synthesized chunks into the final audiobook file.
type Executor struct {
	cfg       config.Audio
	outputDir string
	logger    *slog.Logger
}

// NewExecutor builds the audio assembly stage executor. outputDir is the
// default destination when a job does not name its own.
func NewExecutor(cfg config.Audio, outputDir string, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "audio"),
	}
}

func (e *Executor) Start(ctx context.Context, job queue.Job, report stage.ProgressFunc) (stage.Result, error) {
	paths, err := e.collectChunks(job)
	if err != nil {
		return stage.Result{}, err
	}
	if len(paths) == 0 {
		return stage.Result{}, services.Wrap(services.ErrValidation, "audio", "collect",
			fmt.Sprintf("no audio chunks found under %s", job.InputRef), nil)
	}

	started := time.Now()
	chunks, err := ProbeChunks(ctx, e.cfg.FFprobeBinary, paths)
	if err != nil {
		if ctx.Err() != nil {
			return stage.Result{Stopped: true}, nil
		}
		return stage.Failure(err), nil
	}
	var total time.Duration
	for _, chunk := range chunks {
		total += chunk.Duration
	}

	workDir, err := os.MkdirTemp("", "bookforge-assemble-")
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "audio", "assemble",
			"create work directory", err)
	}
	defer os.RemoveAll(workDir)

	listPath := filepath.Join(workDir, "concat.txt")
	if err := writeConcatList(listPath, chunks); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "audio", "assemble",
			"write concat list", err)
	}
	metadataPath := ""
	if e.cfg.OutputFormat == "m4b" {
		metadataPath = filepath.Join(workDir, "chapters.txt")
		if err := writeChapterMetadata(metadataPath, job.Title, BuildChapters(chunks, nil)); err != nil {
			return stage.Result{}, services.Wrap(services.ErrExternalTool, "audio", "assemble",
				"write chapter metadata", err)
		}
	}

	outputPath := e.outputPath(job)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "audio", "assemble",
			"create output directory", err)
	}

	args := concatArgs(listPath, metadataPath, outputPath, e.cfg.OutputFormat, job.Config.Denoise)
	if err := e.runFFmpeg(ctx, args, total, report); err != nil {
		if ctx.Err() != nil {
			return stage.Result{Stopped: true}, nil
		}
		return stage.Failure(err), nil
	}

	e.logger.Info("audiobook assembled",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("output", outputPath),
		logging.Int("chunks", len(chunks)),
		logging.Duration("audio_duration", total),
	)
	return stage.Result{
		Success:    true,
		OutputPath: outputPath,
		Analytics: &stage.Analytics{
			Units:    len(chunks),
			Duration: time.Since(started),
			Engine:   e.cfg.FFmpegBinary,
		},
	}, nil
}

func (e *Executor) Cancel(ctx context.Context, jobID string) error { return nil }

// collectChunks resolves the ordered chunk list. Explicit part lists on the
// job win; bilingual jobs interleave the two lists; otherwise every audio
// file in the input directory is used in name order.
func (e *Executor) collectChunks(job queue.Job) ([]string, error) {
	if len(job.Config.Parts) > 0 {
		if job.Config.Interleave && len(job.Config.SecondaryParts) > 0 {
			return Interleave(job.Config.Parts, job.Config.SecondaryParts), nil
		}
		return job.Config.Parts, nil
	}
	paths, err := listChunkFiles(job.InputRef)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "audio", "collect",
			fmt.Sprintf("read chunk directory %s", job.InputRef), err)
	}
	return paths, nil
}

func (e *Executor) outputPath(job queue.Job) string {
	dir := job.Config.OutputDir
	if dir == "" {
		dir = e.outputDir
	}
	name := sanitizeFilename(job.Title)
	if name == "" {
		name = job.ID
	}
	return filepath.Join(dir, name+"."+e.cfg.OutputFormat)
}

// runFFmpeg executes ffmpeg and converts its -progress key=value stream into
// assembly-phase envelopes.
func (e *Executor) runFFmpeg(ctx context.Context, args []string, total time.Duration, report stage.ProgressFunc) error {
	cmd := exec.CommandContext(ctx, e.cfg.FFmpegBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "assemble", "open stdout pipe", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "assemble",
			fmt.Sprintf("launch %s", e.cfg.FFmpegBinary), err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, found := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !found || key != "out_time_us" {
			continue
		}
		us, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil || total <= 0 || report == nil {
			continue
		}
		percent := float64(us) / float64(total.Microseconds()) * 100
		report(progress.Envelope{
			Phase:        progress.PhaseAssembly,
			PhasePercent: percent,
			Message:      "Assembling audio",
		})
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = detail[len(detail)-400:]
		}
		return services.Wrap(services.ErrExternalTool, "audio", "assemble",
			fmt.Sprintf("ffmpeg failed: %s", detail), err)
	}
	return nil
}

func sanitizeFilename(title string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "", "?", "",
		"\"", "", "<", "", ">", "", "|", "",
	)
	return strings.TrimSpace(replacer.Replace(title))
}
