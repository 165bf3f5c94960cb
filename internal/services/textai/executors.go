package textai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookforge/internal/fileutil"
	"bookforge/internal/language"
	"bookforge/internal/logging"
	"bookforge/internal/progress"
	"bookforge/internal/queue"
	"bookforge/internal/services"
	"bookforge/internal/stage"
)

const (
	cleanupPrompt = "You prepare book text for audio narration. Remove page numbers, " +
		"headers, footers, and OCR artifacts. Expand abbreviations and numbers into " +
		"spoken form. Preserve the author's wording and paragraph structure. Reply " +
		"with the cleaned text only."

	translationPromptFormat = "You are a literary translator. Translate the text into %s, " +
		"preserving tone, register, and paragraph structure. Reply with the " +
		"translation only."
)

// CleanupExecutor runs AI text cleanup jobs.
type CleanupExecutor struct {
	runner chunkRunner
}

// NewCleanupExecutor builds the cleanup stage executor. Output is written
// next to staged workflow files as <base>.cleaned.txt.
func NewCleanupExecutor(client *Client, stagingDir string, logger *slog.Logger) *CleanupExecutor {
	return &CleanupExecutor{runner: chunkRunner{
		client:     client,
		stagingDir: stagingDir,
		logger:     logging.NewComponentLogger(logger, "cleanup"),
	}}
}

func (e *CleanupExecutor) Start(ctx context.Context, job queue.Job, report stage.ProgressFunc) (stage.Result, error) {
	return e.runner.run(ctx, job, report, "cleanup", "cleaned", cleanupPrompt)
}

func (e *CleanupExecutor) Cancel(ctx context.Context, jobID string) error { return nil }

// TranslationExecutor runs AI translation jobs.
type TranslationExecutor struct {
	runner chunkRunner
}

// NewTranslationExecutor builds the translation stage executor.
func NewTranslationExecutor(client *Client, stagingDir string, logger *slog.Logger) *TranslationExecutor {
	return &TranslationExecutor{runner: chunkRunner{
		client:     client,
		stagingDir: stagingDir,
		logger:     logging.NewComponentLogger(logger, "translation"),
	}}
}

func (e *TranslationExecutor) Start(ctx context.Context, job queue.Job, report stage.ProgressFunc) (stage.Result, error) {
	target := language.Normalize(job.Config.TargetLanguage)
	if target == "" {
		return stage.Result{}, services.Wrap(services.ErrValidation, "translation", "start",
			fmt.Sprintf("unrecognized target language %q", job.Config.TargetLanguage), nil)
	}
	prompt := fmt.Sprintf(translationPromptFormat, language.DisplayName(target))
	suffix := "translated." + target
	return e.runner.run(ctx, job, report, "translation", suffix, prompt)
}

func (e *TranslationExecutor) Cancel(ctx context.Context, jobID string) error { return nil }

// chunkRunner is the shared chunk-by-chunk text transform used by both
// executors.
type chunkRunner struct {
	client     *Client
	stagingDir string
	logger     *slog.Logger
}

func (r chunkRunner) run(ctx context.Context, job queue.Job, report stage.ProgressFunc,
	phase, outputSuffix, systemPrompt string) (stage.Result, error) {

	raw, err := os.ReadFile(job.InputRef)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrNotFound, phase, "read_input",
			fmt.Sprintf("read input %s", job.InputRef), err)
	}

	chunks := splitChunks(string(raw), defaultChunkSize)
	if len(chunks) == 0 {
		return stage.Result{}, services.Wrap(services.ErrValidation, phase, "read_input",
			"input contains no text", nil)
	}

	started := time.Now()
	outputs := make([]string, 0, len(chunks))
	characters := 0
	for i, chunk := range chunks {
		if report != nil {
			report(progress.Envelope{
				Phase:       phase,
				CurrentUnit: i,
				TotalUnits:  len(chunks),
				Message:     fmt.Sprintf("Processing chunk %d of %d", i+1, len(chunks)),
			})
		}
		reply, err := r.client.Complete(ctx, systemPrompt, chunk)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return stage.Result{Stopped: true}, nil
			}
			return stage.Failure(err), nil
		}
		outputs = append(outputs, strings.TrimSpace(reply))
		characters += len(chunk)
		if report != nil {
			report(progress.Envelope{
				Phase:       phase,
				CurrentUnit: i + 1,
				TotalUnits:  len(chunks),
				Message:     fmt.Sprintf("Finished chunk %d of %d", i+1, len(chunks)),
			})
		}
	}

	outputPath := r.outputPath(job.InputRef, outputSuffix)
	if err := fileutil.WriteFileAtomic(outputPath, []byte(strings.Join(outputs, "\n\n")), 0o644); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, phase, "write_output",
			fmt.Sprintf("write output %s", outputPath), err)
	}

	r.logger.Info("text stage finished",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStage, phase),
		logging.Int("chunks", len(chunks)),
		logging.Int("characters", characters),
	)
	return stage.Result{
		Success:    true,
		OutputPath: outputPath,
		Analytics: &stage.Analytics{
			Units:      len(chunks),
			Characters: characters,
			Duration:   time.Since(started),
			Engine:     r.client.model,
		},
	}, nil
}

func (r chunkRunner) outputPath(inputRef, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(inputRef), filepath.Ext(inputRef))
	return filepath.Join(r.stagingDir, base+"."+suffix+".txt")
}
