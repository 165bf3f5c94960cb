// Package daemonrun wires the daemon process: logging, the single-instance
// lock, queue restore, executor registration, the IPC server, and the
// snapshot flush loop.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"bookforge/internal/checkpoint"
	"bookforge/internal/config"
	"bookforge/internal/deps"
	"bookforge/internal/ipc"
	"bookforge/internal/logging"
	"bookforge/internal/notifications"
	"bookforge/internal/persist"
	"bookforge/internal/queue"
	"bookforge/internal/resume"
	"bookforge/internal/services/audio"
	"bookforge/internal/services/textai"
	"bookforge/internal/services/tts"
	"bookforge/internal/services/video"
	"bookforge/internal/workflow"
)

// Options configures daemon runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the daemon loop and blocks until the context is cancelled or a
// termination signal arrives. The queue itself is not auto-started: after a
// restart the user explicitly resumes processing.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("bookforge-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update bookforge.log link: %v\n", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "bookforge.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another daemon is already running (lock held at %s)", lock.Path())
	}
	defer lock.Unlock()

	store, err := persist.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue database: %w", err)
	}
	defer store.Close()

	jobs := queue.NewStore()
	if snapshot, loadErr := store.LoadSnapshot(signalCtx); loadErr != nil {
		logger.Warn("load queue snapshot",
			logging.Error(loadErr),
			logging.String(logging.FieldErrorHint, "starting with an empty queue"),
		)
	} else if snapshot != nil {
		demoted := jobs.Restore(snapshot.Jobs)
		logger.Info("queue restored",
			logging.String(logging.FieldEventType, "queue_restored"),
			logging.Int("jobs", len(snapshot.Jobs)),
			logging.Int("interrupted", demoted),
		)
	}

	sessions := checkpoint.NewStore(cfg.Paths.SessionsDir)
	manager := workflow.NewManager(workflow.Options{
		Store:    jobs,
		Sessions: sessions,
		Runs:     store,
		Notifier: notifications.NewService(cfg.Notifications),
		Config:   cfg.Workflow,
		Logger:   logger,
	})
	registerExecutors(manager, cfg, sessions, logger)
	warnMissingTools(cfg, logger)

	socketPath := SocketPath(cfg)
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, manager, store, logPath, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	go manager.RunWatchdog(signalCtx)
	go flushSnapshots(signalCtx, cfg, manager, store, logger)

	logger.Info("daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", socketPath),
		logging.String("db", store.Path()),
	)

	<-signalCtx.Done()
	logger.Info("daemon shutting down")

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := store.SaveSnapshot(flushCtx, manager.Snapshot()); err != nil {
		logger.Error("final snapshot flush", logging.Error(err))
	}
	return nil
}

// SocketPath returns the daemon control socket location for a config.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "bookforge.sock")
}

func registerExecutors(manager *workflow.Manager, cfg *config.Config, sessions *checkpoint.Store, logger *slog.Logger) {
	aiClient, err := textai.NewClient(cfg.AI, logger)
	if err != nil {
		logger.Warn("text AI unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "cleanup and translation jobs will fail to start"),
			logging.String(logging.FieldErrorHint, "set ai.api_key or BOOKFORGE_AI_API_KEY"),
		)
	} else {
		manager.RegisterExecutor(queue.TypeCleanup,
			textai.NewCleanupExecutor(aiClient, cfg.Paths.StagingDir, logger))
		manager.RegisterExecutor(queue.TypeTranslation,
			textai.NewTranslationExecutor(aiClient, cfg.Paths.StagingDir, logger))
	}

	resumes := resume.NewCoordinator(sessions, logger)
	manager.RegisterExecutor(queue.TypeSynthesis,
		tts.NewExecutor(cfg.TTS, sessions, resumes, logger))
	manager.RegisterExecutor(queue.TypeAudioAssembly,
		audio.NewExecutor(cfg.Audio, cfg.Paths.OutputDir, logger))
	manager.RegisterExecutor(queue.TypeEnhancement,
		audio.NewEnhancementExecutor(cfg.Audio, logger))
	manager.RegisterExecutor(queue.TypeVideoAssembly,
		video.NewExecutor(cfg.Audio, cfg.Paths.OutputDir, logger))
}

// warnMissingTools logs required external binaries that cannot be resolved.
// The daemon still starts; the affected stages fail when they run.
func warnMissingTools(cfg *config.Config, logger *slog.Logger) {
	statuses := deps.CheckBinaries(deps.ForConfig(cfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logger.Warn("required tools missing",
			logging.String("tools", strings.Join(missing, ", ")),
			logging.String(logging.FieldErrorHint, "run 'bookforge doctor' for details"),
		)
	}
}

// flushSnapshots persists the queue on a timer so a crash loses at most one
// interval of state.
func flushSnapshots(ctx context.Context, cfg *config.Config, manager *workflow.Manager, store *persist.Store, logger *slog.Logger) {
	interval := time.Duration(cfg.Workflow.SnapshotFlushInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.SaveSnapshot(ctx, manager.Snapshot()); err != nil {
				logger.Warn("snapshot flush", logging.Error(err))
			}
		}
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "bookforge.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
