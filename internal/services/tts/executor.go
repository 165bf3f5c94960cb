package tts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"bookforge/internal/checkpoint"
	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/progress"
	"bookforge/internal/queue"
	"bookforge/internal/resume"
	"bookforge/internal/services"
	"bookforge/internal/stage"
)

const (
	scannerBufferSize = 1 << 20
	stderrTailLines   = 20
)

// Executor runs synthesis jobs by spawning the helper binary and streaming
// its JSON-lines output.
type Executor struct {
	cfg      config.TTS
	sessions *checkpoint.Store
	resumes  *resume.Coordinator
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewExecutor builds the synthesis stage executor.
func NewExecutor(cfg config.TTS, sessions *checkpoint.Store, resumes *resume.Coordinator, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:      cfg,
		sessions: sessions,
		resumes:  resumes,
		logger:   logging.NewComponentLogger(logger, "tts"),
		running:  make(map[string]context.CancelFunc),
	}
}

// Start synthesizes a job's text. The decision whether to resume a prior
// session is made here, immediately before the subprocess launches.
func (e *Executor) Start(ctx context.Context, job queue.Job, report stage.ProgressFunc) (stage.Result, error) {
	decision, err := e.resumes.Decide(job)
	if err != nil {
		return stage.Result{}, err
	}

	runCtx, cancel := e.runContext(ctx)
	defer cancel()
	e.track(job.ID, cancel)
	defer e.untrack(job.ID)

	args := e.buildArgs(job, decision)
	cmd := exec.CommandContext(runCtx, e.cfg.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "tts", "start",
			"open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "tts", "start",
			"open stderr pipe", err)
	}

	e.logger.Info("starting synthesis",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("binary", e.cfg.Binary),
		logging.Bool("resume", decision.Resume),
		logging.Int("completed_units", decision.CompletedUnits),
	)
	if err := cmd.Start(); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "tts", "start",
			fmt.Sprintf("launch %s", e.cfg.Binary), err)
	}

	var tail stderrTail
	go tail.consume(stderr)

	identity := checkpoint.Identity(job.InputRef, job.Config.Voice)
	state := runState{
		sessionID:      decision.SessionID,
		sessionDir:     decision.SessionDir,
		completedUnits: decision.CompletedUnits,
		totalUnits:     decision.TotalUnits,
	}
	started := time.Now()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)
	for scanner.Scan() {
		event, decodeErr := decodeEvent(scanner.Text())
		if decodeErr != nil {
			e.logger.Warn("unparseable synthesis event", logging.Error(decodeErr))
			continue
		}
		if event == nil {
			continue
		}
		e.applyEvent(event, &state, identity, report)
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if runCtx.Err() != nil {
		// A hit deadline is a failure; only an outside cancellation (stop,
		// shutdown) counts as stopped. The session survives either way so a
		// retry can resume.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return stage.Result{
				ErrorMessage: fmt.Sprintf("synthesis timed out after %ds", e.cfg.TimeoutSeconds),
				Session:      state.sessionInfo(identity),
			}, nil
		}
		return stage.Result{Stopped: true, Session: state.sessionInfo(identity)}, nil
	}
	if scanErr != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, "tts", "start",
			"read synthesis output", scanErr)
	}
	if waitErr != nil {
		message := state.errorMessage
		if message == "" {
			message = tail.String()
		}
		if message == "" {
			message = waitErr.Error()
		}
		return stage.Result{
			ErrorMessage: services.Message(services.Wrap(services.ErrExternalTool, "tts", "synthesize", message, nil)),
			Session:      state.sessionInfo(identity),
		}, nil
	}
	if state.outputDir == "" {
		return stage.Result{
			ErrorMessage: "synthesis helper exited without reporting output",
			Session:      state.sessionInfo(identity),
		}, nil
	}

	if err := e.sessions.Save(checkpoint.Session{
		SessionID:      state.sessionID,
		InputIdentity:  identity,
		CompletedUnits: state.completedUnits,
		TotalUnits:     state.totalUnits,
		Complete:       true,
	}); err != nil {
		e.logger.Warn("finalize session failed", logging.Error(err))
	}

	info := state.sessionInfo(identity)
	info.Complete = true
	return stage.Result{
		Success:    true,
		OutputPath: state.outputDir,
		Session:    info,
		Analytics: &stage.Analytics{
			Units:    state.completedUnits,
			Duration: time.Since(started),
			Engine:   e.cfg.Binary,
		},
	}, nil
}

// runContext applies the configured subprocess deadline when one is set.
func (e *Executor) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.TimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(e.cfg.TimeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}

// Cancel stops the subprocess for a running job, if any.
func (e *Executor) Cancel(ctx context.Context, jobID string) error {
	e.mu.Lock()
	cancel, ok := e.running[jobID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (e *Executor) buildArgs(job queue.Job, decision resume.Decision) []string {
	workers := job.Config.Workers
	if workers <= 0 {
		workers = e.cfg.Workers
	}
	voice := job.Config.Voice
	if voice == "" {
		voice = e.cfg.DefaultVoice
	}
	lang := job.Config.Language
	if lang == "" {
		lang = e.cfg.DefaultLanguage
	}
	args := []string{
		"synthesize",
		"--input", job.InputRef,
		"--voice", voice,
		"--language", lang,
		"--workers", strconv.Itoa(workers),
		"--session-dir", decision.SessionDir,
		"--progress-json",
	}
	if decision.Resume {
		args = append(args, "--resume-from", strconv.Itoa(decision.CompletedUnits))
	}
	return args
}

func (e *Executor) applyEvent(event *Event, state *runState, identity string, report stage.ProgressFunc) {
	switch event.Type {
	case eventStarted:
		if event.TotalUnits > 0 {
			state.totalUnits = event.TotalUnits
		}
		if event.SessionID != "" {
			state.sessionID = event.SessionID
		}
		e.saveSession(state, identity)
		e.report(report, progress.Envelope{
			Phase:          "synthesis",
			CompletedUnits: state.completedUnits,
			TotalUnits:     state.totalUnits,
			Message:        "Synthesis started",
		})
	case eventUnitComplete:
		if event.CompletedUnits > state.completedUnits {
			state.completedUnits = event.CompletedUnits
		}
		if event.TotalUnits > 0 {
			state.totalUnits = event.TotalUnits
		}
		e.saveSession(state, identity)
		e.report(report, progress.Envelope{
			Phase:          "synthesis",
			CompletedUnits: state.completedUnits,
			TotalUnits:     state.totalUnits,
			ActiveWorkers:  event.ActiveWorkers,
			Workers:        workerStates(event.Workers),
			Message:        event.Message,
		})
	case eventPhase:
		e.report(report, progress.Envelope{
			Phase:          event.Phase,
			CompletedUnits: state.completedUnits,
			TotalUnits:     state.totalUnits,
			PhasePercent:   event.Percent,
			Message:        event.Message,
		})
	case eventCompleted:
		state.outputDir = event.OutputDir
	case eventError:
		state.errorMessage = event.Message
	}
}

func (e *Executor) saveSession(state *runState, identity string) {
	err := e.sessions.Save(checkpoint.Session{
		SessionID:         state.sessionID,
		InputIdentity:     identity,
		CompletedUnits:    state.completedUnits,
		TotalUnits:        state.totalUnits,
		PartialOutputDirs: []string{state.sessionDir},
	})
	if err != nil {
		e.logger.Warn("save session checkpoint failed", logging.Error(err))
	}
}

func (e *Executor) report(report stage.ProgressFunc, env progress.Envelope) {
	if report != nil {
		report(env)
	}
}

func (e *Executor) track(jobID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.running[jobID] = cancel
	e.mu.Unlock()
}

func (e *Executor) untrack(jobID string) {
	e.mu.Lock()
	delete(e.running, jobID)
	e.mu.Unlock()
}

type runState struct {
	sessionID      string
	sessionDir     string
	completedUnits int
	totalUnits     int
	outputDir      string
	errorMessage   string
}

func (s *runState) sessionInfo(identity string) *stage.SessionInfo {
	return &stage.SessionInfo{
		InputIdentity: identity,
		SessionID:     s.sessionID,
		SessionDir:    s.sessionDir,
	}
}

func workerStates(events []WorkerEvent) []progress.WorkerState {
	if len(events) == 0 {
		return nil
	}
	workers := make([]progress.WorkerState, 0, len(events))
	for _, w := range events {
		workers = append(workers, progress.WorkerState{Worker: w.Worker, Unit: w.Unit, Phase: w.Phase})
	}
	return workers
}

type stderrTail struct {
	mu    sync.Mutex
	lines []string
}

func (t *stderrTail) consume(r interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		t.mu.Lock()
		t.lines = append(t.lines, line)
		if len(t.lines) > stderrTailLines {
			t.lines = t.lines[len(t.lines)-stderrTailLines:]
		}
		t.mu.Unlock()
	}
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
