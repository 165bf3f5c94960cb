package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bookforge/internal/checkpoint"
	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/persist"
	"bookforge/internal/queue"
	"bookforge/internal/stage"
)

// Notifier receives workflow outcome notifications. Delivery failures are
// logged, never propagated into orchestration.
type Notifier interface {
	WorkflowCompleted(ctx context.Context, title, outputPath string) error
	WorkflowFailed(ctx context.Context, title, reason string) error
}

// Manager is the orchestration core. All state changes funnel through it: the
// scheduler, both completion paths, cancellation, and the watchdog all take
// the manager lock, so effects are applied one at a time in arrival order.
type Manager struct {
	store    *queue.Store
	sessions *checkpoint.Store
	runs     *persist.Store
	notifier Notifier
	cfg      config.Workflow
	logger   *slog.Logger

	mu           sync.Mutex
	executors    map[queue.JobType]stage.Executor
	queueRunning bool
	activeJobID  string
	standalone   map[string]struct{}
	cancels      map[string]context.CancelFunc
	stopIntents  map[string]stopIntent
	baseCtx      context.Context
}

// stopIntent distinguishes a user stop (checkpoint preserved, job expected
// to resume) from a cancel (session discarded, job restarts from scratch).
type stopIntent int

const (
	intentPreserve stopIntent = iota
	intentDiscard
)

// Options wires the manager's collaborators. Runs may be nil when analytics
// persistence is disabled (tests); Sessions may be nil for stages that never
// checkpoint.
type Options struct {
	Store    *queue.Store
	Sessions *checkpoint.Store
	Runs     *persist.Store
	Notifier Notifier
	Config   config.Workflow
	Logger   *slog.Logger
}

// NewManager constructs a manager with no executors registered.
func NewManager(opts Options) *Manager {
	return &Manager{
		store:       opts.Store,
		sessions:    opts.Sessions,
		runs:        opts.Runs,
		notifier:    opts.Notifier,
		cfg:         opts.Config,
		logger:      logging.NewComponentLogger(opts.Logger, "workflow-manager"),
		executors:   make(map[queue.JobType]stage.Executor),
		standalone:  make(map[string]struct{}),
		cancels:     make(map[string]context.CancelFunc),
		stopIntents: make(map[string]stopIntent),
		baseCtx:     context.Background(),
	}
}

// RegisterExecutor binds a stage executor to a job type. Must be called
// before the queue starts; types without an executor fail at start time.
func (m *Manager) RegisterExecutor(jobType queue.JobType, executor stage.Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executors[jobType] = executor
}

// Store exposes the underlying job store for read paths (CLI, status).
func (m *Manager) Store() *queue.Store {
	return m.store
}

// QueueRunning reports whether the scheduler is advancing the queue.
func (m *Manager) QueueRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueRunning
}

// ActiveJobID returns the job currently holding the queue slot, if any.
func (m *Manager) ActiveJobID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeJobID
}

// Snapshot captures the queue state for persistence.
func (m *Manager) Snapshot() persist.Snapshot {
	m.mu.Lock()
	running := m.queueRunning
	m.mu.Unlock()
	return persist.Snapshot{
		Jobs:         m.store.Snapshot(),
		QueueRunning: running,
		SavedAt:      time.Now().UTC(),
	}
}

func (m *Manager) executorFor(jobType queue.JobType) (stage.Executor, bool) {
	executor, ok := m.executors[jobType]
	return executor, ok
}
