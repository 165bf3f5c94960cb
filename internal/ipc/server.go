package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/logs"
	"bookforge/internal/persist"
	"bookforge/internal/queue"
	"bookforge/internal/workflow"
)

// Server accepts JSON-RPC connections on a Unix domain socket and forwards
// them to the workflow manager.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. logPath is
// the daemon log file served by the LogTail method; empty disables tailing.
func NewServer(ctx context.Context, path string, manager *workflow.Manager, runs *persist.Store, logPath string, logger *slog.Logger) (*Server, error) {
	if manager == nil {
		return nil, errors.New("ipc server requires a workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{
		manager: manager,
		runs:    runs,
		logPath: logPath,
		logger:  logging.NewComponentLogger(logger, "ipc"),
		ctx:     ctx,
	}
	if err := rpcServer.RegisterName("BookForge", svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:     path,
		logger:   logger,
		listener: listener,
		rpc:      rpcServer,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Serve accepts connections until the context is cancelled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions; restart the daemon if this persists"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpc.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("remove socket",
			logging.Error(err),
			logging.String("socket", s.path),
		)
	}
}

type service struct {
	manager *workflow.Manager
	runs    *persist.Store
	logPath string
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) StartQueue(_ StartQueueRequest, resp *StartQueueResponse) error {
	s.manager.StartQueue(s.ctx)
	resp.Started = true
	return nil
}

func (s *service) StopQueue(_ StopQueueRequest, resp *StopQueueResponse) error {
	s.manager.StopQueue()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.QueueRunning = s.manager.QueueRunning()
	resp.ActiveJobID = s.manager.ActiveJobID()
	stats := s.manager.Store().Stats()
	resp.QueueStats = make(map[string]int, len(stats))
	for status, count := range stats {
		resp.QueueStats[string(status)] = count
	}
	if s.runs != nil {
		resp.DBPath = s.runs.Path()
	}
	resp.PID = os.Getpid()
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		if parsed, ok := queue.ParseStatus(raw); ok {
			statuses = append(statuses, parsed)
		}
	}
	resp.Jobs = s.manager.Store().List(statuses...)
	return nil
}

func (s *service) WorkflowCreate(req WorkflowCreateRequest, resp *WorkflowCreateResponse) error {
	master, err := s.manager.CreateWorkflow(req.Spec)
	if err != nil {
		return err
	}
	s.logger.Info("workflow created via IPC",
		logging.String(logging.FieldEventType, "workflow_created"),
		logging.String(logging.FieldWorkflowID, master.WorkflowID),
	)
	resp.Master = master
	return nil
}

func (s *service) JobAdd(req JobAddRequest, resp *JobAddResponse) error {
	job := req.Job
	job.Standalone = req.Standalone
	if job.Status == "" {
		job.Status = queue.StatusPending
	}
	added, err := s.manager.AddJob(job)
	if err != nil {
		return err
	}
	if req.Standalone {
		if err := s.manager.RunStandalone(s.ctx, added.ID); err != nil {
			return err
		}
	}
	resp.Job = added
	return nil
}

func (s *service) JobStop(req JobIDRequest, resp *JobActionResponse) error {
	if err := s.manager.Stop(s.ctx, req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) JobCancel(req JobIDRequest, resp *JobActionResponse) error {
	if err := s.manager.Cancel(s.ctx, req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) JobResume(req JobIDRequest, resp *JobActionResponse) error {
	if err := s.manager.Resume(req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) JobRetry(req JobIDRequest, resp *JobActionResponse) error {
	if err := s.manager.Retry(req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) JobRun(req JobIDRequest, resp *JobActionResponse) error {
	if err := s.manager.RunStandalone(s.ctx, req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) QueueRemove(req JobIDRequest, resp *QueueRemoveResponse) error {
	removed, err := s.manager.Remove(req.ID)
	if err != nil {
		return err
	}
	resp.Removed = len(removed)
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		if parsed, ok := queue.ParseStatus(raw); ok {
			statuses = append(statuses, parsed)
		}
	}
	if len(statuses) == 0 {
		statuses = []queue.Status{queue.StatusComplete, queue.StatusError}
	}
	removed := 0
	for _, job := range s.manager.Store().List(statuses...) {
		// Children leave with their master; skip ids already removed.
		if _, ok := s.manager.Store().Get(job.ID); !ok {
			continue
		}
		gone, err := s.manager.Remove(job.ID)
		if err != nil {
			continue
		}
		removed += len(gone)
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueReorder(req QueueReorderRequest, resp *QueueReorderResponse) error {
	if err := s.manager.Reorder(req.ID, req.TargetID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) Runs(req RunsRequest, resp *RunsResponse) error {
	if s.runs == nil {
		return nil
	}
	runs, err := s.runs.Runs(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	summaries, err := s.runs.Summaries(s.ctx)
	if err != nil {
		return err
	}
	resp.Runs = runs
	resp.Summaries = summaries
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	if s.logPath == "" {
		return errors.New("daemon is not logging to a file")
	}
	result, err := logs.Tail(s.ctx, s.logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Wait:   time.Duration(req.WaitMillis) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
