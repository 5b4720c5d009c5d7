package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"pmxfactory/internal/api"
	"pmxfactory/internal/daemon"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/logs"
	"pmxfactory/internal/services"
)

// ServiceName is the RPC service name clients call into.
const ServiceName = "PMXFactory"

const closeGrace = 2 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
// Each accepted connection is served on its own goroutine.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server
	cancel   context.CancelFunc
	done     <-chan struct{}

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer binds the socket at path, replacing any stale file, and
// registers the daemon service. onShutdown, when non-nil, runs after a
// Shutdown call has stopped the daemon.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, onShutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	err := rpcServer.RegisterName(ServiceName, &service{
		daemon:     d,
		journal:    api.NewJournalService(d.Journal()),
		logger:     logger,
		ctx:        serverCtx,
		onShutdown: onShutdown,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	listener, err := listenUnix(path)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Server{
		path:     path,
		logger:   logger,
		listener: listener,
		rpc:      rpcServer,
		cancel:   cancel,
		done:     serverCtx.Done(),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "CLI commands may fail to connect"),
				logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
			)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
		}()
	}
}

func (s *Server) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops accepting and gives open connections closeGrace to finish
// their current call before dropping them, then removes the socket.
func (s *Server) Close() {
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.listener.Close()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(closeGrace):
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		<-drained
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon     *daemon.Daemon
	journal    *api.JournalService
	logger     *slog.Logger
	ctx        context.Context
	onShutdown func()
}

func (s *service) requestContext(id string) context.Context {
	if id = strings.TrimSpace(id); id != "" {
		return services.WithRequestID(s.ctx, id)
	}
	return s.ctx
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	resp.DaemonStatus = s.daemon.Status(s.ctx, req.WithChecks).API()
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("shutdown requested", logging.String(logging.FieldEventType, "daemon_shutdown_requested"))
	s.daemon.Stop()
	resp.Stopped = true
	if s.onShutdown != nil {
		s.onShutdown()
	}
	return nil
}

func (s *service) CreateChannelStrip(req CreateChannelStripRequest, resp *CreateChannelStripResponse) error {
	strip, err := s.daemon.CreateChannelStrip(s.requestContext(req.RequestID), req.Name, req.Kind)
	if err != nil {
		_, body := api.ErrorFrom(err)
		resp.Error = &body
		return nil
	}
	resp.Strip = &strip
	return nil
}

func (s *service) CreateOutputStage(req CreateOutputStageRequest, resp *CreateOutputStageResponse) error {
	stage, err := s.daemon.CreateOutputStage(s.requestContext(req.RequestID), req.Name)
	if err != nil {
		_, body := api.ErrorFrom(err)
		resp.Error = &body
		return nil
	}
	resp.Stage = &stage
	return nil
}

func (s *service) ChannelStrips(_ ChannelStripListRequest, resp *api.ChannelStripListResponse) error {
	strips, err := s.journal.Strips(s.ctx)
	if err != nil {
		return err
	}
	resp.Strips = strips
	return nil
}

func (s *service) OutputStages(_ OutputStageListRequest, resp *api.OutputStageListResponse) error {
	stages, err := s.journal.Stages(s.ctx)
	if err != nil {
		return err
	}
	resp.Stages = stages
	return nil
}

func (s *service) AssemblyList(req AssemblyListRequest, resp *api.AssemblyListResponse) error {
	statuses := api.ParseStatuses(req.Statuses)
	if len(req.Statuses) > 0 && len(statuses) == 0 {
		return fmt.Errorf("no recognised status in %v", req.Statuses)
	}
	entries, err := s.journal.List(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Assemblies = entries
	return nil
}

func (s *service) AssemblyDescribe(req AssemblyDescribeRequest, resp *api.AssemblyResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid assembly id %d", req.ID)
	}
	entry, err := s.journal.Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("assembly %d not found", req.ID)
	}
	resp.Assembly = *entry
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, s.daemon.LogPath(), logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	resp.Offset = result.Offset
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	return nil
}
