package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pmxfactory/internal/api"
	"pmxfactory/internal/config"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/services"
)

const maxRequestBody = 64 << 10

type apiServer struct {
	bind       string
	logger     *slog.Logger
	daemon     *Daemon
	journalSvc *api.JournalService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		journalSvc: api.NewJournalService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.requireToken(token, s.handleStatus))
	mux.HandleFunc("/api/channel-strips", s.requireToken(token, s.handleChannelStrips))
	mux.HandleFunc("/api/output-stages", s.requireToken(token, s.handleOutputStages))
	mux.HandleFunc("/api/assemblies", s.requireToken(token, s.handleAssemblies))
	mux.HandleFunc("/api/assemblies/", s.requireToken(token, s.handleAssembly))
	if s.daemon.metrics != nil {
		mux.Handle("/metrics", s.daemon.metrics.Handler())
	}
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	withChecks := r.URL.Query().Get("checks") != "0"
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context(), withChecks).API())
}

func (s *apiServer) handleChannelStrips(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		strips, err := s.journalSvc.Strips(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ChannelStripListResponse{Strips: strips})
	case http.MethodPost:
		var req api.CreateChannelStripRequest
		if !s.decode(w, r, &req) {
			return
		}
		strip, err := s.daemon.CreateChannelStrip(requestContext(r), req.Name, req.Kind)
		if err != nil {
			s.writeOperationError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.ChannelStripResponse{Strip: strip})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleOutputStages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stages, err := s.journalSvc.Stages(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.OutputStageListResponse{Stages: stages})
	case http.MethodPost:
		var req api.CreateOutputStageRequest
		if !s.decode(w, r, &req) {
			return
		}
		stage, err := s.daemon.CreateOutputStage(requestContext(r), req.Name)
		if err != nil {
			s.writeOperationError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.OutputStageResponse{Stage: stage})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleAssemblies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var raw []string
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				raw = append(raw, trimmed)
			}
		}
	}
	statuses := api.ParseStatuses(raw)
	if len(raw) > 0 && len(statuses) == 0 {
		s.writeError(w, http.StatusBadRequest, "no recognised status filter")
		return
	}

	entries, err := s.journalSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssemblyListResponse{Assemblies: entries})
}

func (s *apiServer) handleAssembly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/assemblies/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "assembly not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid assembly id")
		return
	}
	entry, err := s.journalSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		s.writeError(w, http.StatusNotFound, "assembly not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssemblyResponse{Assembly: *entry})
}

// requestContext carries an inbound X-Request-ID into the assembly.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		ctx = services.WithRequestID(ctx, id)
	}
	return ctx
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	body := io.LimitReader(r.Body, maxRequestBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// API converts the status into its transport form.
func (status Status) API() api.DaemonStatus {
	return api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LockFilePath:  status.LockFilePath,
		SocketPath:    status.SocketPath,
		JournalDriver: status.JournalDriver,
		JournalSource: status.JournalSource,
		Factory:       api.FromSnapshot(status.Factory),
		AssemblyStats: api.MergeAssemblyStats(status.AssemblyStats),
		Checks:        api.FromChecks(status.Checks),
	}
}

func (s *apiServer) writeOperationError(w http.ResponseWriter, err error) {
	code, body := api.ErrorFrom(err)
	if code >= http.StatusInternalServerError {
		s.log().Warn("api request failed",
			logging.Error(err),
			logging.Int("status", code),
			logging.String(logging.FieldEventType, "api_request_failed"),
		)
	}
	s.writeJSON(w, code, body)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
