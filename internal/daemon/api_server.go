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
	"sync"
	"time"

	"github.com/gorilla/mux"

	"arcam/internal/api"
	"arcam/internal/config"
	"arcam/internal/logging"
)

// maxBodyBytes bounds request bodies; the largest is a catalog listing.
const maxBodyBytes = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	r := mux.NewRouter()
	r.Use(authMiddleware(cfg.Paths.APIToken))
	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	a.HandleFunc("/devices", srv.handleDevices).Methods(http.MethodGet)
	a.HandleFunc("/logs", srv.handleLogs).Methods(http.MethodGet)
	a.HandleFunc("/preference", srv.handleGetPreference).Methods(http.MethodGet)
	a.HandleFunc("/preference", srv.handleSetPreference).Methods(http.MethodPut)
	a.HandleFunc("/preference", srv.handleDeletePreference).Methods(http.MethodDelete)

	a.HandleFunc("/sessions", srv.handleListSessions).Methods(http.MethodGet)
	a.HandleFunc("/sessions", srv.handleOpenSession).Methods(http.MethodPost)
	a.HandleFunc("/sessions/{id}", srv.handleGetSession).Methods(http.MethodGet)
	a.HandleFunc("/sessions/{id}", srv.handleCloseSession).Methods(http.MethodDelete)
	s := a.PathPrefix("/sessions/{id}").Subrouter()
	s.HandleFunc("/catalog", srv.handleCatalog).Methods(http.MethodPost)
	s.HandleFunc("/negotiate", srv.handleNegotiate).Methods(http.MethodPost)
	s.HandleFunc("/events", srv.handleEvent).Methods(http.MethodPost)
	s.HandleFunc("/layout", srv.handleLayout).Methods(http.MethodPost)
	s.HandleFunc("/hint", srv.handleHint).Methods(http.MethodGet)
	s.HandleFunc("/debug", srv.handleDebug).Methods(http.MethodGet)
	s.HandleFunc("/commands", srv.handleCommands).Methods(http.MethodGet)
	s.HandleFunc("/commands/{cmd}/result", srv.handleCommandResult).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	srv.router = r
	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		Local:           status.Local,
		LockFilePath:    status.LockFilePath,
		PreferencePath:  status.PreferencePath,
		PreferredCamera: status.PreferredCamera,
		Sessions:        api.FromSnapshots(status.Sessions),
		Checks:          api.FromChecks(status.Checks),
		Cameras:         status.Cameras.Detail(),
		CamerasDetected: status.Cameras.Detected,
		DroppedEvents:   status.DroppedEvents,
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.hub
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	component := strings.TrimSpace(query.Get("component"))
	sessionID := strings.TrimSpace(query.Get("session"))

	var (
		raw  []logging.LogEvent
		next uint64
	)
	if tail && since == 0 && !follow {
		raw, next = hub.Tail(limit)
	} else {
		var err error
		raw, next, err = hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := raw[:0:0]
	for _, evt := range raw {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if sessionID != "" && evt.SessionID != sessionID {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: api.FromLogEvents(filtered),
		Next:   next,
	})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
