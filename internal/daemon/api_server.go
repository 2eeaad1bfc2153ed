package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"deckhand/internal/config"
	"deckhand/internal/deck"
	"deckhand/internal/hyperdeck"
	"deckhand/internal/logging"
	"deckhand/internal/session"
)

const maxActionBody = 64 << 10

// ClipsResponse is the body of GET /api/clips.
type ClipsResponse struct {
	Slot  int         `json:"slot"`
	Clips []deck.Clip `json:"clips"`
}

// ActionResponse is the body of POST /api/actions.
type ActionResponse struct {
	Result session.Result `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// ModeRequest is the body of POST /api/timecode/mode.
type ModeRequest struct {
	Mode           string `json:"mode"`
	PollIntervalMS int    `json:"poll_interval_ms,omitempty"`
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
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
		bind:   bind,
		logger: logger,
		daemon: d,
	}
	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/clips", authMiddleware(token, srv.handleClips))
	mux.HandleFunc("/api/variables", authMiddleware(token, srv.handleVariables))
	mux.HandleFunc("/api/actions", authMiddleware(token, srv.handleAction))
	mux.HandleFunc("/api/timecode/mode", authMiddleware(token, srv.handleMode))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleClips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slot := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("slot")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid slot")
			return
		}
		slot = parsed
	}
	if slot == 0 {
		slot = s.daemon.Session().Transport().SlotID
	}
	clips := s.daemon.Clips(slot)
	if clips == nil {
		clips = []deck.Clip{}
	}
	s.writeJSON(w, http.StatusOK, ClipsResponse{Slot: slot, Clips: clips})
}

func (s *apiServer) handleVariables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Variables())
}

func (s *apiServer) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var action session.Action
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&action); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid action: %v", err))
		return
	}
	res, err := s.daemon.IssueCommand(r.Context(), action)
	if err != nil {
		s.writeJSON(w, actionStatus(err), ActionResponse{Result: res, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, ActionResponse{Result: res})
}

func (s *apiServer) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ModeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	interval := time.Duration(req.PollIntervalMS) * time.Millisecond
	if err := s.daemon.SetTimecodeMode(r.Context(), req.Mode, interval); err != nil {
		s.writeError(w, actionStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status().Session)
}

// actionStatus maps an action failure onto an HTTP status code.
func actionStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected), errors.Is(err, hyperdeck.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, hyperdeck.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, hyperdeck.ErrCommand):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
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
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
