package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiolibrelab/soundcheck/internal/analysis"
	"github.com/audiolibrelab/soundcheck/internal/audio"
	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/picker"
	"github.com/audiolibrelab/soundcheck/internal/render"
	"github.com/audiolibrelab/soundcheck/internal/screen"
)

// Server exposes the screen over HTTP so it can be driven from a phone on the same network
type Server struct {
	screen   *screen.Screen
	backend  audio.Backend
	cfg      *config.Config
	port     string
	chart    render.Chart
	upgrader websocket.Upgrader

	// processCtx outlives requests; uploads started over HTTP run in the background
	processCtx context.Context
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	screen.Snapshot
	Backend    string `json:"backend"`
	ProcessURL string `json:"process_url"`
	View       string `json:"view"`
}

// SourcesResponse represents the JSON response for sources endpoint
type SourcesResponse struct {
	Backend string   `json:"backend"`
	Sources []string `json:"sources"`
}

// GenericResponse is the envelope for all action endpoints
type GenericResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
	Selection *screen.Selection `json:"selection,omitempty"`
}

// New creates a new web server instance
func New(cfg *config.Config, scr *screen.Screen, backend audio.Backend, port string) *Server {
	if port == "" {
		port = cfg.Server.Port
	}
	return &Server{
		screen:     scr,
		backend:    backend,
		cfg:        cfg,
		port:       port,
		chart:      render.DefaultChart(),
		processCtx: context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the UI is served from this same process but phones may reach it by IP
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routing table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/sources", s.handleSources)
	mux.HandleFunc("/record/start", s.handleStartRecording)
	mux.HandleFunc("/record/stop", s.handleStopRecording)
	mux.HandleFunc("/select", s.handleSelect)
	mux.HandleFunc("/play", s.handlePlay)
	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.processCtx = ctx

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting SoundCheck Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down web server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(GenericResponse{Success: false, Error: "Method not allowed"})
	return false
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleIndex serves the main web UI
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, indexHTML(s.cfg.Recording.LongPressDelay))
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

func (s *Server) statusResponse(snap screen.Snapshot) StatusResponse {
	backend := ""
	if s.backend != nil {
		backend = string(s.backend.GetType())
	}
	return StatusResponse{
		Snapshot:   snap,
		Backend:    backend,
		ProcessURL: s.cfg.ProcessURL(),
		View:       ansiEscape.ReplaceAllString(render.View(snap, s.chart), ""),
	}
}

// handleStatus returns the current screen state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.statusResponse(s.screen.Snapshot()))
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	sources, err := s.backend.ListSources()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list sources: %v", err), "operation", "list_sources")
		return
	}
	if sources == nil {
		sources = []string{}
	}
	s.sendJSON(w, http.StatusOK, SourcesResponse{Backend: string(s.backend.GetType()), Sources: sources})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.screen.StartRecording(r.Context()); err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "operation", "start_recording")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording started"})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	sel, err := s.screen.StopRecording(r.Context())
	if err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "operation", "stop_recording")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Recording stopped", Selection: sel})
}

// handleSelect accepts a multipart "file" upload and makes it the selection
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	// 32MB held in memory, the rest spills to disk
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse multipart form", "error", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// an empty submission is the web equivalent of cancelling the picker
		s.screen.SelectWith(r.Context(), &picker.PathPicker{})
		s.sendErrorResponse(w, http.StatusBadRequest, screen.NoFileMessage, "operation", "select")
		return
	}
	defer file.Close()

	name := picker.DisplayName(header.Filename)
	if !picker.IsAudio(name, s.cfg.Picker.Extensions) {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported audio file: %s", name), "file", name)
		return
	}

	picked, err := picker.CopyReaderToCache(s.cfg.Picker.CacheDirectory, file, name)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, err.Error(), "operation", "select")
		return
	}

	sel := s.screen.Select(picked.URI, picked.Name)
	slog.Info("File uploaded and selected", "name", sel.FileName, "uri", sel.URI)
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "File selected", Selection: sel})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.screen.Play(r.Context()); err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "operation", "play")
		return
	}
	s.sendJSON(w, http.StatusOK, GenericResponse{Success: true, Message: "Playing"})
}

// handleProcess starts an upload in the background; progress is visible via /status and /ws
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.screen.ProcessAsync(s.processCtx); err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "operation", "process")
		return
	}

	s.sendJSON(w, http.StatusAccepted, GenericResponse{Success: true, Message: "Processing started"})
}

// handleWebSocket pushes a status message on every screen change
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.screen.Subscribe()
	defer unsubscribe()

	// the client never sends anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.statusResponse(s.screen.Snapshot())); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "screen closed"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(s.statusResponse(snap)); err != nil {
				slog.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}

// statusFor maps screen errors to HTTP status codes
func statusFor(err error) int {
	var statusErr *analysis.StatusError
	switch {
	case errors.Is(err, screen.ErrNoSelection):
		return http.StatusBadRequest
	case errors.Is(err, screen.ErrBusy),
		errors.Is(err, screen.ErrNotRecording),
		errors.Is(err, audio.ErrAlreadyRecording):
		return http.StatusConflict
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	s.sendJSON(w, statusCode, GenericResponse{Success: false, Error: errorMsg})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
