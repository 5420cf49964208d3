// Package server provides the HTTP server for the Mudra dashboard.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/display"
	"github.com/ayusman/mudra/internal/feedback"
	"github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/server/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Per-client request limits for the mutating endpoints.
const (
	detectionLimit = 30
	rescanLimit    = 5
	limitWindow    = time.Minute
)

// Config holds the server configuration. Routes whose collaborator is nil
// are not registered.
type Config struct {
	StaticDir string
	AssetsDir string
	Assets    *feedback.Assets
	Frames    *capture.FrameBuffer
	Display   *display.Hub
	Detector  api.Detector
	Logger    logrus.FieldLogger
}

// Server represents the HTTP server for the Mudra application.
type Server struct {
	config Config
	router *mux.Router
	logger logrus.FieldLogger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		logger: logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	var disp api.Display
	if s.config.Display != nil {
		disp = s.config.Display
	}
	status := api.NewStatusHandler(s.config.Detector, disp)
	r.HandleFunc("/api/status", status.Status).Methods(http.MethodGet)
	r.Handle("/api/detection", limited(detectionLimit, status.SetDetection)).Methods(http.MethodPut)

	if s.config.Display != nil {
		r.Handle("/api/display", s.config.Display)
	}

	if s.config.Frames != nil {
		r.Handle("/api/stream", NewStreamHandler(s.config.Frames, 0)).Methods(http.MethodGet)
	}

	if s.config.Assets != nil {
		assets := api.NewAssetsHandler(s.config.Assets)
		r.HandleFunc("/api/assets", assets.List).Methods(http.MethodGet)
		r.Handle("/api/assets/rescan", limited(rescanLimit, assets.Rescan)).Methods(http.MethodPost)
	}

	if s.config.AssetsDir != "" {
		fs := http.FileServer(http.Dir(s.config.AssetsDir))
		r.PathPrefix(feedback.URLPrefix).Handler(http.StripPrefix(feedback.URLPrefix, fs))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		r.PathPrefix("/").Handler(fs)
	}
}

// limited wraps handle in its own per-IP rate limiter, so each endpoint
// keeps a separate budget.
func limited(requestLimit int, handle http.HandlerFunc) http.Handler {
	return httprate.Limit(requestLimit, limitWindow, httprate.WithKeyFuncs(httprate.KeyByIP))(handle)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
