// Package api provides the HTTP API for monitoring the gateway and staging
// inverter firmware uploads.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/pvbus/pvbus/internal/config"
	"github.com/pvbus/pvbus/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxFirmwareSize bounds a firmware upload. The largest images seen so far
// are under 4 MiB.
const maxFirmwareSize = 16 << 20

// StatusProvider exposes the poller state the status endpoint reports.
type StatusProvider interface {
	DeviceStatuses() []scheduler.DeviceStatus
	Metrics() map[string]interface{}
}

// Server represents the HTTP API server.
type Server struct {
	config    *config.Config
	server    *http.Server
	router    *mux.Router
	provider  StatusProvider
	version   string
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *config.Config, provider StatusProvider, version string) *Server {
	apiServer := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		provider:  provider,
		version:   version,
		logger:    log.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}

	apiServer.setupRoutes()
	return apiServer
}

// setupRoutes configures all API endpoint handlers.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/devices", s.handleListDevices).Methods("GET")
	api.HandleFunc("/firmware", s.handleFirmwareUpload).Methods("POST")
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("host", s.config.API.Host).
			Int("port", s.config.API.Port).
			Msg("Starting HTTP API server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	return nil
}

// handleStatus returns gateway status information.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	devices := s.provider.DeviceStatuses()

	status := map[string]interface{}{
		"status":      "ok",
		"version":     s.version,
		"uptime":      time.Since(s.startTime).String(),
		"deviceCount": len(devices),
		"poller":      s.provider.Metrics(),
	}

	s.writeJSON(w, status, http.StatusOK)
}

// handleListDevices returns the availability of every configured device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.provider.DeviceStatuses()

	s.writeJSON(w, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	}, http.StatusOK)
}

// handleFirmwareUpload stages an uploaded firmware image in the configured
// directory. Flashing the inverter is a separate, manual step.
func (s *Server) handleFirmwareUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxFirmwareSize)
	if err := r.ParseMultipartForm(maxFirmwareSize); err != nil {
		s.writeError(w, "Invalid multipart upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("firmware")
	if err != nil {
		s.writeError(w, "Missing firmware file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == "/" || name == "" {
		s.writeError(w, "Invalid firmware filename", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.config.API.FirmwareDir, 0o755); err != nil {
		s.logger.Error().Err(err).Msg("Failed to create firmware directory")
		s.writeError(w, "Cannot stage firmware", http.StatusInternalServerError)
		return
	}

	destPath := filepath.Join(s.config.API.FirmwareDir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		s.logger.Error().Err(err).Str("path", destPath).Msg("Failed to create firmware file")
		s.writeError(w, "Cannot stage firmware", http.StatusInternalServerError)
		return
	}
	defer dest.Close()

	written, err := io.Copy(dest, file)
	if err != nil {
		s.logger.Error().Err(err).Str("path", destPath).Msg("Failed to write firmware file")
		s.writeError(w, "Cannot stage firmware", http.StatusInternalServerError)
		return
	}

	duration := time.Since(start)
	s.logger.Info().
		Str("file", name).
		Int64("bytes", written).
		Dur("duration", duration).
		Msg("Firmware staged")

	s.writeJSON(w, map[string]interface{}{
		"file":     name,
		"bytes":    written,
		"duration": duration.String(),
	}, http.StatusCreated)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
