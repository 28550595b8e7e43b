// Package ws is the external surface: session control over HTTP plus
// the streaming gateway that relays each session's event bus to
// connected clients over websocket or SSE.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/intercept/backend/internal/capture"
	"github.com/intercept/backend/internal/config"
	"github.com/intercept/backend/internal/hardware"
	"github.com/intercept/backend/internal/proc"
	"github.com/intercept/backend/internal/registry"
)

type Server struct {
	cfg            *config.Config
	registry       *registry.Registry
	devices        hardware.DeviceLister
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(cfg *config.Config, reg *registry.Registry, devices hardware.DeviceLister) *Server {
	s := &Server{
		cfg:            cfg,
		registry:       reg,
		devices:        devices,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.Server.AuthToken,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/api/", s.handleCaptureRoutes)
	mux.HandleFunc("/ws/", s.handleWS)
}

// Handler returns the full route set wrapped in the security-header
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// handleCaptureRoutes dispatches /api/{capability}/{action}.
func (s *Server) handleCaptureRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	cap, ok := capture.ParseCapability(parts[0])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_capability", fmt.Sprintf("unknown capability %q", parts[0]))
		return
	}

	switch parts[1] {
	case "start":
		s.handleStart(w, r, cap)
	case "stop":
		s.handleStop(w, r, cap)
	case "status":
		s.handleStatus(w, r, cap)
	case "frequency":
		s.handleFrequency(w, r, cap)
	case "stream":
		s.handleSSE(w, r, cap)
	case "bands":
		s.handleBands(w, r, cap)
	default:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, cap capture.Capability) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var params registry.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	res, err := s.registry.Start(cap, params)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Status: "started", StartResult: res})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, cap capture.Capability) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	if err := s.registry.Stop(cap); err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, cap capture.Capability) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Status(cap))
}

func (s *Server) handleFrequency(w http.ResponseWriter, r *http.Request, cap capture.Capability) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req struct {
		FrequencyMHz float64 `json:"frequencyMhz"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	res, err := s.registry.SetFrequency(cap, req.FrequencyMHz)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Status: "restarted", StartResult: res})
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request, cap capture.Capability) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	// Band presets only make sense for the SDR capabilities.
	if cap != capture.Sensor && cap != capture.Pager {
		writeError(w, http.StatusNotFound, "not_found", "no bands for this capability")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"bands":  registry.Bands(),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sdr":       s.devices.Devices(capture.SDR),
		"wifi":      s.devices.Devices(capture.WifiAdapter),
		"bluetooth": s.devices.Devices(capture.BtController),
	})
}

type startResponse struct {
	Status string `json:"status"`
	registry.StartResult
}

type errorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, errorResponse{Status: "error", Kind: kind, Message: message})
}

// writeRegistryError maps the registry's error taxonomy onto HTTP so
// every failed control operation reports a specific kind.
func writeRegistryError(w http.ResponseWriter, err error) {
	var vErr *registry.ValidationError
	var spawnErr *proc.SpawnError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, registry.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "already_running", err.Error())
	case errors.Is(err, registry.ErrResourceBusy):
		writeError(w, http.StatusConflict, "resource_busy", err.Error())
	case errors.Is(err, registry.ErrNotRunning):
		writeError(w, http.StatusConflict, "not_running", err.Error())
	case errors.As(err, &spawnErr):
		writeError(w, http.StatusBadGateway, "spawn_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	if r.Header.Get("X-Intercept-Token") == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}
	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}
	return false
}

func ListenAndServe(host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, handler)
}
