// Package api provides the HTTP REST API server for rationale.
//
// It exposes the analysis endpoint consumed by the frontend plus
// watchlist profile management and scanning.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/rdx-labs/rationale/internal/config"
	"github.com/rdx-labs/rationale/internal/datasource"
	"github.com/rdx-labs/rationale/internal/profile"
	"github.com/rdx-labs/rationale/internal/relay"
)

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	relay     *relay.Relay
	profiles  *profile.Store
	validator profile.Validator
	log       zerolog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, rly *relay.Relay, profiles *profile.Store, validator profile.Validator, log zerolog.Logger) *Server {
	srv := &Server{
		cfg:       cfg,
		relay:     rly,
		profiles:  profiles,
		validator: validator,
		log:       log.With().Str("component", "api").Logger(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/analyze", s.handleAnalyze)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)
			r.Post("/", s.handleCreateProfile)
			r.Get("/{id}", s.handleGetProfile)
			r.Delete("/{id}", s.handleDeleteProfile)
			r.Post("/{id}/tickers", s.handleUpdateTickers)
			r.Get("/{id}/scan", s.handleScanProfile)
		})

		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateProfileRequest is the body for POST /api/profiles.
type CreateProfileRequest struct {
	Name string `json:"name"`
}

// UpdateTickersRequest is the body for POST /api/profiles/{id}/tickers.
type UpdateTickersRequest struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// ScanResponse is the payload of GET /api/profiles/{id}/scan.
type ScanResponse struct {
	Profile *profile.Profile `json:"profile"`
	Items   []ScanItem       `json:"items"`
	Buys    []string         `json:"buys"`
}

// ScanItem is one ticker's outcome within a scan.
type ScanItem struct {
	Ticker string        `json:"ticker"`
	Result *relay.Result `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": "dev",
		},
	})
}

// handleAnalyze runs the full relay for one ticker.
// GET /api/analyze?ticker=SYMBOL&thesis=...
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(r.URL.Query().Get("ticker"))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	thesis := r.URL.Query().Get("thesis")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	result, err := s.relay.Run(ctx, ticker, thesis)
	if err != nil {
		if errors.Is(err, datasource.ErrEmptyTicker) {
			writeError(w, http.StatusBadRequest, "ticker is required")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    result,
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profiles == nil {
		profiles = []*profile.Profile{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: profiles})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := s.profiles.Create(req.Name)
	if err != nil {
		if errors.Is(err, profile.ErrEmptyName) {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: p})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: p})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}

// handleUpdateTickers adds and/or removes watchlist symbols. Added
// symbols are validated against the market data providers first; an
// unknown symbol rejects the whole request with 422.
func (s *Server) handleUpdateTickers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateTickersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to add or remove")
		return
	}

	var p *profile.Profile
	var err error
	for _, t := range req.Add {
		p, err = s.profiles.AddValidated(r.Context(), id, t, s.validator)
		if err != nil {
			if errors.Is(err, profile.ErrInvalidTicker) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			if errors.Is(err, profile.ErrNotFound) {
				writeError(w, http.StatusNotFound, "profile not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	for _, t := range req.Remove {
		p, err = s.profiles.RemoveTicker(id, t)
		if err != nil {
			if errors.Is(err, profile.ErrNotFound) {
				writeError(w, http.StatusNotFound, "profile not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: p})
}

// handleScanProfile runs the batch analysis over a profile's tickers.
func (s *Server) handleScanProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	batch := s.relay.RunBatch(ctx, p.Tickers, "")
	items := make([]ScanItem, len(batch))
	for i, item := range batch {
		items[i] = ScanItem{Ticker: item.Ticker, Result: item.Result}
		if item.Err != nil {
			items[i].Error = item.Err.Error()
		}
	}

	buys := relay.Buys(batch)
	if buys == nil {
		buys = []string{}
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ScanResponse{Profile: p, Items: items, Buys: buys},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
