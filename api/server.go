// Package api provides the HTTP API server for IBEX AI.
//
// It exposes the assistant (chat and report modes), report download,
// portfolio management, the profitability table, per-instrument analysis
// with charts, the email digest, health and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
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
	"github.com/rs/zerolog/log"

	"github.com/seenimoa/ibexai/internal/app"
	"github.com/seenimoa/ibexai/internal/config"
	"github.com/seenimoa/ibexai/internal/infra"
	"github.com/seenimoa/ibexai/internal/llm"
	"github.com/seenimoa/ibexai/pkg/utils"
	"github.com/seenimoa/ibexai/web"
)

// Version is reported by /health. Set by the CLI at startup.
var Version = "dev"

const defaultCookieName = "ibexai_session"

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	app      *app.App
	logger   zerolog.Logger
	analyses *infra.Cache
	serveUI  bool // when true, serve the embedded assistant page at /
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(a *app.App) *Server {
	ttl := a.Config.Market.SnapshotTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	srv := &Server{
		cfg:      a.Config,
		app:      a,
		logger:   a.Logger.With().Str("component", "api").Logger(),
		analyses: infra.NewCache(ttl),
		serveUI:  true,
	}
	srv.router = srv.buildRouter()
	return srv
}

// SetServeUI controls whether the embedded assistant page is served.
// Must be called before ListenAndServe.
func (s *Server) SetServeUI(enabled bool) {
	s.serveUI = enabled
	s.router = s.buildRouter()
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
		WriteTimeout: s.requestTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-done:
	}
	s.logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.API.RequestTimeoutSec > 0 {
		return time.Duration(s.cfg.API.RequestTimeoutSec) * time.Second
	}
	return 180 * time.Second
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.app.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.sessionCookie)

		// Assistant
		r.Get("/assistant", s.handleAssistantState)
		r.Post("/assistant", s.handleAssistant)

		// Report
		r.Get("/report/download", s.handleReportDownload)
		r.Delete("/report", s.handleReportClear)

		// Portfolio
		r.Get("/portfolio", s.handleGetPortfolio)
		r.Put("/portfolio", s.handlePutPortfolio)

		// Market data
		r.Get("/market/summary", s.handleMarketSummary)
		r.Get("/profitability", s.handleProfitability)
		r.Get("/analysis/{symbol}", s.handleAnalysis)
		r.Get("/analysis/{symbol}/chart/{kind}", s.handleAnalysisChart)

		// Daily digest
		r.Post("/digest", s.handleDigest)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	if s.serveUI {
		s.mountUI(r, web.FS())
	}

	return r
}

// requestLogger logs every request through zerolog and records it in the
// HTTP metrics under its route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		took := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		s.app.Metrics.ObserveHTTP(r.Method, route, status, took)

		ev := s.logger.Info()
		if status >= http.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", took).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// mountUI serves the embedded assistant page. Unknown paths fall back to
// index.html.
func (s *Server) mountUI(r chi.Router, uiFS fs.FS) {
	fileServer := http.FileServerFS(uiFS)

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rPath := strings.TrimPrefix(r.URL.Path, "/")
		if rPath == "" || rPath == "index.html" {
			serveIndexHTML(w, uiFS)
			return
		}

		f, err := uiFS.Open(rPath)
		if err != nil {
			serveIndexHTML(w, uiFS)
			return
		}
		f.Close()

		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}

// serveIndexHTML reads and serves the embedded index.html.
func serveIndexHTML(w http.ResponseWriter, uiFS fs.FS) {
	data, err := fs.ReadFile(uiFS, "index.html")
	if err != nil {
		http.Error(w, "web UI not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// ============================================================
// Response envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := utils.NowMadrid()
	data := map[string]interface{}{
		"status":        "ok",
		"version":       Version,
		"market_status": utils.MarketStatus(now),
		"time_madrid":   utils.FormatDateTime(now),
		"data_source":   s.app.Source.Name(),
		"llm":           s.app.LLM.Name(),
	}
	if snap := s.app.Market.Current(); snap != nil {
		data["snapshot_fetched_at"] = snap.FetchedAt
		data["snapshot_failures"] = snap.Failures()
	}
	// ?llm=1 pings every configured backend
	if formBool(r.URL.Query().Get("llm")) {
		providers := make(map[string]string)
		for name, err := range llm.ProviderHealth(r.Context(), s.app.LLM) {
			providers[name] = "ok"
			if err != nil {
				providers[name] = err.Error()
			}
		}
		data["llm_providers"] = providers
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
