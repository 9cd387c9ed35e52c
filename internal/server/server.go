// Package server exposes the expense parsing pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
}

// Server is the HTTP API server. A nil engine means no oracle is configured;
// parse and insight-generation endpoints respond 503 in that case.
type Server struct {
	store      *storage.SQLiteStorage
	engine     *engine.Engine
	httpServer *http.Server
	config     Config

	budgetMu sync.RWMutex
	budgets  map[string]float64
}

// New creates a new API server.
func New(store *storage.SQLiteStorage, eng *engine.Engine, config Config) *Server {
	if config.Addr == "" {
		config = DefaultConfig()
	}
	return &Server{
		store:   store,
		engine:  eng,
		config:  config,
		budgets: make(map[string]float64),
	}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(logMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/parse-expense", s.handleParseExpense)
		r.Get("/expenses", s.handleListExpenses)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Get("/expenses/{id}/allocations", s.handleExpenseAllocations)

		r.Post("/insights", s.handleAnalyzeInsight)
		r.Post("/insights/generate", s.handleGenerateInsight)
		r.Get("/insights", s.handleListInsights)
		r.Delete("/insights/{id}", s.handleDeleteInsight)

		r.Get("/dashboard/stats", s.handleDashboardStats)
		r.Get("/budget", s.handleGetBudget)
		r.Post("/budget", s.handleSetBudget)

		r.Get("/debug/expenses", s.handleDebugExpenses)
	})

	return r
}

// Start runs the server until the context is canceled or a shutdown signal
// arrives, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", s.config.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	oracleStatus := "configured"
	if s.engine == nil {
		oracleStatus = "not configured"
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"oracle": oracleStatus,
	})
}
