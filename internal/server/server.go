// Package server exposes the quality gate over HTTP: trace queries,
// ad-hoc batch evaluation, rule metadata and run summaries. Rule files are
// hot-reloaded, so a running server always evaluates the latest gate.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sieveworks/sieve/internal/rules"
	"github.com/sieveworks/sieve/pkg/core"
)

// Server is the HTTP API server.
type Server struct {
	store       core.Store
	stageFiles  []rules.StageFile
	threshold   core.Severity
	workers     int
	port        int
	watch       bool
	environment string
	logger      *slog.Logger

	gate atomic.Pointer[gate]
}

// gate is the immutable rule-set snapshot requests evaluate against.
// Reloads build a new gate and swap the pointer; in-flight requests keep
// the snapshot they started with.
type gate struct {
	stages []*core.RuleSet
}

// Config holds configuration for the API server.
type Config struct {
	Store               core.Store
	StageFiles          []rules.StageFile
	QuarantineThreshold core.Severity
	Workers             int
	Port                int
	Watch               bool
	Environment         string
	Logger              *slog.Logger
}

// NewServer creates a server and compiles the initial gate.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		store:       cfg.Store,
		stageFiles:  cfg.StageFiles,
		threshold:   cfg.QuarantineThreshold,
		workers:     cfg.Workers,
		port:        cfg.Port,
		watch:       cfg.Watch,
		environment: cfg.Environment,
		logger:      logger,
	}

	stages, err := rules.LoadStages(cfg.StageFiles)
	if err != nil {
		return nil, err
	}
	s.gate.Store(&gate{stages: stages})
	return s, nil
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchRuleFiles(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// routes builds the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/trace/{recordID}", s.handleTrace)
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/rules", s.handleRules)
		r.Get("/runs/latest", s.handleLatestRun)
	})

	return r
}

// currentGate returns the gate snapshot for this request.
func (s *Server) currentGate() *gate {
	return s.gate.Load()
}

// reloadGate recompiles the rule files and swaps the gate. A compile
// failure keeps the previous gate serving.
func (s *Server) reloadGate() {
	stages, err := rules.LoadStages(s.stageFiles)
	if err != nil {
		s.logger.Error("rule reload failed, keeping previous gate", "error", err)
		return
	}
	s.gate.Store(&gate{stages: stages})

	total := 0
	for _, set := range stages {
		total += set.Len()
	}
	s.logger.Info("rules reloaded", "stages", len(stages), "rules", total)
}
