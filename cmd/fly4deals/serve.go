package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/fly4deals/internal/processor"
)

const runTimeout = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll on a schedule and expose health and trigger endpoints",
	Long: `Serve runs the pipeline on POLL_SCHEDULE and listens on PORT for
GET /health and POST /process-posts. Overlapping runs are skipped.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type server struct {
	processor processor.Processor
	mu        sync.Mutex
	ctx       context.Context
}

func newServer(ctx context.Context, p processor.Processor) *server {
	return &server{processor: p, ctx: ctx}
}

// runOnce executes one pass unless another is in flight. It reports whether
// the pass was started.
func (s *server) runOnce(trigger string) bool {
	if !s.mu.TryLock() {
		slog.Warn("Run already in progress, skipping", "trigger", trigger)
		return false
	}
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in run", "trigger", trigger, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	report, err := s.processor.Run(ctx)
	if err != nil {
		slog.Error("Run failed", "trigger", trigger, "run_id", report.RunID, "error", err)
		return true
	}
	slog.Info("Run complete", "trigger", trigger, "run_id", report.RunID, "new", report.Added, "notified", report.Notified)
	return true
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process-posts", s.processPostsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	return mux
}

// processPostsHandler starts a run in the background so the response is not
// held open for the whole pass.
func (s *server) processPostsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.mu.TryLock() {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintln(w, "Run already in progress.")
		return
	}
	s.mu.Unlock()

	go s.runOnce("http")

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Post processing started.")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := newServer(ctx, p.controller)

	c := cron.New(cron.WithLocation(cfg.Location))
	if _, err := c.AddFunc(cfg.PollSchedule, func() { srv.runOnce("cron") }); err != nil {
		return fmt.Errorf("invalid POLL_SCHEDULE %q: %w", cfg.PollSchedule, err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		c.Start()
		slog.Info("Scheduler started", "schedule", cfg.PollSchedule)

		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		<-c.Stop().Done()
		return nil
	})

	err = g.Wait()
	slog.Info("Server stopped.")
	return err
}
