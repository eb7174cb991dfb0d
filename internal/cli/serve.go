package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/config"
	"github.com/caretrace/caretrace/internal/engagement"
	"github.com/caretrace/caretrace/internal/memory"
	"github.com/caretrace/caretrace/internal/risk"
	"github.com/caretrace/caretrace/internal/scheduler"
	"github.com/caretrace/caretrace/internal/scoring"
	"github.com/caretrace/caretrace/internal/server"
	"github.com/caretrace/caretrace/internal/store"
	"github.com/caretrace/caretrace/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and background schedulers",
	RunE:  runServe,
}

func openDB(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(path)
}

// newMemoryService probes the embedding service and wires the fallback.
func newMemoryService(cfg config.Config, db *store.DB) *memory.Service {
	var primary memory.Embedder
	if memory.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
		primary = memory.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Embedding.Model)
	} else {
		fmt.Fprintf(os.Stderr, "  embedder: feature-hash (ollama unreachable)\n")
	}
	fallback := memory.NewHashingEmbedder(cfg.Embedding.Dimensions)
	return memory.NewService(db, primary, fallback, cfg.Memory.TopK)
}

func newRiskService(cfg config.Config, db *store.DB) (*risk.Service, error) {
	scorer, err := scoring.NewScorer(cfg.Scoring.Weights, affect.DefaultLexicon())
	if err != nil {
		return nil, err
	}
	analyzer := scoring.NewAnalyzer(cfg.Scoring.TrendThreshold, cfg.Scoring.TrendEpsilon)
	return risk.NewService(db, scorer, analyzer, cfg.Scoring.WindowDays), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	riskSvc, err := newRiskService(cfg, db)
	if err != nil {
		return err
	}
	memorySvc := newMemoryService(cfg, db)
	engagementSvc := engagement.NewService(db, cfg.FollowUp)

	pool := worker.NewPool(worker.Config{
		Concurrency:    cfg.Worker.Concurrency,
		RatePerSec:     cfg.Worker.RatePerSec,
		DebounceWindow: cfg.DebounceWindow(),
		MaxAttempts:    cfg.Worker.MaxAttempts,
	}, db)
	pool.Start()
	defer pool.Stop()

	sched := scheduler.New(true)
	if err := sched.Register("followups", time.Duration(cfg.Scheduler.FollowUpHours)*time.Hour, func(ctx context.Context) error {
		_, err := engagementSvc.RunFollowUps(time.Now())
		return err
	}); err != nil {
		return err
	}
	if err := sched.Register("cleanup", time.Duration(cfg.Scheduler.CleanupHours)*time.Hour, func(ctx context.Context) error {
		_, err := memorySvc.Cleanup(time.Now(), cfg.Memory.GraceMultiplier, false)
		return err
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Deps{
		DB:          db,
		Risk:        riskSvc,
		Memory:      memorySvc,
		Engagements: engagementSvc,
		Detector:    affect.NewLexiconDetector(affect.DefaultLexicon()),
		Pool:        pool,
		Sched:       sched,
		Version:     VersionString(),
	})

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "caretrace serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
