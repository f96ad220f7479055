// Sweeper periodically flips expired share grants to inactive. Access checks
// re-verify expiry on every read, so the sweep only keeps audit-facing
// listings tidy; it can be down without affecting correctness.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"docshare/internal/config"
	"docshare/internal/db"
	"docshare/internal/logger"
	sharerepo "docshare/internal/share/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	defer database.Close()

	grants := sharerepo.NewPostgresRepository(database)
	clock := clockwork.NewRealClock()
	interval := cfg.SweepIntervalDuration()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zlog.Info("sweeper shutting down")
		cancel()
	}()

	zlog.Info("sweeper running", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(ctx, grants, clock, zlog)
	for {
		select {
		case <-ctx.Done():
			zlog.Info("sweeper stopped")
			return
		case <-ticker.C:
			sweep(ctx, grants, clock, zlog)
		}
	}
}

func sweep(ctx context.Context, grants *sharerepo.PostgresRepository, clock clockwork.Clock, zlog *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := grants.SweepExpired(sweepCtx, clock.Now().UTC())
	if err != nil {
		zlog.Error("sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		zlog.Info("expired grants retired", zap.Int64("count", n))
	}
}
