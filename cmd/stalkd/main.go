// Command stalkd serves turnip price predictions over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/stalk-market/internal/api"
	"github.com/talgya/stalk-market/internal/coef"
	"github.com/talgya/stalk-market/internal/config"
	"github.com/talgya/stalk-market/internal/logging"
	"github.com/talgya/stalk-market/internal/persistence"
	"github.com/talgya/stalk-market/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	slog.Info("stalk-market: turnip price bounds")
	slog.Info("pattern coefficients",
		"decay", fmt.Sprintf("%d/%d", coef.DecUpper, coef.DecLower),
		"fluct_hold", fmt.Sprintf("%d..%d", coef.FluctHoldLower, coef.FluctHoldUpper),
		"spike_peak", fmt.Sprintf("%d..%d", coef.SpikeC, coef.SpikeD),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Lookup Tables (built once, reused across restarts) ───────────
	ready, err := db.HasTables(cfg.MinBuy, cfg.MaxBuy)
	if err != nil {
		slog.Error("failed to inspect tables", "error", err)
		os.Exit(1)
	}
	if ready {
		stats, err := db.Stats()
		if err == nil {
			slog.Info("lookup tables loaded",
				"tables", stats.Tables,
				"size", humanize.Bytes(uint64(stats.TableBytes)),
				"last_run", stats.LastRun,
			)
		}
	} else {
		slog.Info("building lookup tables...", "min_buy", cfg.MinBuy, "max_buy", cfg.MaxBuy)
		if _, err := sweep.Build(ctx, cfg.MinBuy, cfg.MaxBuy, cfg.Workers, db); err != nil {
			slog.Error("table build failed", "error", err)
			os.Exit(1)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("STALK_ADMIN_KEY not set, POST /api/v1/rebuild will be disabled")
	}

	apiServer := &api.Server{
		DB:          db,
		Port:        cfg.Port,
		AdminKey:    cfg.AdminKey,
		Workers:     cfg.Workers,
		MinBuy:      cfg.MinBuy,
		MaxBuy:      cfg.MaxBuy,
		PredictRate: cfg.PredictRate,
		CORSOrigins: cfg.CORSOrigins,
	}
	srv := apiServer.Start()
	defer apiServer.Close()

	fmt.Printf("\nstalkd is serving buy prices %d..%d.\n", cfg.MinBuy, cfg.MaxBuy)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	fmt.Println("(Ctrl+C to stop)")

	// ── Run ───────────────────────────────────────────────────────────
	<-ctx.Done()
	slog.Info("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	fmt.Println("stalkd stopped.")
}
