package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/verdantlab/thicket/config"
	"github.com/verdantlab/thicket/grammar"
	"github.com/verdantlab/thicket/sim"
	"github.com/verdantlab/thicket/snapshot"
	"github.com/verdantlab/thicket/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	rulesPath := flag.String("rules", "", "Path to rules.yaml (empty = embedded default species)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 1000, "Stop after N ticks")
	workers := flag.Int("workers", 0, "Worker goroutines (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV stats and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Write a snapshot every N ticks (0 = disabled)")
	logStats := flag.Bool("log-stats", false, "Log window stats via slog")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *workers > 0 {
		cfg.Sim.Workers = *workers
	}

	rules, err := grammar.Load(*rulesPath)
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	eng, err := sim.New(cfg, rules, sim.NewSeedGraph(cfg), sim.NewField(cfg, rngSeed), rngSeed, logger)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	collector := telemetry.NewCollector(cfg.Telemetry.WindowTicks)

	// The driver owns pacing and cancellation; the engine only ticks.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting simulation",
		"seed", rngSeed,
		"max_ticks", *maxTicks,
		"rules", rules.Len(),
		"world", fmt.Sprintf("%dx%dx%d", cfg.World.Width, cfg.World.Height, cfg.World.Depth),
	)

	start := time.Now()
	for int(eng.Tick()) < *maxTicks {
		res, err := eng.Advance(ctx)
		if errors.Is(err, sim.ErrCanceled) {
			slog.Info("canceled", "tick", eng.Tick())
			break
		}
		if err != nil {
			// The last good snapshot is still committed; halting is this
			// driver's policy on tick failure.
			collector.RecordFailure()
			slog.Error("halting on tick failure", "error", err)
			break
		}
		collector.RecordTick(res)

		if ws := collector.EndOfTick(res.Tick, eng.Graph(), eng.Field()); ws != nil {
			if *logStats {
				slog.Info("window",
					"tick", ws.WindowEndTick,
					"nodes", ws.Nodes,
					"leaves", ws.Leaves,
					"spawned", ws.Spawned,
					"pruned", ws.Pruned,
					"faults", ws.Faults,
					"reserve_mean", ws.ReserveMean,
				)
			}
			if err := output.WriteStats(*ws); err != nil {
				slog.Error("failed to write stats", "error", err)
			}
		}

		if *snapshotDir != "" && *snapshotEvery > 0 && int(res.Tick)%*snapshotEvery == 0 {
			snap := snapshot.Capture(res.Tick, rngSeed, eng.Graph(), eng.Field())
			path := filepath.Join(*snapshotDir, fmt.Sprintf("tick_%08d.json.zst", res.Tick))
			if err := snapshot.Write(path, snap); err != nil {
				slog.Error("failed to write snapshot", "error", err, "path", path)
			}
		}

		if eng.Graph().Len() == 0 {
			slog.Info("plant died", "tick", res.Tick)
			break
		}
	}

	slog.Info("done",
		"ticks", eng.Tick(),
		"nodes", eng.Graph().Len(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
}
