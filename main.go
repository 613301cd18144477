package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pthm-cable/flowfield/api"
	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/renderer"
	"github.com/pthm-cable/flowfield/scene"
	"github.com/pthm-cable/flowfield/systems"
	"github.com/pthm-cable/flowfield/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for images, CSV logs and config snapshot")
	resolution := flag.Int("resolution", 0, "Grid edge length (0 = use config)")
	blur := flag.Int("blur", -1, "Box blur radius in cells (-1 = use config)")
	radius := flag.Float64("radius", 0, "Obstacle influence radius (0 = use config)")
	cells := flag.Bool("cells", false, "Write per-cell CSV")
	serve := flag.Bool("serve", false, "Serve the baked field over HTTP after baking")
	listen := flag.String("listen", "", "HTTP listen address (empty = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *resolution > 0 {
		cfg.Field.Resolution = *resolution
	}
	if *blur >= 0 {
		cfg.Field.BlurSize = *blur
	}
	if *radius > 0 {
		cfg.Field.Radius = *radius
	}
	if *cells {
		cfg.Output.Cells = true
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if err := cfg.Recompute(); err != nil {
		slog.Error("invalid options", "error", err)
		os.Exit(1)
	}

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)

	perf.StartBuild()

	perf.StartPhase(telemetry.PhaseScene)
	sc, err := scene.Load(cfg.Scene)
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}

	perf.StartPhase(telemetry.PhaseIndex)
	index, err := sc.Index(cfg.Query.CellSize, cfg.Query.MaxResults)
	if err != nil {
		slog.Error("failed to index scene", "error", err)
		os.Exit(1)
	}
	_, footprints := sc.Obstacles()
	perf.EndPhase()

	slog.Info("scene ready",
		"obstacles", index.Len(),
		"cell_size", cfg.Query.CellSize,
		"max_results", index.MaxResults(),
	)

	engine := api.NewEngine(index, cfg.Build.Workers, cfg.Derived.Surface, footprints, metrics)
	snap, err := engine.Rebuild(cfg.Derived.Params)
	if err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}
	perf.AddBuildStats(snap.Build)

	perf.StartPhase(telemetry.PhaseExport)
	rasterPath, quiverPath := cfg.Output.Raster, cfg.Output.Quiver
	if om != nil {
		rasterPath = om.Path(cfg.Output.Raster)
		if quiverPath != "" {
			quiverPath = om.Path(cfg.Output.Quiver)
		}
	}

	err = engine.View(func(field *systems.FlowField) error {
		if err := renderer.SavePNG(rasterPath, field); err != nil {
			return err
		}
		if quiverPath != "" {
			opts := renderer.DefaultQuiverOptions(cfg.Derived.Surface)
			opts.Stride = cfg.Output.QuiverStride
			opts.Size = cfg.Output.QuiverSize
			opts.Footprint = footprints
			if err := renderer.SaveQuiver(quiverPath, field, opts); err != nil {
				return err
			}
		}
		if cfg.Output.Cells {
			return om.WriteCells(field)
		}
		return nil
	})
	if err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}
	perf.EndBuild()

	if err := om.WriteBuild(telemetry.NewBuildRecord(time.Now(), snap.Params, index.Len(), snap.Build, snap.Field)); err != nil {
		slog.Error("failed to write build record", "error", err)
	}
	stats := perf.Stats()
	if err := om.WritePerf(stats); err != nil {
		slog.Error("failed to write perf record", "error", err)
	}

	slog.Info("field baked",
		"raster", rasterPath,
		"quiver", quiverPath,
		"build", snap.Build,
		"field", snap.Field,
		"perf", stats,
	)

	if !*serve {
		return
	}

	slog.Info("serving flow field", "listen", cfg.Server.Listen)
	if err := api.Serve(cfg.Server.Listen, api.RouterConfig{Engine: engine, Registry: reg}); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
