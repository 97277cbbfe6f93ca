package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/graphview-io/graphview/pkg/config"
	"github.com/graphview-io/graphview/pkg/engine"
	"github.com/graphview-io/graphview/pkg/loader"
	"github.com/graphview-io/graphview/pkg/metrics"
	"github.com/graphview-io/graphview/pkg/model"
	"github.com/graphview-io/graphview/pkg/version"
	"github.com/graphview-io/graphview/pkg/watcher"
)

func main() {
	dataPath := flag.String("data", "", "Graph data file (.jsonl or .sqlite)")
	configPath := flag.String("config", "", "Config file (default: XDG config dir)")
	frames := flag.Int("frames", 600, "Number of frames to simulate")
	dt := flag.Float64("dt", 1.0/60.0, "Physics timestep in seconds")
	zoom := flag.Float64("zoom", 1.0, "Camera zoom factor")
	width := flag.Float64("width", 1920, "Viewport width in pixels")
	height := flag.Float64("height", 1080, "Viewport height in pixels")
	margin := flag.Float64("margin", 100, "Viewport expansion margin in world units")
	pagerank := flag.Bool("pagerank", false, "Derive node importance from PageRank instead of degree")
	watch := flag.Bool("watch", false, "Reload the graph when the data file changes")
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	verbose := flag.Bool("verbose", false, "Debug-level logging")
	versionFlag := flag.Bool("version", false, "Show version")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("Usage: graphview [options]")
		fmt.Println("\nHeadless driver for the graphview render core.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("graphview %s\n", version.Version)
		os.Exit(0)
	}

	level := charmlog.InfoLevel
	if *verbose {
		level = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})

	if *dataPath == "" {
		logger.Error("no data file given, use -data")
		os.Exit(2)
	}

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logger.Error("could not create CPU profile", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Error("could not start CPU profile", "err", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	var cfg config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info("metrics endpoint", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	graph, err := loadGraph(*dataPath, *pagerank)
	if err != nil {
		logger.Error("failed to load graph", "err", err)
		os.Exit(1)
	}
	logger.Info("graph loaded", "nodes", len(graph.Nodes), "edges", len(graph.Edges))

	eng, err := newEngine(cfg)
	if err != nil {
		logger.Error("failed to create engine", "err", err)
		os.Exit(1)
	}
	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "err", err)
		os.Exit(1)
	}
	defer eng.Stop()

	eng.LoadGraph(graph)

	// Live reload: a change on the data file replaces the graph wholesale.
	reload := make(chan struct{}, 1)
	if *watch {
		w, err := watcher.New(*dataPath,
			watcher.WithOnChange(func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			}),
			watcher.WithOnError(func(err error) {
				logger.Warn("watcher", "err", err)
			}),
		)
		if err != nil {
			logger.Error("failed to watch data file", "err", err)
			os.Exit(1)
		}
		if err := w.Start(); err != nil {
			logger.Error("failed to start watcher", "err", err)
			os.Exit(1)
		}
		defer w.Stop()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	vp := model.ViewportInfo{Width: *width, Height: *height, Zoom: *zoom}
	runLoop(eng, logger, loopParams{
		frames:   *frames,
		dt:       *dt,
		viewport: vp,
		margin:   *margin,
		infinite: *watch,
	}, func() (model.Graph, error) {
		return loadGraph(*dataPath, *pagerank)
	}, reload, sigCh)
}

func loadGraph(path string, pagerank bool) (model.Graph, error) {
	g, err := loader.Load(path)
	if err != nil {
		return model.Graph{}, err
	}
	if pagerank {
		loader.PageRankImportance(&g)
	}
	return g, nil
}

func newEngine(cfg config.Config) (*engine.Engine, error) {
	params, err := cfg.PhysicsParams()
	if err != nil {
		return nil, err
	}
	thresholds, err := cfg.LODThresholds()
	if err != nil {
		return nil, err
	}
	budgets, err := cfg.Budgets()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Physics:     params,
		Thresholds:  thresholds,
		Monitor:     cfg.PerfmonConfig(),
		TierBudgets: budgets,
		QueueDepth:  cfg.Worker.QueueDepth,
		Synchronous: cfg.Worker.Synchronous,
	})
}

type loopParams struct {
	frames   int
	dt       float64
	viewport model.ViewportInfo
	margin   float64
	infinite bool
}

// runLoop drives the render core the way an interactive frontend would:
// tick, cull, sample, repeat. In watch mode it runs until interrupted.
func runLoop(eng *engine.Engine, logger *charmlog.Logger, p loopParams,
	load func() (model.Graph, error), reload <-chan struct{}, sigCh <-chan os.Signal) {

	ticker := time.NewTicker(time.Duration(float64(time.Second) * p.dt))
	defer ticker.Stop()

	frame := 0
	lastReport := time.Now()
	prev := time.Now()

	for {
		select {
		case <-sigCh:
			logger.Info("interrupted")
			report(eng, logger)
			return

		case <-reload:
			g, err := load()
			if err != nil {
				logger.Warn("reload failed, keeping current graph", "err", err)
				continue
			}
			gen := eng.LoadGraph(g)
			logger.Info("graph reloaded", "generation", gen, "nodes", len(g.Nodes), "edges", len(g.Edges))

		case <-ticker.C:
			now := time.Now()
			eng.Tick(p.dt)
			eng.RequestCull(p.viewport, p.margin)
			tier := eng.Sample(now.Sub(prev))
			prev = now
			frame++

			if now.Sub(lastReport) >= 5*time.Second {
				lastReport = now
				m := eng.Metrics()
				logger.Debug("frame stats",
					"frame", frame,
					"tier", tier.String(),
					"avg_fps", fmt.Sprintf("%.1f", m.AvgFPS),
					"stable", m.IsStable,
				)
			}

			if !p.infinite && frame >= p.frames {
				report(eng, logger)
				return
			}
		}
	}
}

func report(eng *engine.Engine, logger *charmlog.Logger) {
	if res, ok := eng.Latest(); ok {
		logger.Info("final render set",
			"level", res.Level.String(),
			"visible_nodes", res.Stats.VisibleNodes,
			"visible_edges", len(res.Edges),
			"total_nodes", res.Stats.TotalNodes,
			"cull", res.Stats.Duration.String(),
		)
	} else {
		logger.Info("no cull completed, falling back to full set",
			"nodes", len(eng.FallbackRenderSet().Nodes))
	}

	for _, s := range metrics.AllTimingStats() {
		logger.Info("timing",
			"op", s.Name,
			"count", s.Count,
			"avg_ms", fmt.Sprintf("%.2f", s.AvgMs),
			"max_ms", fmt.Sprintf("%.2f", s.MaxMs),
		)
	}
	logger.Info("stale responses dropped", "count", eng.StaleDropped())
}
