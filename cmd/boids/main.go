// Command boids runs the GPU boids simulation in a window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/Carmen-Shannon/oxy-boids/config"
	"github.com/Carmen-Shannon/oxy-boids/engine"
	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/Carmen-Shannon/oxy-boids/engine/profiler"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-boids/engine/window"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// configPath is an optional YAML file read before the flags are applied.
	configPath = flag.String("config", "", "path to a YAML config file")

	// boidCount is the population size; 0 runs an empty simulation.
	boidCount = flag.Uint("boids", config.DefaultBoids, "number of boids")

	seed          = flag.Uint64("seed", 0, "population seed, 0 picks a random seed")
	spawn         = flag.String("spawn", "disk", "spawn policy: disk or square")
	width         = flag.Int("width", 1280, "initial window width")
	height        = flag.Int("height", 720, "initial window height")
	vsync         = flag.Bool("vsync", true, "present with vsync")
	software      = flag.Bool("software", false, "force a software adapter")
	logLevel      = flag.String("log-level", "info", "log level: debug, info, warn or error")
	development   = flag.Bool("dev", false, "human readable development logging")
	metricsAddr   = flag.String("metrics-addr", "", "address serving /metrics, empty disables it")
	computeShader = flag.String("compute-shader", "", "path to a WGSL compute kernel replacing the built-in one")
)

// frameSeconds is the wall time between consecutive rendered frames.
var frameSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "boids_frame_seconds",
	Help:    "Wall time between consecutive rendered frames.",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
})

// glfw requires all window calls on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "boids: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	zl, err := common.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	zl = zl.With(zap.String("run_id", uuid.New().String()))
	defer func() {
		_ = zl.Sync()
	}()
	logger := zl.Sugar()

	computeSource := shader.BoidsComputeSource
	if cfg.Renderer.ComputeShader != "" {
		s, err := shader.NewShaderFromPath("boids compute", shader.ShaderTypeCompute, cfg.Renderer.ComputeShader)
		if err != nil {
			return err
		}
		computeSource = s.Source()
	}

	genOpts, err := cfg.GeneratorOptions()
	if err != nil {
		return err
	}
	gen := boid.NewGenerator(append(genOpts, boid.WithWorkers(runtime.NumCPU()))...)
	boids := gen.Generate(cfg.Simulation.Boids)
	logger.Infof("Spawned %d boids (%s, seed %d)", len(boids), gen.Policy(), gen.Seed())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		serveMetrics(gctx, g, cfg.Metrics.Addr, logger)
	}

	presentMode := renderer.PresentModeUncapped
	if cfg.Renderer.VSync {
		presentMode = renderer.PresentModeVSync
	}

	win := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	r := renderer.NewRenderer(win, boids,
		renderer.WithComputeShaderSource(computeSource),
		renderer.WithPresentMode(presentMode),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.Software),
		renderer.WithLogger(logger),
		renderer.WithProfiler(profiler.NewProfiler(
			profiler.WithLogger(logger),
			profiler.WithRegisterer(prometheus.DefaultRegisterer),
		)),
	)

	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithLogger(logger),
		engine.WithVSync(cfg.Renderer.VSync),
		engine.WithRenderFrameLimit(cfg.Renderer.FrameLimit),
		engine.WithRenderCallback(func(dt float32) {
			frameSeconds.Observe(float64(dt))
		}),
	)

	// A signal or a failed metrics server stops the frame loop.
	g.Go(func() error {
		<-gctx.Done()
		eng.Quit()
		return nil
	})

	runErr := eng.Run()
	stop()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// applyFlags copies every flag given on the command line over the loaded configuration.
func applyFlags(cfg *config.Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "boids":
			if uint64(*boidCount) > math.MaxUint32 {
				err = fmt.Errorf("boids must be at most %d, got %d", uint32(math.MaxUint32), *boidCount)
				return
			}
			cfg.Simulation.Boids = uint32(*boidCount)
		case "seed":
			cfg.Simulation.Seed = *seed
		case "spawn":
			cfg.Simulation.Spawn = *spawn
		case "width":
			cfg.Window.Width = *width
		case "height":
			cfg.Window.Height = *height
		case "vsync":
			cfg.Renderer.VSync = *vsync
		case "software":
			cfg.Renderer.Software = *software
		case "log-level":
			cfg.Log.Level = *logLevel
		case "dev":
			cfg.Log.Development = *development
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "compute-shader":
			cfg.Renderer.ComputeShader = *computeShader
		}
	})
	return err
}

// serveMetrics exposes the prometheus default registry until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, logger common.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Infof("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
