package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kmmndr/accident_alert/internal/accident"
	"github.com/kmmndr/accident_alert/internal/app"
	"github.com/kmmndr/accident_alert/internal/config"
	"github.com/kmmndr/accident_alert/internal/logging"
)

type job struct {
	index int
	path  string
}

func main() {
	var configPath string
	var modelPath string
	var backend string
	var encoder string
	var saveDir string
	var workers int
	var spikeFactor float64
	var verbose bool

	flag.StringVar(&configPath, "config", "", "JSON config file")
	flag.StringVar(&modelPath, "model", "", "YOLOv8 ONNX model (overrides config)")
	flag.StringVar(&backend, "backend", "", "Detector backend: auto, cpu or cuda")
	flag.StringVar(&encoder, "encoder", "", "Evidence clip encoder: opencv or ffmpeg")
	flag.StringVar(&saveDir, "save-dir", "", "Directory for evidence clips")
	flag.IntVar(&workers, "workers", runtime.NumCPU(), "Clips analysed in parallel")
	flag.Float64Var(&spikeFactor, "spike-factor", 0, "Peak to mean motion ratio required")
	flag.BoolVar(&verbose, "v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] clip.mp4 [clip.mp4 ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	clips := flag.Args()
	if len(clips) == 0 {
		fmt.Println("Error: no video clips given")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if modelPath != "" {
		cfg.Detection.ModelPath = modelPath
	}
	if backend != "" {
		cfg.Detection.Backend = backend
	}
	if encoder != "" {
		cfg.Encoder = encoder
	}
	if saveDir != "" {
		cfg.SaveDir = saveDir
	}
	if spikeFactor > 0 {
		cfg.Pipeline.SpikeFactor = spikeFactor
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, closeLog, err := logging.New(cfg.LoggingOptions(false))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := analyzeAll(ctx, cfg, clips, max(1, min(workers, len(clips))), logger)
	if err != nil {
		logger.Error("analysis aborted", zap.Error(err))
		closeLog()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, r := range reports {
		if r == nil {
			continue
		}
		failed = failed || r.Verdict == accident.VerdictFailed
		if err := enc.Encode(r); err != nil {
			logger.Error("failed to write report", zap.Error(err))
		}
	}
	if failed {
		closeLog()
		os.Exit(1)
	}
}

// analyzeAll spreads clips over workers, each owning its own detector so
// inference never waits on another worker's network.
func analyzeAll(ctx context.Context, cfg *config.Config, clips []string, workers int, logger *zap.Logger) ([]*accident.Report, error) {
	reports := make([]*accident.Report, len(clips))
	jobs := make(chan job)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i, path := range clips {
			select {
			case jobs <- job{index: i, path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		w := w
		workerLogger := logger.With(zap.Int("worker", w))
		g.Go(func() error {
			detector, closeDetector, err := app.NewDetector(cfg, workerLogger)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			defer closeDetector()

			pipeline, err := app.NewPipeline(cfg, detector, workerLogger)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}

			for j := range jobs {
				report, err := analyzeOne(ctx, pipeline, j.path)
				if err != nil {
					return err
				}
				reports[j.index] = report
				if report.Verdict == accident.VerdictFailed {
					workerLogger.Warn("analysis failed", zap.String("clip", j.path), zap.String("error", report.Error))
				}
			}
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

func analyzeOne(ctx context.Context, pipeline *accident.Pipeline, path string) (*accident.Report, error) {
	start := time.Now()
	analysis, err := pipeline.Analyze(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return accident.NewFailureReport(path, err, time.Since(start))
	}
	return accident.NewReport(analysis, time.Since(start))
}
