package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kmmndr/accident_alert/internal/api"
	"github.com/kmmndr/accident_alert/internal/app"
	"github.com/kmmndr/accident_alert/internal/config"
	"github.com/kmmndr/accident_alert/internal/db"
	"github.com/kmmndr/accident_alert/internal/logging"
	"github.com/kmmndr/accident_alert/internal/notify"
)

func main() {
	var configPath string
	var listen string
	var envFile string
	var dev bool

	flag.StringVar(&configPath, "config", "", "JSON config file")
	flag.StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	flag.BoolVar(&dev, "dev", false, "Development logging")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger, closeLog, err := logging.New(cfg.LoggingOptions(dev))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
	closeLog()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer store.Close()

	detector, closeDetector, err := app.NewDetector(cfg, logger)
	if err != nil {
		return fmt.Errorf("load detector: %w", err)
	}
	defer closeDetector()

	pipeline, err := app.NewPipeline(cfg, detector, logger)
	if err != nil {
		return err
	}

	notifier, closeNotifier := newNotifier(cfg, logger)
	defer closeNotifier()

	server := api.NewServer(pipeline, store, notifier, api.Options{
		UploadDir:       cfg.UploadDir,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		AnalysisTimeout: cfg.GetAnalysisTimeout(),
		HistoryLimit:    cfg.HistoryLimit,
		CORSOrigins:     cfg.CORSOrigins,
	}, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Listen))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newNotifier enables mail and Kafka alerts when they are configured.
func newNotifier(cfg *config.Config, logger *zap.Logger) (notify.Notifier, func()) {
	var fanout notify.Fanout
	closers := []func(){}

	if cfg.Mail.Enabled() {
		mailer, err := notify.NewMailer(cfg.MailerConfig())
		if err != nil {
			logger.Warn("mail alerts disabled", zap.Error(err))
		} else {
			fanout = append(fanout, mailer)
		}
	} else {
		logger.Info("mail alerts disabled, EMAIL_USER and EMAIL_PASS not set")
	}

	if cfg.Kafka.Enabled() {
		publisher, err := notify.NewKafkaPublisher(cfg.KafkaPublisherConfig(), logger.Named("kafka"))
		if err != nil {
			logger.Warn("kafka alerts disabled", zap.Error(err))
		} else {
			fanout = append(fanout, publisher)
			closers = append(closers, func() { publisher.Close(10 * time.Second) })
		}
	}

	return fanout, func() {
		for _, c := range closers {
			c()
		}
	}
}
