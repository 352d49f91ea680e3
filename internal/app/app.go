// Package app wires the OpenCV backed collaborators into an accident
// pipeline from a loaded configuration.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kmmndr/accident_alert/internal/accident"
	"github.com/kmmndr/accident_alert/internal/config"
	"github.com/kmmndr/accident_alert/internal/detection"
	"github.com/kmmndr/accident_alert/internal/video"
)

// NewDetector loads the configured model. Without a model path it returns
// the no-op detector. The close function is always safe to call.
func NewDetector(cfg *config.Config, logger *zap.Logger) (accident.Detector, func() error, error) {
	if cfg.Detection.ModelPath == "" {
		logger.Warn("no detector model configured, no clip will pass the vehicle filter")
		return accident.NopDetector{}, func() error { return nil }, nil
	}

	backend, err := detection.ParseBackend(cfg.Detection.Backend)
	if err != nil {
		return nil, nil, err
	}
	yolo, err := detection.NewYOLO(detection.Options{
		ModelPath:     cfg.Detection.ModelPath,
		Backend:       backend,
		InputSize:     cfg.Detection.InputSize,
		ConfThreshold: cfg.Detection.ConfThreshold,
		NMSThreshold:  cfg.Detection.NMSThreshold,
		Logger:        logger.Named("detector"),
	})
	if err != nil {
		return nil, nil, err
	}
	return yolo, yolo.Close, nil
}

func NewEncoder(cfg *config.Config) (accident.Encoder, error) {
	switch cfg.Encoder {
	case config.EncoderFFmpeg:
		enc, err := video.NewFFmpegEncoder()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg encoder: %w", err)
		}
		return enc, nil
	case config.EncoderOpenCV, "":
		return video.NewWriter(video.DefaultCodec), nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", cfg.Encoder)
	}
}

// NewPipeline builds a pipeline decoding with OpenCV and scoring motion
// with Farneback optical flow.
func NewPipeline(cfg *config.Config, detector accident.Detector, logger *zap.Logger) (*accident.Pipeline, error) {
	encoder, err := NewEncoder(cfg)
	if err != nil {
		return nil, err
	}
	return accident.New(
		video.Decoder{},
		video.NewFlowScorer(video.DefaultFlowParams()),
		detector,
		encoder,
		cfg.AccidentConfig(),
		accident.WithLogger(logger.Named("pipeline")),
	), nil
}
