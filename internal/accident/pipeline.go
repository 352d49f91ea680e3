package accident

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	uuid "github.com/gofrs/uuid/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kmmndr/accident_alert/internal/motion"
	"github.com/kmmndr/accident_alert/internal/severity"
	"github.com/kmmndr/accident_alert/internal/tracking"
)

// Stage is a step of the analysis. An Analysis records the stage it
// stopped at.
type Stage string

const (
	StageDecoding        Stage = "decoding"
	StageScoringMotion   Stage = "scoring_motion"
	StageSelectingWindow Stage = "selecting_window"
	StageTracking        Stage = "tracking"
	StageScoring         Stage = "scoring"
	StageExtracting      Stage = "extracting"
	StageDone            Stage = "done"
)

const DefaultFrameRate = 25.0

// Config holds the tunables of the pipeline.
type Config struct {
	SpikeFactor      float64
	WindowSeconds    float64
	IoUThreshold     float64
	MinVehicles      int
	MinOverlap       float64
	DefaultFrameRate float64
	ClipDir          string
}

func DefaultConfig() Config {
	return Config{
		SpikeFactor:      6,
		WindowSeconds:    motion.DefaultWindowSeconds,
		IoUThreshold:     tracking.DefaultIoUThreshold,
		MinVehicles:      2,
		MinOverlap:       0.25,
		DefaultFrameRate: DefaultFrameRate,
		ClipDir:          "saved_events",
	}
}

// Analysis is everything learned about one clip, whether or not it showed
// an accident.
type Analysis struct {
	Path          string             `json:"path"`
	Stage         Stage              `json:"stage"`
	Rejection     Rejection          `json:"rejection,omitempty"`
	Frames        int                `json:"frames"`
	FrameRate     float64            `json:"frame_rate"`
	PeakMotion    float64            `json:"peak_motion"`
	MeanMotion    float64            `json:"mean_motion"`
	AccidentFrame int                `json:"accident_frame"`
	Window        motion.Window      `json:"window"`
	VehicleCount  int                `json:"vehicle_count"`
	MaxIoU        float64            `json:"max_iou"`
	Vehicles      []tracking.Vehicle `json:"vehicles,omitempty"`
	Result        *Result            `json:"result,omitempty"`
}

// Accident reports whether the analysis produced a result.
func (a *Analysis) Accident() bool {
	return a.Result != nil
}

// Pipeline runs the accident analysis. It holds no per-clip state, so one
// Pipeline may analyse several clips concurrently as long as its
// collaborators are safe for concurrent use.
type Pipeline struct {
	decoder  Decoder
	sensor   *motion.Sensor
	detector Detector
	encoder  Encoder
	filters  Filters
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces time.Now, which names the evidence clips.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(decoder Decoder, scorer motion.Scorer, detector Detector, encoder Encoder, cfg Config, opts ...Option) *Pipeline {
	if detector == nil {
		detector = NopDetector{}
	}
	p := &Pipeline{
		decoder:  decoder,
		sensor:   motion.NewSensor(scorer),
		detector: detector,
		encoder:  encoder,
		filters: Filters{
			SpikeFactor: cfg.SpikeFactor,
			MinVehicles: cfg.MinVehicles,
			MinOverlap:  cfg.MinOverlap,
		},
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Detect analyses the clip at path. It returns nil and no error when the
// clip does not show an accident.
func (p *Pipeline) Detect(ctx context.Context, path string) (*Result, error) {
	a, err := p.Analyze(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.Result, nil
}

// Analyze decodes the clip at path, analyses it and releases it.
func (p *Pipeline) Analyze(ctx context.Context, path string) (_ *Analysis, err error) {
	clip, err := p.decoder.Decode(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	defer func() {
		err = multierr.Append(err, clip.Close())
	}()

	a, err := p.AnalyzeClip(ctx, clip)
	if a != nil {
		a.Path = path
	}
	return a, err
}

// AnalyzeClip runs the analysis over an already decoded clip. The caller
// keeps ownership of clip.
func (p *Pipeline) AnalyzeClip(ctx context.Context, clip Clip) (*Analysis, error) {
	a := &Analysis{
		Stage:     StageDecoding,
		Frames:    clip.Len(),
		FrameRate: p.frameRate(clip),
	}
	if a.Frames < 2 {
		return p.reject(a, RejectTooFewFrames), nil
	}

	a.Stage = StageScoringMotion
	profile, err := p.sensor.Profile(ctx, clip)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrMotion, err)
	}
	a.PeakMotion = profile.Peak()
	a.MeanMotion = profile.Mean()
	a.AccidentFrame = profile.PeakIndex()
	if r := p.filters.CheckMotion(a.PeakMotion, a.MeanMotion); r != Accepted {
		return p.reject(a, r), nil
	}

	a.Stage = StageSelectingWindow
	a.Window = motion.SelectWindow(a.AccidentFrame, a.Frames, a.FrameRate, p.cfg.WindowSeconds)

	a.Stage = StageTracking
	tracker, err := p.track(ctx, clip, a.Window)
	if err != nil {
		return nil, err
	}
	a.VehicleCount = tracker.Count()
	a.MaxIoU = tracker.MaxIoU()
	a.Vehicles = tracker.Vehicles()
	if r := p.filters.CheckVehicles(a.VehicleCount); r != Accepted {
		return p.reject(a, r), nil
	}
	if r := p.filters.CheckOverlap(a.MaxIoU); r != Accepted {
		return p.reject(a, r), nil
	}

	a.Stage = StageScoring
	level, impact := severity.Classify(a.PeakMotion, a.MaxIoU)

	a.Stage = StageExtracting
	clipPath, err := p.extract(ctx, clip, a.Window, a.FrameRate)
	if err != nil {
		return nil, err
	}

	a.Result = &Result{
		Severity:     level,
		ImpactScore:  impact,
		VehicleCount: a.VehicleCount,
		ClipPath:     clipPath,
	}
	a.Stage = StageDone

	p.logger.Info("accident detected",
		zap.String("severity", string(level)),
		zap.Int("impact", impact),
		zap.Int("vehicles", a.VehicleCount),
		zap.Float64("peak_motion", a.PeakMotion),
		zap.Float64("max_iou", a.MaxIoU),
		zap.String("clip", clipPath),
	)
	return a, nil
}

func (p *Pipeline) track(ctx context.Context, clip Clip, w motion.Window) (*tracking.Tracker, error) {
	tracker := tracking.NewTracker(p.cfg.IoUThreshold)
	for i := w.Start; i < w.End; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		boxes, err := p.detector.Detect(ctx, clip.Frame(i))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: frame %d: %w", ErrDetect, i, err)
		}
		tracker.Observe(i, tracking.VehiclesOnly(boxes))
	}
	return tracker, nil
}

// extract writes the window to a new file in the clip directory and
// returns its path.
func (p *Pipeline) extract(ctx context.Context, clip Clip, w motion.Window, frameRate float64) (string, error) {
	if err := os.MkdirAll(p.cfg.ClipDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}
	name := fmt.Sprintf("accident_%s_%s.mp4", p.now().Format("20060102150405"), id.String()[:8])
	path := filepath.Join(p.cfg.ClipDir, name)

	frames := make([]image.Image, 0, w.Len())
	for i := w.Start; i < w.End; i++ {
		frames = append(frames, clip.Frame(i))
	}

	if err := p.encoder.Encode(ctx, frames, frameRate, path); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrEncode, path, err)
	}
	return path, nil
}

func (p *Pipeline) reject(a *Analysis, r Rejection) *Analysis {
	a.Rejection = r
	p.logger.Debug("clip rejected",
		zap.String("stage", string(a.Stage)),
		zap.String("reason", string(r)),
		zap.Int("frames", a.Frames),
		zap.Float64("peak_motion", a.PeakMotion),
		zap.Float64("mean_motion", a.MeanMotion),
		zap.Int("vehicles", a.VehicleCount),
		zap.Float64("max_iou", a.MaxIoU),
	)
	return a
}

func (p *Pipeline) frameRate(clip Clip) float64 {
	fps := clip.FrameRate()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		if p.cfg.DefaultFrameRate > 0 {
			return p.cfg.DefaultFrameRate
		}
		return DefaultFrameRate
	}
	return fps
}
