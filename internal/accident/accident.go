// Package accident decides whether a video clip shows a vehicle collision.
//
// A clip is scored frame pair by frame pair for motion. Clips whose motion
// peak does not stand out are rejected; otherwise the vehicles in a window
// around the peak are tracked by box overlap, and clips with too few
// vehicles or too little overlap are rejected. Surviving clips get a
// severity and the window is written out as an evidence clip.
package accident

import (
	"context"
	"image"

	"github.com/kmmndr/accident_alert/internal/motion"
	"github.com/kmmndr/accident_alert/internal/severity"
	"github.com/kmmndr/accident_alert/internal/tracking"
)

// Clip is a fully decoded clip held in memory. Close releases the frames.
type Clip interface {
	motion.Frames
	FrameRate() float64
	Close() error
}

// Decoder opens a clip file and decodes all of its frames.
type Decoder interface {
	Decode(ctx context.Context, path string) (Clip, error)
}

// Detector finds vehicles in a single frame.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]tracking.Box, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]tracking.Box, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]tracking.Box, error) {
	return f(ctx, img)
}

// NopDetector never finds anything. Every clip analysed with it is rejected
// for lack of vehicles.
type NopDetector struct{}

func (NopDetector) Detect(context.Context, image.Image) ([]tracking.Box, error) {
	return nil, nil
}

// Encoder writes frames to a new clip file at path.
type Encoder interface {
	Encode(ctx context.Context, frames []image.Image, frameRate float64, path string) error
}

// Result describes a detected collision.
type Result struct {
	Severity     severity.Level `json:"severity"`
	ImpactScore  int            `json:"impact"`
	VehicleCount int            `json:"vehicles"`
	ClipPath     string         `json:"clip"`
}
