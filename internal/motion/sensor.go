package motion

import (
	"context"
	"fmt"
	"image"
)

// Frames is an ordered, indexable frame sequence.
type Frames interface {
	Len() int
	Frame(i int) image.Image
}

// Scorer measures the motion between two consecutive frames as a single
// non-negative magnitude.
type Scorer interface {
	Motion(ctx context.Context, prev, curr image.Image) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, prev, curr image.Image) (float64, error)

func (f ScorerFunc) Motion(ctx context.Context, prev, curr image.Image) (float64, error) {
	return f(ctx, prev, curr)
}

// Sensor turns a frame sequence into a motion profile.
type Sensor struct {
	scorer Scorer
}

func NewSensor(scorer Scorer) *Sensor {
	return &Sensor{scorer: scorer}
}

// Profile scores every adjacent frame pair in order. Sequences shorter than
// two frames yield ErrEmptyProfile.
func (s *Sensor) Profile(ctx context.Context, frames Frames) (*Profile, error) {
	n := frames.Len()
	if n < 2 {
		return nil, ErrEmptyProfile
	}

	scores := make([]float64, 0, n-1)
	prev := frames.Frame(0)
	for i := 1; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		curr := frames.Frame(i)
		score, err := s.scorer.Motion(ctx, prev, curr)
		if err != nil {
			return nil, fmt.Errorf("frames %d-%d: %w", i-1, i, err)
		}
		scores = append(scores, score)
		prev = curr
	}

	return NewProfile(scores)
}
