package motion

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyProfile is returned when a profile would hold no scores, which
// happens for clips with fewer than two frames.
var ErrEmptyProfile = errors.New("motion profile needs at least one frame pair")

// Profile is the motion magnitude of every adjacent frame pair of a clip.
// Scores[i] measures the motion between frame i and frame i+1.
type Profile struct {
	Scores []float64 `json:"scores"`
}

func NewProfile(scores []float64) (*Profile, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyProfile
	}

	return &Profile{Scores: scores}, nil
}

// Peak is the largest motion score.
func (p *Profile) Peak() float64 {
	return floats.Max(p.Scores)
}

// Mean is the average motion score.
func (p *Profile) Mean() float64 {
	return stat.Mean(p.Scores, nil)
}

// PeakIndex is the index of the first occurrence of the peak score.
func (p *Profile) PeakIndex() int {
	return floats.MaxIdx(p.Scores)
}

// IsSpike reports whether the peak stands out from the mean by at least
// factor.
func (p *Profile) IsSpike(factor float64) bool {
	return p.Peak() >= p.Mean()*factor
}

func (p *Profile) Len() int {
	return len(p.Scores)
}
