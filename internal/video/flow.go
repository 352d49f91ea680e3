package video

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kmmndr/accident_alert/internal/frame"
)

// FlowParams are the Farneback dense optical flow parameters.
type FlowParams struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
	Flags      int
}

func DefaultFlowParams() FlowParams {
	return FlowParams{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
		Flags:      0,
	}
}

// FlowScorer measures motion as the mean magnitude of the dense optical
// flow between two frames. It keeps no state between calls.
type FlowScorer struct {
	params FlowParams
}

func NewFlowScorer(params FlowParams) *FlowScorer {
	return &FlowScorer{params: params}
}

func (s *FlowScorer) Motion(_ context.Context, prev, curr image.Image) (float64, error) {
	prevGray, err := grayFrame(prev)
	if err != nil {
		return 0, fmt.Errorf("previous frame: %w", err)
	}
	defer prevGray.Close()

	currGray, err := grayFrame(curr)
	if err != nil {
		return 0, fmt.Errorf("current frame: %w", err)
	}
	defer currGray.Close()

	flow := gocv.NewMat()
	defer flow.Close()

	p := s.params
	gocv.CalcOpticalFlowFarneback(*prevGray.Mat(), *currGray.Mat(), &flow,
		p.PyrScale, p.Levels, p.WinSize, p.Iterations, p.PolyN, p.PolySigma, p.Flags)
	if flow.Empty() {
		return 0, errors.New("optical flow produced no field")
	}

	components := gocv.Split(flow)
	defer func() {
		for _, c := range components {
			c.Close()
		}
	}()

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	gocv.Magnitude(components[0], components[1], &magnitude)

	return magnitude.Mean().Val1, nil
}

// grayFrame returns an owned single channel copy of img.
func grayFrame(img image.Image) (*frame.Frame, error) {
	f, copied, err := frame.FromImage(img)
	if err != nil {
		return nil, err
	}
	if copied {
		defer f.Close()
	}
	return f.Gray()
}
