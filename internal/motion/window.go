package motion

import "math"

// DefaultWindowSeconds is the lead-in and lead-out kept around the motion
// peak.
const DefaultWindowSeconds = 5.0

// Window is a half-open frame range [Start, End) around the frame where the
// motion peaks.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Peak  int `json:"peak"`
}

func (w Window) Len() int {
	return w.End - w.Start
}

func (w Window) Contains(i int) bool {
	return i >= w.Start && i < w.End
}

// Radius converts a duration in seconds into a frame count at frameRate,
// never less than one frame.
func Radius(frameRate, seconds float64) int {
	r := int(math.Round(seconds * frameRate))
	if r < 1 {
		return 1
	}
	return r
}

// SelectWindow centres a window of the given radius on peakIndex and clamps
// it to [0, frameCount).
func SelectWindow(peakIndex, frameCount int, frameRate, seconds float64) Window {
	if frameCount <= 0 {
		return Window{}
	}
	peakIndex = clamp(peakIndex, 0, frameCount-1)
	radius := Radius(frameRate, seconds)

	return Window{
		Start: max(0, peakIndex-radius),
		End:   min(frameCount, peakIndex+radius),
		Peak:  peakIndex,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
