// Package severity maps collision evidence to a severity band and an
// integer impact score.
package severity

import "math"

// Level is a severity band.
type Level string

const (
	Minor    Level = "Minor"
	Moderate Level = "Moderate"
	Severe   Level = "Severe"
)

const (
	motionWeight  = 4.0
	overlapWeight = 120.0

	moderateFrom = 30
	severeFrom   = 60
)

// Score combines peak motion and maximum overlap into the raw impact score.
// Each product is rounded on its own so no platform fuses the sum.
func Score(peakMotion, maxIoU float64) float64 {
	return float64(peakMotion*motionWeight) + float64(maxIoU*overlapWeight)
}

// Classify returns the severity band and the impact score truncated toward
// zero. Band boundaries belong to the upper band.
func Classify(peakMotion, maxIoU float64) (Level, int) {
	score := Score(peakMotion, maxIoU)
	impact := int(math.Trunc(score))

	switch {
	case score < moderateFrom:
		return Minor, impact
	case score < severeFrom:
		return Moderate, impact
	default:
		return Severe, impact
	}
}

// Valid reports whether l is one of the known bands.
func (l Level) Valid() bool {
	switch l {
	case Minor, Moderate, Severe:
		return true
	}
	return false
}
