package accident

// Rejection names the gate that turned a clip down. The zero value means
// the clip was accepted.
type Rejection string

const (
	Accepted             Rejection = ""
	RejectTooFewFrames   Rejection = "too_few_frames"
	RejectWeakMotion     Rejection = "weak_motion"
	RejectTooFewVehicles Rejection = "too_few_vehicles"
	RejectLowOverlap     Rejection = "low_overlap"
)

// Filters holds the thresholds of the three reject gates. Each gate is
// independent of the others.
type Filters struct {
	SpikeFactor float64
	MinVehicles int
	MinOverlap  float64
}

// CheckMotion rejects clips whose peak motion is less than SpikeFactor
// times the mean motion.
func (f Filters) CheckMotion(peak, mean float64) Rejection {
	if peak < mean*f.SpikeFactor {
		return RejectWeakMotion
	}
	return Accepted
}

// CheckVehicles rejects windows with fewer than MinVehicles tracked
// vehicles.
func (f Filters) CheckVehicles(count int) Rejection {
	if count < f.MinVehicles {
		return RejectTooFewVehicles
	}
	return Accepted
}

// CheckOverlap rejects windows where no two boxes overlapped by at least
// MinOverlap.
func (f Filters) CheckOverlap(maxIoU float64) Rejection {
	if maxIoU < f.MinOverlap {
		return RejectLowOverlap
	}
	return Accepted
}
