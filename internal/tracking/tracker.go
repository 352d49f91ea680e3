// Package tracking counts the distinct vehicles seen across a window of
// frames by greedily chaining detections whose boxes overlap.
package tracking

// DefaultIoUThreshold is the overlap a detection must exceed to continue an
// existing track.
const DefaultIoUThreshold = 0.45

// Vehicle is one tracked identity. Box always holds the most recent match.
type Vehicle struct {
	ID         int `json:"id"`
	Box        Box `json:"box"`
	Hits       int `json:"hits"`
	FirstFrame int `json:"first_frame"`
	LastFrame  int `json:"last_frame"`
}

// Tracker accumulates vehicles for a single window evaluation. It is not
// safe for concurrent use; each analysis owns its own Tracker.
type Tracker struct {
	threshold   float64
	vehicles    []Vehicle
	maxIoU      float64
	comparisons int
}

func NewTracker(threshold float64) *Tracker {
	if threshold <= 0 {
		threshold = DefaultIoUThreshold
	}
	return &Tracker{threshold: threshold}
}

// Observe folds the detections of one frame into the tracked set.
//
// Each box is compared against the tracked vehicles in insertion order and
// replaces the box of the first one whose IoU exceeds the threshold. A box
// that matches nothing starts a new vehicle, which later boxes of the same
// frame can then match. Every IoU computed counts towards MaxIoU.
func (t *Tracker) Observe(frameIndex int, boxes []Box) {
	for _, box := range boxes {
		matched := false
		for i := range t.vehicles {
			iou := IoU(box.Rect, t.vehicles[i].Box.Rect)
			t.record(iou)

			if iou > t.threshold {
				t.vehicles[i].Box = box
				t.vehicles[i].Hits++
				t.vehicles[i].LastFrame = frameIndex
				matched = true
				break
			}
		}

		if !matched {
			t.vehicles = append(t.vehicles, Vehicle{
				ID:         len(t.vehicles),
				Box:        box,
				Hits:       1,
				FirstFrame: frameIndex,
				LastFrame:  frameIndex,
			})
		}
	}
}

func (t *Tracker) record(iou float64) {
	if t.comparisons == 0 || iou > t.maxIoU {
		t.maxIoU = iou
	}
	t.comparisons++
}

// Count is the number of distinct vehicles tracked so far.
func (t *Tracker) Count() int {
	return len(t.vehicles)
}

// MaxIoU is the largest overlap computed so far, or 0 if no two boxes were
// ever compared.
func (t *Tracker) MaxIoU() float64 {
	return t.maxIoU
}

// Comparisons is the number of IoU values computed.
func (t *Tracker) Comparisons() int {
	return t.comparisons
}

// Vehicles returns a copy of the tracked set in insertion order.
func (t *Tracker) Vehicles() []Vehicle {
	out := make([]Vehicle, len(t.vehicles))
	copy(out, t.vehicles)
	return out
}
