package tracking

import (
	"fmt"
	"image"

	"github.com/samber/lo"
)

// Class is the label an object detector attaches to a box.
type Class string

const (
	Car        Class = "car"
	Truck      Class = "truck"
	Bus        Class = "bus"
	Motorcycle Class = "motorcycle"
)

// VehicleClasses lists the labels the tracker accepts.
var VehicleClasses = []Class{Car, Truck, Bus, Motorcycle}

// IsVehicle reports whether label names one of the tracked vehicle classes.
func IsVehicle(label string) bool {
	return lo.Contains(VehicleClasses, Class(label))
}

// Box is an axis-aligned detection in frame pixel coordinates.
type Box struct {
	Rect       image.Rectangle `json:"rect"`
	Class      Class           `json:"class"`
	Confidence float64         `json:"confidence"`
}

func NewBox(x1, y1, x2, y2 int, class Class) Box {
	return Box{Rect: image.Rect(x1, y1, x2, y2), Class: class}
}

func (b Box) Area() int {
	return b.Rect.Dx() * b.Rect.Dy()
}

func (b Box) String() string {
	return fmt.Sprintf("%s(%d,%d,%d,%d)", b.Class, b.Rect.Min.X, b.Rect.Min.Y, b.Rect.Max.X, b.Rect.Max.Y)
}

// VehiclesOnly drops boxes whose class is not a vehicle class.
func VehiclesOnly(boxes []Box) []Box {
	return lo.Filter(boxes, func(b Box, _ int) bool {
		return IsVehicle(string(b.Class))
	})
}

const iouEpsilon = 1e-6

// IoU returns the intersection over union of two rectangles. The epsilon in
// the denominator keeps degenerate boxes from dividing by zero.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	interArea := 0.0
	if !inter.Empty() {
		interArea = float64(inter.Dx() * inter.Dy())
	}
	areaA := float64(a.Dx() * a.Dy())
	areaB := float64(b.Dx() * b.Dy())

	return interArea / (areaA + areaB - interArea + iouEpsilon)
}
