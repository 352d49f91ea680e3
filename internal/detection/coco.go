package detection

import "github.com/kmmndr/accident_alert/internal/tracking"

// COCO class ids of the vehicle classes.
var cocoVehicles = map[int]tracking.Class{
	2: tracking.Car,
	3: tracking.Motorcycle,
	5: tracking.Bus,
	7: tracking.Truck,
}
