package tracking

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1.0},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0.0},
		{"touching edges", image.Rect(0, 0, 10, 10), image.Rect(10, 0, 20, 10), 0.0},
		{"half", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 20), 0.5},
		{"third", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), 50.0 / 150.0},
		{"contained", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 5, 5), 0.25},
		{"degenerate", image.Rect(0, 0, 0, 0), image.Rect(0, 0, 0, 0), 0.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-6)
			assert.InDelta(t, IoU(tt.a, tt.b), IoU(tt.b, tt.a), 1e-12, "IoU must be symmetric")
		})
	}
}

func TestIsVehicle(t *testing.T) {
	t.Parallel()

	for _, c := range []string{"car", "truck", "bus", "motorcycle"} {
		assert.True(t, IsVehicle(c), c)
	}
	for _, c := range []string{"person", "bicycle", "Car", ""} {
		assert.False(t, IsVehicle(c), c)
	}
}

func TestVehiclesOnly(t *testing.T) {
	t.Parallel()

	in := []Box{
		NewBox(0, 0, 10, 10, Car),
		NewBox(0, 0, 10, 10, "person"),
		NewBox(5, 5, 20, 20, Bus),
	}
	got := VehiclesOnly(in)
	require.Len(t, got, 2)
	assert.Equal(t, Car, got[0].Class)
	assert.Equal(t, Bus, got[1].Class)
}

func TestTracker(t *testing.T) {
	t.Parallel()

	t.Run("overlapping boxes in consecutive frames are one vehicle", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(DefaultIoUThreshold)
		tr.Observe(0, []Box{NewBox(0, 0, 10, 10, Car)})
		tr.Observe(1, []Box{NewBox(0, 0, 10, 20, Car)})

		assert.Equal(t, 1, tr.Count())
		assert.InDelta(t, 0.5, tr.MaxIoU(), 1e-6)

		v := tr.Vehicles()[0]
		assert.Equal(t, image.Rect(0, 0, 10, 20), v.Box.Rect, "box is replaced by the latest match")
		assert.Equal(t, 2, v.Hits)
		assert.Equal(t, 0, v.FirstFrame)
		assert.Equal(t, 1, v.LastFrame)
	})

	t.Run("weakly overlapping boxes in one frame are two vehicles", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(DefaultIoUThreshold)
		tr.Observe(0, []Box{
			NewBox(0, 0, 10, 10, Car),
			NewBox(9, 0, 19, 10, Truck),
		})

		assert.Equal(t, 2, tr.Count())
		assert.InDelta(t, 10.0/190.0, tr.MaxIoU(), 1e-6)
		assert.Equal(t, 1, tr.Comparisons())
	})

	t.Run("no comparisons leaves max IoU at zero", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(DefaultIoUThreshold)
		tr.Observe(0, nil)
		tr.Observe(1, []Box{NewBox(0, 0, 10, 10, Car)})

		assert.Equal(t, 1, tr.Count())
		assert.Equal(t, 0.0, tr.MaxIoU())
		assert.Equal(t, 0, tr.Comparisons())
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(0.5)
		tr.Observe(0, []Box{NewBox(0, 0, 10, 10, Car)})
		// exactly 0.5 minus epsilon never exceeds 0.5
		tr.Observe(1, []Box{NewBox(0, 0, 10, 20, Car)})
		assert.Equal(t, 2, tr.Count())
	})

	t.Run("first match in insertion order wins", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(0.3)
		tr.Observe(0, []Box{
			NewBox(0, 0, 10, 10, Car),
			NewBox(6, 0, 16, 10, Car),
		})
		require.Equal(t, 2, tr.Count())

		// overlaps both tracks above the threshold, the better match is second
		tr.Observe(1, []Box{NewBox(4, 0, 14, 10, Bus)})

		vehicles := tr.Vehicles()
		require.Len(t, vehicles, 2)
		assert.Equal(t, Bus, vehicles[0].Box.Class)
		assert.Equal(t, Car, vehicles[1].Box.Class)
	})

	t.Run("vehicles returns a copy", func(t *testing.T) {
		t.Parallel()
		tr := NewTracker(DefaultIoUThreshold)
		tr.Observe(0, []Box{NewBox(0, 0, 10, 10, Car)})

		vs := tr.Vehicles()
		vs[0].Hits = 99
		assert.Equal(t, 1, tr.Vehicles()[0].Hits)
	})

	t.Run("non-positive threshold falls back to default", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, DefaultIoUThreshold, NewTracker(0).threshold)
	})
}

func TestTrackerDeterministic(t *testing.T) {
	t.Parallel()

	frames := [][]Box{
		{NewBox(0, 0, 50, 50, Car), NewBox(100, 100, 150, 150, Truck)},
		{NewBox(5, 5, 55, 55, Car), NewBox(40, 40, 90, 90, Bus)},
		{NewBox(10, 10, 60, 60, Car), NewBox(95, 95, 145, 145, Truck), NewBox(42, 42, 92, 92, Bus)},
	}

	run := func() []Vehicle {
		tr := NewTracker(DefaultIoUThreshold)
		for i, boxes := range frames {
			tr.Observe(i, boxes)
		}
		return tr.Vehicles()
	}

	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("tracker output differs between runs (-first +second):\n%s", diff)
	}
}
