package detection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmmndr/accident_alert/internal/tracking"
)

// head builds an attribute major output for anchors given as
// (cx, cy, w, h, classID, score).
func head(classes int, anchors [][6]float32) []float32 {
	attrs := 4 + classes
	n := len(anchors)
	data := make([]float32, attrs*n)
	for i, a := range anchors {
		for k := 0; k < 4; k++ {
			data[k*n+i] = a[k]
		}
		data[(4+int(a[4]))*n+i] = a[5]
	}
	return data
}

func TestDecodeOutput(t *testing.T) {
	data := head(10, [][6]float32{
		{50, 50, 20, 10, 2, 0.9},    // car
		{100, 100, 40, 40, 0, 0.95}, // person
		{200, 50, 10, 10, 7, 0.1},   // truck below threshold
		{300, 300, 60, 20, 5, 0.5},  // bus
	})

	got := decodeOutput(data, 14, 4, scaling{x: 2, y: 1}, DefaultConfThreshold)
	require.Len(t, got, 2)

	assert.Equal(t, tracking.Car, got[0].box.Class)
	assert.Equal(t, image.Rect(80, 45, 120, 55), got[0].box.Rect)
	assert.InDelta(t, 0.9, got[0].box.Confidence, 1e-6)

	assert.Equal(t, tracking.Bus, got[1].box.Class)
	assert.Equal(t, 5, got[1].classID)
	assert.Equal(t, image.Rect(540, 290, 660, 310), got[1].box.Rect)
}

func TestSuppress(t *testing.T) {
	t.Run("overlapping boxes of one class", func(t *testing.T) {
		cands := []candidate{
			{box: tracking.NewBox(0, 0, 100, 100, tracking.Car), classID: 2, score: 0.6},
			{box: tracking.NewBox(2, 2, 102, 102, tracking.Car), classID: 2, score: 0.9},
		}
		got := suppress(cands, DefaultConfThreshold, DefaultNMSThreshold)
		require.Len(t, got, 1)
		assert.Equal(t, image.Rect(2, 2, 102, 102), got[0].Rect)
	})

	t.Run("classes do not suppress each other", func(t *testing.T) {
		cands := []candidate{
			{box: tracking.NewBox(0, 0, 100, 100, tracking.Car), classID: 2, score: 0.6},
			{box: tracking.NewBox(0, 0, 100, 100, tracking.Truck), classID: 7, score: 0.9},
		}
		got := suppress(cands, DefaultConfThreshold, DefaultNMSThreshold)
		assert.Len(t, got, 2)
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Nil(t, suppress(nil, DefaultConfThreshold, DefaultNMSThreshold))
	})
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{"": BackendAuto, "AUTO": BackendAuto, "cpu": BackendCPU, " cuda ": BackendCUDA} {
		got, err := ParseBackend(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseBackend("tpu")
	assert.Error(t, err)
}
