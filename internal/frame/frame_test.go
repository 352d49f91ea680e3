package frame

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFromImage(t *testing.T) {
	red := color.RGBA{R: 200, G: 10, B: 20, A: 255}
	f, copied, err := FromImage(solid(8, 4, red))
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, copied)
	assert.Equal(t, 3, f.Mat().Channels())
	assert.Equal(t, image.Rect(0, 0, 8, 4), f.Bounds())
	assert.Equal(t, red, f.At(3, 2))
	assert.Equal(t, color.RGBA{}, f.At(8, 0))

	same, copied, err := FromImage(f)
	require.NoError(t, err)
	assert.False(t, copied)
	assert.Same(t, f, same)
}

func TestGray(t *testing.T) {
	f, _, err := FromImage(solid(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255}))
	require.NoError(t, err)
	defer f.Close()

	gray, err := f.Gray()
	require.NoError(t, err)
	defer gray.Close()

	assert.Equal(t, 1, gray.Mat().Channels())
	assert.Equal(t, color.GrayModel, gray.ColorModel())
	assert.Equal(t, color.Gray{Y: 255}, gray.At(1, 1))
}

func TestNewFrameRejectsEmpty(t *testing.T) {
	mat := gocv.NewMat()
	defer mat.Close()

	_, err := NewFrame(0, &mat)
	assert.Error(t, err)
}

func TestBuffer(t *testing.T) {
	buf := NewBuffer(30)
	for i := 0; i < 3; i++ {
		mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
		f, err := NewFrame(i, &mat)
		require.NoError(t, err)
		buf.Append(f)
	}

	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, 30.0, buf.FrameRate())
	assert.Equal(t, 2, buf.Frame(2).(*Frame).FrameIndex())

	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())
	assert.Equal(t, 0, buf.Len())
}
