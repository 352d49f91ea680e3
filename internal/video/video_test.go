package video

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmmndr/accident_alert/internal/motion"
)

// squareFrame draws a bright square with its top-left corner at (x, y) on a
// dark background.
func squareFrame(w, h, x, y int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			c := color.RGBA{R: 30, G: 30, B: 30, A: 255}
			if px >= x && px < x+16 && py >= y && py < y+16 {
				c = color.RGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetRGBA(px, py, c)
		}
	}
	return img
}

func sequence(n int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = squareFrame(64, 48, 4+2*i, 16)
	}
	return frames
}

func TestFlowScorerMotion(t *testing.T) {
	scorer := NewFlowScorer(DefaultFlowParams())
	ctx := context.Background()

	still := squareFrame(64, 48, 20, 16)
	score, err := scorer.Motion(ctx, still, still)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-3)

	moved := squareFrame(64, 48, 23, 16)
	score, err = scorer.Motion(ctx, still, moved)
	require.NoError(t, err)
	assert.Greater(t, score, 0.01)
}

func TestFlowScorerRejectsEmptyFrame(t *testing.T) {
	scorer := NewFlowScorer(DefaultFlowParams())
	_, err := scorer.Motion(context.Background(), image.NewRGBA(image.Rectangle{}), squareFrame(8, 8, 0, 0))
	assert.Error(t, err)
}

func TestWriterDecoderRoundTrip(t *testing.T) {
	const (
		frameCount = 30
		frameRate  = 10.0
	)
	frames := sequence(frameCount)
	w := motion.SelectWindow(15, frameCount, frameRate, 0.5)
	require.Equal(t, motion.Window{Start: 10, End: 20, Peak: 15}, w)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, NewWriter("").Encode(context.Background(), frames[w.Start:w.End], frameRate, path))

	clip, err := Decoder{}.Decode(context.Background(), path)
	require.NoError(t, err)
	defer clip.Close()

	assert.Equal(t, w.Len(), clip.Len())
	assert.InDelta(t, frameRate, clip.FrameRate(), 0.5)
	assert.Equal(t, image.Rect(0, 0, 64, 48), clip.Frame(0).Bounds())
}

func TestWriterEncodeEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp4")
	assert.Error(t, NewWriter("").Encode(context.Background(), nil, 10, path))
	assert.NoFileExists(t, path)
}

func TestWriterEncodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "cancelled.mp4")
	err := NewWriter("").Encode(ctx, sequence(3), 10, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoderMissingFile(t *testing.T) {
	_, err := Decoder{}.Decode(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ErrNotOpened)
}

func TestFFmpegCommand(t *testing.T) {
	enc := &FFmpegEncoder{VideoCodec: "libx264", Preset: "veryfast"}
	in, out := os.Stdin, filepath.Join(t.TempDir(), "out.mp4")

	cmd := enc.command(context.Background(), in, image.Rect(0, 0, 64, 48), 10, out).Compile()

	assert.Same(t, in, cmd.Stdin)
	assert.Equal(t, "-y", cmd.Args[len(cmd.Args)-1])
	assert.Equal(t, out, cmd.Args[len(cmd.Args)-2])
	assert.Contains(t, cmd.Args, "pipe:")
	assert.Contains(t, cmd.Args, "64x48")
	assert.Contains(t, cmd.Args, "libx264")

	i := slices.Index(cmd.Args, "-pix_fmt")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "bgr24", cmd.Args[i+1])
}

func TestFFmpegEncoderRoundTrip(t *testing.T) {
	enc, err := NewFFmpegEncoder()
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, enc.Encode(context.Background(), sequence(12), 10, path))

	clip, err := Decoder{}.Decode(context.Background(), path)
	require.NoError(t, err)
	defer clip.Close()
	assert.Equal(t, 12, clip.Len())
}
