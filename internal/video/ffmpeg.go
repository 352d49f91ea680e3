package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/kmmndr/accident_alert/internal/frame"
)

// FFmpegEncoder pipes raw BGR frames into an ffmpeg process and writes
// H.264 clips that browsers and mail clients can play.
type FFmpegEncoder struct {
	VideoCodec string
	Preset     string
}

func NewFFmpegEncoder() (*FFmpegEncoder, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}
	return &FFmpegEncoder{VideoCodec: "libx264", Preset: "veryfast"}, nil
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames []image.Image, frameRate float64, path string) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	size := frames[0].Bounds()

	in, out := io.Pipe()
	go func() {
		out.CloseWithError(writeRaw(out, frames))
	}()

	stream := e.command(ctx, in, size, frameRate, path)
	runErr := stream.Run()
	// unblock the writer if ffmpeg exited early
	return multierr.Append(runErr, in.Close())
}

// command builds the ffmpeg invocation reading raw frames from in. The
// context must be set before the stdin and overwrite options, which are
// stored on it.
func (e *FFmpegEncoder) command(ctx context.Context, in io.Reader, size image.Rectangle, frameRate float64, path string) *ffmpeg.Stream {
	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "bgr24",
		"s":         fmt.Sprintf("%dx%d", size.Dx(), size.Dy()),
		"framerate": frameRate,
	}).Output(path, ffmpeg.KwArgs{
		"vcodec":   e.VideoCodec,
		"preset":   e.Preset,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	})
	stream.Context = ctx
	return stream.OverWriteOutput().WithInput(in)
}

func writeRaw(w io.Writer, frames []image.Image) error {
	for i, img := range frames {
		if err := writeRawFrame(w, img); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

func writeRawFrame(w io.Writer, img image.Image) error {
	f, copied, err := frame.FromImage(img)
	if err != nil {
		return err
	}
	if copied {
		defer f.Close()
	}

	mat := *f.Mat()
	if mat.Channels() != 3 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		if mat.Channels() == 1 {
			gocv.CvtColor(mat, &bgr, gocv.ColorGrayToBGR)
		} else {
			gocv.CvtColor(mat, &bgr, gocv.ColorBGRAToBGR)
		}
		mat = bgr
	}

	_, err = w.Write(mat.ToBytes())
	return err
}
