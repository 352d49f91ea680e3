package video

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/kmmndr/accident_alert/internal/frame"
)

const DefaultCodec = "mp4v"

// Writer encodes frames with OpenCV's VideoWriter. All frames are written
// at the size of the first one.
type Writer struct {
	Codec string
}

func NewWriter(codec string) *Writer {
	if codec == "" {
		codec = DefaultCodec
	}
	return &Writer{Codec: codec}
}

func (w *Writer) Encode(ctx context.Context, frames []image.Image, frameRate float64, path string) (err error) {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}

	first := frames[0].Bounds()
	writer, err := gocv.VideoWriterFile(path, w.Codec, frameRate, first.Dx(), first.Dy(), true)
	if err != nil {
		return fmt.Errorf("unable to open video writer: %w", err)
	}
	defer func() {
		err = multierr.Append(err, writer.Close())
	}()
	if !writer.IsOpened() {
		return fmt.Errorf("unable to open %s for writing: %w", path, ErrNotOpened)
	}

	for i, img := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFrame(writer, img); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

func writeFrame(writer *gocv.VideoWriter, img image.Image) error {
	f, copied, err := frame.FromImage(img)
	if err != nil {
		return err
	}
	if copied {
		defer f.Close()
	}
	return writer.Write(*f.Mat())
}
