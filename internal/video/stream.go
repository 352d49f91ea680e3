package video

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/kmmndr/accident_alert/internal/frame"
)

var ErrNotOpened = errors.New("video source not opened")

type Stream struct {
	Video *gocv.VideoCapture
}

func NewFileStream(videoPath string) (*Stream, error) {
	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		video.Close()
		return nil, fmt.Errorf("unable to open video file %s: %w: %w", videoPath, ErrNotOpened, err)
	}
	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("unable to open video file %s: %w", videoPath, ErrNotOpened)
	}
	return &Stream{Video: video}, nil
}

func (s *Stream) Close() {
	s.Video.Close()
}

// Fps is the frame rate reported by the container, 0 when unknown.
func (s *Stream) Fps() float64 {
	return s.Video.Get(gocv.VideoCaptureFPS)
}

// Read decodes the next frame and tags it with frameIndex. It returns nil
// at the end of the stream.
func (s *Stream) Read(frameIndex int) *frame.Frame {
	mat := gocv.NewMat()
	if ok := s.Video.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil
	}

	f, err := frame.NewFrame(frameIndex, &mat)
	if err != nil {
		mat.Close()
		return nil
	}
	return f
}

// ReadAll decodes the remaining frames into a buffer.
func (s *Stream) ReadAll(ctx context.Context) (*frame.Buffer, error) {
	buf := frame.NewBuffer(s.Fps())
	for frameIndex := 0; ; frameIndex++ {
		if err := ctx.Err(); err != nil {
			buf.Close()
			return nil, err
		}

		f := s.Read(frameIndex)
		if f == nil {
			break
		}
		buf.Append(f)
	}
	return buf, nil
}
