// Package video holds the OpenCV side of clip handling: decoding clips into
// frame buffers, measuring optical flow between frames and writing
// evidence clips.
package video

import (
	"context"

	"github.com/kmmndr/accident_alert/internal/accident"
)

// Decoder reads whole clips from disk.
type Decoder struct{}

func (Decoder) Decode(ctx context.Context, videoPath string) (accident.Clip, error) {
	stream, err := NewFileStream(videoPath)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	buf, err := stream.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
