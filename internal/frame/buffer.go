package frame

import (
	"image"
	"sync"
)

// Buffer holds every frame of a decoded clip in order. It owns the frames
// and releases them on Close.
type Buffer struct {
	frames []*Frame
	fps    float64

	closeOnce sync.Once
}

func NewBuffer(fps float64) *Buffer {
	return &Buffer{fps: fps}
}

// Append takes ownership of f.
func (b *Buffer) Append(f *Frame) {
	b.frames = append(b.frames, f)
}

func (b *Buffer) Len() int {
	return len(b.frames)
}

// Frame returns the frame at index i as an image.Image backed by the
// buffer's matrix.
func (b *Buffer) Frame(i int) image.Image {
	return b.frames[i]
}

func (b *Buffer) FrameRate() float64 {
	return b.fps
}

func (b *Buffer) Close() error {
	b.closeOnce.Do(func() {
		for _, f := range b.frames {
			f.Close()
		}
		b.frames = nil
	})
	return nil
}
