package frame

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame is a decoded video frame backed by an OpenCV matrix. It implements
// image.Image so it can travel through code that knows nothing of OpenCV,
// while OpenCV consumers reach the matrix through Mat.
type Frame struct {
	frameIndex int
	mat        *gocv.Mat
}

func NewFrame(frameIndex int, mat *gocv.Mat) (*Frame, error) {
	if mat.Empty() {
		return nil, errors.New("Frame is empty")
	}

	return &Frame{frameIndex: frameIndex, mat: mat}, nil
}

// FromImage copies img into a new BGR frame. Frames are returned as is.
// The caller owns the returned frame when copied is true.
func FromImage(img image.Image) (f *Frame, copied bool, err error) {
	if f, ok := img.(*Frame); ok {
		return f, false, nil
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, false, err
	}
	f, err = NewFrame(-1, &mat)
	if err != nil {
		mat.Close()
		return nil, false, err
	}
	return f, true, nil
}

func (f *Frame) Mat() *gocv.Mat {
	return f.mat
}

func (f *Frame) FrameIndex() int {
	return f.frameIndex
}

// Gray returns a single channel copy of the frame.
func (f *Frame) Gray() (*Frame, error) {
	gray := gocv.NewMat()
	switch f.mat.Channels() {
	case 1:
		f.mat.CopyTo(&gray)
	case 4:
		gocv.CvtColor(*f.mat, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(*f.mat, &gray, gocv.ColorBGRToGray)
	}

	return NewFrame(f.frameIndex, &gray)
}

func (f *Frame) Height() int {
	return f.mat.Rows()
}

func (f *Frame) Width() int {
	return f.mat.Cols()
}

func (f *Frame) Close() {
	f.mat.Close()
}

func (f *Frame) ColorModel() color.Model {
	if f.mat.Channels() == 1 {
		return color.GrayModel
	}
	return color.RGBAModel
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width(), f.Height())
}

// At reads one pixel. It goes through cgo for every call; bulk consumers
// should use Mat.
func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(f.Bounds()) {
		return color.RGBA{}
	}

	switch f.mat.Channels() {
	case 1:
		return color.Gray{Y: f.mat.GetUCharAt(y, x)}
	case 4:
		v := f.mat.GetVecbAt(y, x)
		return color.RGBA{R: v[2], G: v[1], B: v[0], A: v[3]}
	default:
		v := f.mat.GetVecbAt(y, x)
		return color.RGBA{R: v[2], G: v[1], B: v[0], A: 255}
	}
}
