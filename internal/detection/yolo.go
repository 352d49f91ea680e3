package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/kmmndr/accident_alert/internal/frame"
	"github.com/kmmndr/accident_alert/internal/tracking"
)

const (
	DefaultInputSize     = 640
	DefaultConfThreshold = 0.25
	DefaultNMSThreshold  = 0.45
)

type Options struct {
	ModelPath     string
	Backend       Backend
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
	Logger        *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Backend == "" {
		o.Backend = BackendAuto
	}
	if o.InputSize <= 0 {
		o.InputSize = DefaultInputSize
	}
	if o.ConfThreshold <= 0 {
		o.ConfThreshold = DefaultConfThreshold
	}
	if o.NMSThreshold <= 0 {
		o.NMSThreshold = DefaultNMSThreshold
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// YOLO is a vehicle detector backed by a YOLOv8 ONNX export. A single
// network is not safe for concurrent forward passes, so Detect serializes
// callers.
type YOLO struct {
	mu   sync.Mutex
	net  gocv.Net
	opts Options
	info ProviderInfo
}

// NewYOLO loads the model. With BackendAuto a CUDA network is tried first
// and abandoned for the CPU if a test inference fails.
func NewYOLO(opts Options) (*YOLO, error) {
	opts.setDefaults()
	if opts.ModelPath == "" {
		return nil, errors.New("no detector model path")
	}

	backend := opts.Backend.resolve(opts.Logger)
	y, err := loadYOLO(opts, backend)
	if err == nil {
		return y, nil
	}
	if opts.Backend != BackendAuto || backend == BackendCPU {
		return nil, err
	}

	opts.Logger.Warn("CUDA inference unavailable, falling back to CPU", zap.Error(err))
	return loadYOLO(opts, BackendCPU)
}

func loadYOLO(opts Options, backend Backend) (*YOLO, error) {
	start := time.Now()

	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO network from %s", opts.ModelPath)
	}
	b, t := backend.netBackend()
	if err := net.SetPreferableBackend(b); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(t); err != nil {
		net.Close()
		return nil, err
	}

	y := &YOLO{net: net, opts: opts}
	if err := y.warmUp(); err != nil {
		net.Close()
		return nil, fmt.Errorf("%s test inference: %w", backend, err)
	}

	device := "CPU"
	if backend == BackendCUDA {
		device = "CUDA"
	}
	y.info = ProviderInfo{Backend: backend, Device: device, InitTime: time.Since(start)}
	opts.Logger.Info("detector ready",
		zap.String("model", opts.ModelPath),
		zap.String("backend", string(backend)),
		zap.Duration("init", y.info.InitTime))
	return y, nil
}

func (y *YOLO) warmUp() error {
	test := gocv.NewMatWithSize(y.opts.InputSize, y.opts.InputSize, gocv.MatTypeCV8UC3)
	defer test.Close()

	_, err := y.detectMat(test)
	return err
}

func (y *YOLO) Info() ProviderInfo {
	return y.info
}

// Detect returns the vehicles in img, highest confidence first.
func (y *YOLO) Detect(ctx context.Context, img image.Image) ([]tracking.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, copied, err := frame.FromImage(img)
	if err != nil {
		return nil, err
	}
	if copied {
		defer f.Close()
	}
	return y.detectMat(*f.Mat())
}

func (y *YOLO) detectMat(mat gocv.Mat) ([]tracking.Box, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	size := y.opts.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	scale := scaling{
		x: float32(mat.Cols()) / float32(size),
		y: float32(mat.Rows()) / float32(size),
	}
	candidates := decodeOutput(data, dims[1], dims[2], scale, y.opts.ConfThreshold)
	return suppress(candidates, y.opts.ConfThreshold, y.opts.NMSThreshold), nil
}

func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}

type scaling struct {
	x, y float32
}

type candidate struct {
	box     tracking.Box
	classID int
	score   float32
}

// decodeOutput reads a (4+classes, anchors) YOLOv8 head laid out attribute
// major. Each anchor is (cx, cy, w, h, class scores...) in network input
// pixels. Anchors whose best class is not a vehicle are dropped.
func decodeOutput(data []float32, attrs, anchors int, scale scaling, confThreshold float32) []candidate {
	var out []candidate
	for i := 0; i < anchors; i++ {
		classID, score := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > score {
				classID, score = c-4, s
			}
		}
		if classID < 0 || score < confThreshold {
			continue
		}
		class, ok := cocoVehicles[classID]
		if !ok {
			continue
		}

		cx := data[i] * scale.x
		cy := data[anchors+i] * scale.y
		w := data[2*anchors+i] * scale.x
		h := data[3*anchors+i] * scale.y

		box := tracking.NewBox(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2), class)
		box.Confidence = float64(score)
		out = append(out, candidate{box: box, classID: classID, score: score})
	}
	return out
}

// classOffset separates classes in coordinate space so a single NMS pass
// never suppresses a box with one of another class.
const classOffset = 1 << 16

func suppress(candidates []candidate, confThreshold, nmsThreshold float32) []tracking.Box {
	if len(candidates) == 0 {
		return nil
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		rects[i] = c.box.Rect.Add(image.Pt(c.classID*classOffset, 0))
		scores[i] = c.score
	}

	keep := gocv.NMSBoxes(rects, scores, confThreshold, nmsThreshold)
	boxes := make([]tracking.Box, 0, len(keep))
	for _, idx := range keep {
		boxes = append(boxes, candidates[idx].box)
	}
	return boxes
}
