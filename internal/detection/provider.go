// Package detection runs a YOLOv8 ONNX model through OpenCV's DNN module
// and reports the vehicles it finds.
package detection

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
	"go.uber.org/zap"
)

// Backend selects where inference runs.
type Backend string

const (
	BackendAuto Backend = "auto"
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendCPU, BackendCUDA:
		return b, nil
	default:
		return "", fmt.Errorf("unknown detector backend %q", s)
	}
}

// ProviderInfo describes the backend a model ended up on.
type ProviderInfo struct {
	Backend  Backend       `json:"backend"`
	Device   string        `json:"device"`
	InitTime time.Duration `json:"init_time"`
}

func (b Backend) netBackend() (gocv.NetBackendType, gocv.NetTargetType) {
	if b == BackendCUDA {
		return gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	return gocv.NetBackendDefault, gocv.NetTargetCPU
}

// resolve turns auto into a concrete backend by probing for an NVIDIA GPU.
func (b Backend) resolve(logger *zap.Logger) Backend {
	if b != BackendAuto {
		return b
	}
	if hasNVIDIAGPU() && hasNVIDIADriver() {
		logger.Debug("NVIDIA GPU and driver found, trying CUDA")
		return BackendCUDA
	}
	logger.Debug("no usable GPU, using CPU")
	return BackendCPU
}

func hasNVIDIAGPU() bool {
	output, err := exec.Command("lspci").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(output)), "nvidia")
}

func hasNVIDIADriver() bool {
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}
