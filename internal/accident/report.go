package accident

import (
	"fmt"
	"time"

	uuid "github.com/gofrs/uuid/v5"
)

// Report is the printable summary of an analysis.
type Report struct {
	UUID       string    `json:"uuid"`
	Clip       string    `json:"clip"`
	Verdict    string    `json:"verdict"`
	Rejection  Rejection `json:"rejection,omitempty"`
	Stage      Stage     `json:"stage"`
	Frames     int       `json:"frames"`
	FrameRate  string    `json:"frame_rate"`
	PeakMotion string    `json:"peak_motion"`
	MeanMotion string    `json:"mean_motion"`
	MaxIoU     string    `json:"max_iou"`
	Vehicles   int       `json:"vehicles"`
	Duration   string    `json:"duration"`
	Date       string    `json:"date"`
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

const (
	VerdictAccident   = "accident"
	VerdictNoAccident = "no_accident"
	VerdictFailed     = "failed"
)

func NewReport(a *Analysis, elapsed time.Duration) (*Report, error) {
	ref, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID: %w", err)
	}

	verdict := VerdictNoAccident
	if a.Accident() {
		verdict = VerdictAccident
	}

	return &Report{
		UUID:       ref.String(),
		Clip:       a.Path,
		Verdict:    verdict,
		Rejection:  a.Rejection,
		Stage:      a.Stage,
		Frames:     a.Frames,
		FrameRate:  fmt.Sprintf("%.2f", a.FrameRate),
		PeakMotion: fmt.Sprintf("%.2f", a.PeakMotion),
		MeanMotion: fmt.Sprintf("%.2f", a.MeanMotion),
		MaxIoU:     fmt.Sprintf("%.2f", a.MaxIoU),
		Vehicles:   a.VehicleCount,
		Duration:   fmt.Sprintf("%.2f", elapsed.Seconds()),
		Date:       time.Now().Format(time.RFC3339),
		Result:     a.Result,
	}, nil
}

// NewFailureReport describes a clip whose analysis failed.
func NewFailureReport(path string, analysisErr error, elapsed time.Duration) (*Report, error) {
	ref, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID: %w", err)
	}

	return &Report{
		UUID:     ref.String(),
		Clip:     path,
		Verdict:  VerdictFailed,
		Duration: fmt.Sprintf("%.2f", elapsed.Seconds()),
		Date:     time.Now().Format(time.RFC3339),
		Error:    analysisErr.Error(),
	}, nil
}
