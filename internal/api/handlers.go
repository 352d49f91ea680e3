package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	uuid "github.com/gofrs/uuid/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kmmndr/accident_alert/internal/accident"
	"github.com/kmmndr/accident_alert/internal/db"
	"github.com/kmmndr/accident_alert/internal/httputil"
	"github.com/kmmndr/accident_alert/internal/notify"
)

const (
	statusAccident   = "accident"
	statusNoAccident = "no_accident"
	// multipart parts above this size spill to temporary files
	multipartMemory = 32 << 20
	// bounds alert delivery and the history write once analysis is done;
	// both outlive the request so a client hanging up does not drop them
	deliverTimeout = 30 * time.Second
)

type detectResponse struct {
	Status   string `json:"status"`
	Email    string `json:"email,omitempty"`
	Severity string `json:"severity,omitempty"`
	Impact   int    `json:"impact,omitempty"`
	Vehicles int    `json:"vehicles,omitempty"`
}

type historyEntry struct {
	Timestamp string `json:"timestamp"`
	Email     string `json:"email"`
	Severity  string `json:"severity"`
	Impact    int    `json:"impact"`
	Vehicles  int    `json:"vehicles"`
}

func (s *Server) detectAccident(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RequestEntityTooLarge(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		httputil.BadRequest(w, "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		httputil.BadRequest(w, "missing email")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		httputil.BadRequest(w, "invalid email")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing file")
		return
	}
	defer file.Close()

	path, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("failed to store upload", zap.Error(err))
		httputil.InternalServerError(w, "failed to store upload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.AnalysisTimeout)
	defer cancel()
	result, err := s.analyzer.Detect(ctx, path)
	if err != nil {
		s.logger.Error("analysis failed", zap.String("path", path), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			httputil.WriteJSONError(w, http.StatusGatewayTimeout, "analysis timed out")
			return
		}
		httputil.InternalServerError(w, analysisFailure(err))
		return
	}
	if result == nil {
		httputil.WriteJSONOK(w, detectResponse{Status: statusNoAccident})
		return
	}

	detectedAt := s.now()
	alert := notify.Alert{
		Recipient:  email,
		Severity:   string(result.Severity),
		Vehicles:   result.VehicleCount,
		Impact:     result.ImpactScore,
		ClipPath:   result.ClipPath,
		DetectedAt: detectedAt,
	}
	deliverCtx, cancelDeliver := context.WithTimeout(context.WithoutCancel(r.Context()), deliverTimeout)
	defer cancelDeliver()
	if err := s.notifier.Notify(deliverCtx, alert); err != nil {
		s.logger.Warn("alert delivery failed", zap.String("email", email), zap.Error(err))
	}

	_, err = s.store.RecordEvent(deliverCtx, db.Event{
		Timestamp: detectedAt,
		Email:     email,
		Severity:  string(result.Severity),
		Impact:    result.ImpactScore,
		Vehicles:  result.VehicleCount,
		ClipPath:  result.ClipPath,
	})
	if err != nil {
		s.logger.Error("failed to record event", zap.Error(err))
		httputil.InternalServerError(w, "failed to record event")
		return
	}

	httputil.WriteJSONOK(w, detectResponse{
		Status:   statusAccident,
		Email:    email,
		Severity: string(result.Severity),
		Impact:   result.ImpactScore,
		Vehicles: result.VehicleCount,
	})
}

func analysisFailure(err error) string {
	switch {
	case errors.Is(err, accident.ErrDecode):
		return "could not decode video"
	case errors.Is(err, accident.ErrEncode):
		return "could not write evidence clip"
	default:
		return "analysis failed"
	}
}

// saveUpload copies the upload under a unique, sanitized name.
func (s *Server) saveUpload(src io.Reader, filename string) (_ string, err error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.opts.UploadDir, id.String()+"_"+sanitizeFilename(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		err = multierr.Append(err, dst.Close())
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// sanitizeFilename keeps the base name of a client supplied filename and
// replaces anything outside [A-Za-z0-9._-].
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload.mp4"
	}
	return name
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := s.opts.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		events []db.Event
		err    error
	)
	if email := strings.TrimSpace(r.URL.Query().Get("email")); email != "" {
		events, err = s.store.RecentEventsFor(r.Context(), email, limit)
	} else {
		events, err = s.store.RecentEvents(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("failed to load history", zap.Error(err))
		httputil.InternalServerError(w, "failed to load history")
		return
	}

	entries := make([]historyEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, historyEntry{
			Timestamp: e.FormattedTimestamp(),
			Email:     e.Email,
			Severity:  e.Severity,
			Impact:    e.Impact,
			Vehicles:  e.Vehicles,
		})
	}
	httputil.WriteJSONOK(w, entries)
}
