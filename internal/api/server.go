// Package api serves accident detection over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kmmndr/accident_alert/internal/accident"
	"github.com/kmmndr/accident_alert/internal/db"
	"github.com/kmmndr/accident_alert/internal/httputil"
	"github.com/kmmndr/accident_alert/internal/notify"
)

const maxHistoryLimit = 100

// Analyzer decides whether the clip at path shows an accident. A nil
// result with a nil error means it does not.
type Analyzer interface {
	Detect(ctx context.Context, path string) (*accident.Result, error)
}

// Store keeps the accident history.
type Store interface {
	RecordEvent(ctx context.Context, e db.Event) (int64, error)
	RecentEvents(ctx context.Context, limit int) ([]db.Event, error)
	RecentEventsFor(ctx context.Context, email string, limit int) ([]db.Event, error)
}

type Options struct {
	UploadDir       string
	MaxUploadBytes  int64
	AnalysisTimeout time.Duration
	HistoryLimit    int
	CORSOrigins     []string
}

type Server struct {
	analyzer Analyzer
	store    Store
	notifier notify.Notifier
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

func NewServer(analyzer Analyzer, store Store, notifier notify.Notifier, opts Options, logger *zap.Logger) *Server {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 5 * time.Minute
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		analyzer: analyzer,
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/detect_accident", s.detectAccident)
	mux.HandleFunc("/get_history", s.getHistory)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

// Handler is the full API with CORS and access logging.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return LoggingMiddleware(s.logger, c.Handler(s.ServeMux()))
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}
