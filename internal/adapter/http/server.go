package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crash-mapper/internal/domain"
	"github.com/couchcryptid/crash-mapper/internal/mapview"
	"github.com/couchcryptid/crash-mapper/internal/pipeline"
	"github.com/couchcryptid/crash-mapper/internal/session"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html.tmpl"))

// UploadProcessor turns uploaded bytes into a result.
type UploadProcessor interface {
	sharedobs.ReadinessChecker
	ProcessUpload(ctx context.Context, raw []byte) (*pipeline.Result, error)
}

// HTMLWriter is implemented by layers that render as a standalone page.
type HTMLWriter interface {
	WriteHTML(w io.Writer, title string) error
}

// Server exposes the upload UI, the results API, and health, readiness and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	processor  UploadProcessor
	store      *session.Store[*pipeline.Result]
	maxUpload  int64
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Uploads larger than maxUpload bytes are
// rejected with 413.
func NewServer(addr string, processor UploadProcessor, store *session.Store[*pipeline.Result], maxUpload int64, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		processor: processor,
		store:     store,
		maxUpload: maxUpload,
		logger:    logger,
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /uploads", s.handleUpload)
	mux.HandleFunc("GET /uploads/{id}", s.handleResult)
	mux.HandleFunc("GET /uploads/{id}/maps/{subset}/{mode}", s.handleMap)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(processor))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, "index.html.tmpl", nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	raw, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.processor.ProcessUpload(r.Context(), raw)
	if err != nil {
		var malformed *domain.MalformedInputError
		switch {
		case errors.As(err, &malformed):
			writeError(w, http.StatusUnprocessableEntity, malformed.Error())
		case errors.Is(err, domain.ErrUnreadableInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("process upload failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process upload")
		}
		return
	}

	s.store.Put(res.ID, res)

	if wantsHTML(r) {
		http.Redirect(w, r, "/uploads/"+res.ID, http.StatusSeeOther)
		return
	}
	w.Header().Set("Location", "/uploads/"+res.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if wantsHTML(r) {
		s.renderPage(w, "result.html.tmpl", resultPage{
			Result: res,
			Panels: []pipeline.Panel{res.All, res.North, res.South},
			Legend: severityLegend(res.Records),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	res, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	subset, ok := domain.ParseBucket(r.PathValue("subset"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown subset")
		return
	}
	mode, ok := mapview.ParseMode(r.PathValue("mode"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown map mode")
		return
	}

	panel, _ := res.Panel(subset)
	if panel.Notice != "" {
		writeError(w, http.StatusNotFound, panel.Notice)
		return
	}
	page, ok := panel.Layer(mode).(HTMLWriter)
	if !ok {
		writeError(w, http.StatusNotFound, "map not available")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.WriteHTML(w, MapTitle(subset, mode)); err != nil {
		s.logger.Error("render map failed", "upload_id", res.ID, "subset", subset, "mode", mode, "error", err)
	}
}

// MapTitle names a rendered map, e.g. "Northbound Crashes: Weighted Heatmap".
func MapTitle(subset domain.DirectionBucket, mode mapview.Mode) string {
	name := "Crashes"
	if subset != domain.BucketAll {
		name = subset.Title() + " Crashes"
	}
	if mode == mapview.ModeHeatWeighted {
		return name + ": Weighted Heatmap"
	}
	return name + ": Severity Markers"
}

type resultPage struct {
	*pipeline.Result
	Panels []pipeline.Panel
	Legend []legendEntry
}

type legendEntry struct {
	Label string
	Color string
	Count int
}

// severityLegend counts records per severity, most severe first.
func severityLegend(records []domain.ClassifiedRecord) []legendEntry {
	counts := make(map[domain.Severity]int, len(domain.Severities))
	for _, r := range records {
		counts[r.Severity]++
	}
	legend := make([]legendEntry, 0, len(domain.Severities))
	for _, sev := range domain.Severities {
		legend = append(legend, legendEntry{
			Label: sev.Label(),
			Color: domain.SeverityColor(sev),
			Count: counts[sev],
		})
	}
	return legend
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render page failed", "page", name, "error", err)
	}
}

// readUpload returns the "file" part of a multipart form, or the raw body for
// any other content type.
func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("multipart upload: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only multipart part
	return io.ReadAll(file)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
