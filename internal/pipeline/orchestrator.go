package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/crash-mapper/internal/domain"
	"github.com/couchcryptid/crash-mapper/internal/mapview"
	"github.com/couchcryptid/crash-mapper/internal/observability"
)

// WorkbookReader decodes uploaded bytes into a worksheet and its date system.
type WorkbookReader interface {
	ReadWorkbook(data []byte) (domain.Workbook, error)
}

// Publisher forwards classified records downstream.
type Publisher interface {
	Publish(ctx context.Context, uploadID string, records []domain.ClassifiedRecord) error
}

// Subsets are the direction filters rendered for every upload, in display order.
var Subsets = []domain.DirectionBucket{domain.BucketAll, domain.BucketNorth, domain.BucketSouth}

// Modes are the layer kinds rendered for every subset.
var Modes = []mapview.Mode{mapview.ModeSeverityMarkers, mapview.ModeHeatWeighted}

// Panel holds the two layers for one direction subset, or a notice when the
// subset has no records.
type Panel struct {
	Subset  domain.DirectionBucket `json:"subset"`
	Title   string                 `json:"title"`
	Count   int                    `json:"count"`
	Notice  string                 `json:"notice,omitempty"`
	Markers mapview.Layer          `json:"markers,omitempty"`
	Heat    mapview.Layer          `json:"heat,omitempty"`
}

// Layer returns the panel's layer for mode, or nil.
func (p *Panel) Layer(mode mapview.Mode) mapview.Layer {
	switch mode {
	case mapview.ModeSeverityMarkers:
		return p.Markers
	case mapview.ModeHeatWeighted:
		return p.Heat
	default:
		return nil
	}
}

// Result is everything produced for one upload.
type Result struct {
	ID          string                    `json:"id"`
	Format      domain.Format             `json:"format"`
	Records     []domain.ClassifiedRecord `json:"records"`
	Dropped     []domain.DroppedRow       `json:"dropped,omitempty"`
	All         Panel                     `json:"all"`
	North       Panel                     `json:"north"`
	South       Panel                     `json:"south"`
	Warnings    []string                  `json:"warnings,omitempty"`
	ProcessedAt time.Time                 `json:"processed_at"`
}

// Panel returns the panel for a subset.
func (r *Result) Panel(subset domain.DirectionBucket) (*Panel, bool) {
	switch subset {
	case domain.BucketAll:
		return &r.All, true
	case domain.BucketNorth:
		return &r.North, true
	case domain.BucketSouth:
		return &r.South, true
	default:
		return nil, false
	}
}

// Orchestrator runs an upload through read, detect, parse, classify and
// build for each direction subset.
type Orchestrator struct {
	reader     WorkbookReader
	classifier *domain.Classifier
	builder    *mapview.Builder
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates an Orchestrator. publisher may be nil.
func New(reader WorkbookReader, classifier *domain.Classifier, builder *mapview.Builder, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	o := &Orchestrator{
		reader:     reader,
		classifier: classifier,
		builder:    builder,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
	}
	o.ready.Store(true)
	return o
}

// CheckReadiness returns an error after Drain.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("orchestrator is shutting down")
	}
	return nil
}

// Drain marks the orchestrator not ready during shutdown.
func (o *Orchestrator) Drain() {
	o.ready.Store(false)
}

// ProcessUpload turns raw spreadsheet bytes into a Result. It fails only when
// the bytes are unreadable or the sheet is malformed; row-level problems and
// publish failures become warnings.
func (o *Orchestrator) ProcessUpload(ctx context.Context, raw []byte) (*Result, error) {
	start := time.Now()

	wb, err := o.reader.ReadWorkbook(raw)
	if err != nil {
		o.metrics.Uploads.WithLabelValues("unknown", "unreadable").Inc()
		return nil, fmt.Errorf("read upload: %w", err)
	}

	format := domain.DetectFormat(wb.Sheet)
	parsed, err := domain.ParseWorkbook(wb, format)
	if err != nil {
		o.metrics.Uploads.WithLabelValues(string(format), "malformed").Inc()
		return nil, err
	}

	res := &Result{
		ID:          uuid.NewString(),
		Format:      parsed.Format,
		Records:     o.classifier.ClassifyAll(parsed.Records),
		Dropped:     parsed.Dropped,
		ProcessedAt: clock.Now().UTC(),
	}
	o.recordParse(res)

	for _, subset := range Subsets {
		panel, _ := res.Panel(subset)
		if err := o.buildPanel(panel, subset, res.Records); err != nil {
			return nil, err
		}
	}

	res.Warnings = append(res.Warnings, droppedWarning(res.Dropped)...)
	if hasPlaceholder(res.Records) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Segment 5 sheets have no coordinates; every crash is drawn at the placeholder location (%.2f, %.2f)",
			domain.PlaceholderLat, domain.PlaceholderLon))
	}

	if o.publisher != nil && len(res.Records) > 0 {
		if err := o.publisher.Publish(ctx, res.ID, res.Records); err != nil {
			o.metrics.PublishErrors.Inc()
			o.logger.Error("publish records failed", "upload_id", res.ID, "error", err)
			res.Warnings = append(res.Warnings, "Records were not published downstream: "+err.Error())
		} else {
			o.metrics.RecordsPublished.Add(float64(len(res.Records)))
		}
	}

	outcome := "success"
	if len(res.Records) == 0 {
		outcome = "empty"
	}
	o.metrics.Uploads.WithLabelValues(string(res.Format), outcome).Inc()
	o.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())

	o.logger.Info("upload processed",
		"upload_id", res.ID,
		"format", res.Format,
		"records", len(res.Records),
		"dropped", len(res.Dropped),
		"north", res.North.Count,
		"south", res.South.Count,
	)
	return res, nil
}

func (o *Orchestrator) buildPanel(p *Panel, subset domain.DirectionBucket, all []domain.ClassifiedRecord) error {
	recs := domain.Filter(all, subset)
	p.Subset = subset
	p.Title = subset.Title()
	p.Count = len(recs)

	for _, mode := range Modes {
		layer, err := o.builder.Build(recs, mode)
		if errors.Is(err, domain.ErrEmptyDataset) {
			p.Notice = emptyNotice(subset)
			return nil
		}
		if err != nil {
			return fmt.Errorf("build %s %s map: %w", subset, mode, err)
		}
		switch mode {
		case mapview.ModeSeverityMarkers:
			p.Markers = layer
		case mapview.ModeHeatWeighted:
			p.Heat = layer
		}
	}
	return nil
}

func (o *Orchestrator) recordParse(res *Result) {
	o.metrics.RowsParsed.Add(float64(len(res.Records)))
	for _, d := range res.Dropped {
		o.metrics.RowsDropped.WithLabelValues(d.Reason).Inc()
		o.logger.Debug("row dropped", "row", d.Row, "reason", d.Reason)
	}
	for _, r := range res.Records {
		o.metrics.RecordsClassified.WithLabelValues(string(r.Severity), string(r.Bucket)).Inc()
	}
}

func emptyNotice(subset domain.DirectionBucket) string {
	if subset == domain.BucketAll {
		return "No crashes found."
	}
	return fmt.Sprintf("No %s crashes found.", subset.Title())
}

// droppedWarning summarizes skipped rows as "3 rows skipped: unparsable date (2), missing latitude (1)".
// Reasons are listed in order of first occurrence.
func droppedWarning(dropped []domain.DroppedRow) []string {
	if len(dropped) == 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, d := range dropped {
		if counts[d.Reason] == 0 {
			order = append(order, d.Reason)
		}
		counts[d.Reason]++
	}
	parts := make([]string, len(order))
	for i, reason := range order {
		parts[i] = fmt.Sprintf("%s (%d)", reason, counts[reason])
	}
	noun := "rows"
	if len(dropped) == 1 {
		noun = "row"
	}
	return []string{fmt.Sprintf("%d %s skipped: %s", len(dropped), noun, strings.Join(parts, ", "))}
}

func hasPlaceholder(recs []domain.ClassifiedRecord) bool {
	for _, r := range recs {
		if r.Placeholder {
			return true
		}
	}
	return false
}
