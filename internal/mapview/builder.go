// Package mapview turns classified crash records into map layers. Drawing is
// delegated to a Renderer; this package only decides what goes on the map.
package mapview

import (
	"fmt"
	"time"

	"github.com/couchcryptid/crash-mapper/internal/domain"
)

// Mode selects the kind of layer to build.
type Mode string

const (
	ModeSeverityMarkers Mode = "markers"
	ModeHeatWeighted    Mode = "heat"
)

// ParseMode converts a path or flag value into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSeverityMarkers, ModeHeatWeighted:
		return Mode(s), true
	default:
		return "", false
	}
}

// Fixed rendering parameters.
const (
	DefaultZoom   = 11
	MarkerRadius  = 6
	MarkerOpacity = 0.8
	HeatRadius    = 10
	HeatBlur      = 15
)

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// View is the initial map viewport.
type View struct {
	Center Point `json:"center"`
	Zoom   int   `json:"zoom"`
}

// Marker is a single severity-colored circle marker.
type Marker struct {
	Point
	Color   string  `json:"color"`
	Radius  int     `json:"radius"`
	Opacity float64 `json:"opacity"`
	Label   string  `json:"label"`
}

// HeatPoint is a weighted heat-layer sample.
type HeatPoint struct {
	Point
	Weight float64 `json:"weight"`
}

// HeatOptions are the kernel parameters passed to the renderer.
type HeatOptions struct {
	Radius int `json:"radius"`
	Blur   int `json:"blur"`
}

// Layer is an opaque renderable produced by a Renderer.
type Layer interface {
	Mode() Mode
}

// Renderer is the drawing capability the builder delegates to.
type Renderer interface {
	MarkerLayer(view View, markers []Marker) (Layer, error)
	HeatLayer(view View, points []HeatPoint, opts HeatOptions) (Layer, error)
}

// Builder builds layers from classified records.
type Builder struct {
	renderer Renderer
}

// NewBuilder creates a Builder that renders through r.
func NewBuilder(r Renderer) *Builder {
	return &Builder{renderer: r}
}

// Build renders records in the given mode, centered on their mean coordinate.
// It returns domain.ErrEmptyDataset for an empty slice.
func (b *Builder) Build(records []domain.ClassifiedRecord, mode Mode) (Layer, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	view := View{Center: Center(records), Zoom: DefaultZoom}

	switch mode {
	case ModeSeverityMarkers:
		return b.renderer.MarkerLayer(view, Markers(records))
	case ModeHeatWeighted:
		return b.renderer.HeatLayer(view, HeatPoints(records), HeatOptions{Radius: HeatRadius, Blur: HeatBlur})
	default:
		return nil, fmt.Errorf("unknown map mode %q", mode)
	}
}

// Center returns the arithmetic mean of the records' coordinates. The caller
// must pass at least one record.
func Center(records []domain.ClassifiedRecord) Point {
	var lat, lon float64
	for _, r := range records {
		lat += r.Lat
		lon += r.Lon
	}
	n := float64(len(records))
	return Point{Lat: lat / n, Lon: lon / n}
}

// Markers converts records to severity markers.
func Markers(records []domain.ClassifiedRecord) []Marker {
	out := make([]Marker, len(records))
	for i, r := range records {
		out[i] = Marker{
			Point:   Point{Lat: r.Lat, Lon: r.Lon},
			Color:   r.Color,
			Radius:  MarkerRadius,
			Opacity: MarkerOpacity,
			Label:   Label(r),
		}
	}
	return out
}

// HeatPoints converts records to weighted heat samples.
func HeatPoints(records []domain.ClassifiedRecord) []HeatPoint {
	out := make([]HeatPoint, len(records))
	for i, r := range records {
		out[i] = HeatPoint{Point: Point{Lat: r.Lat, Lon: r.Lon}, Weight: float64(r.Weight)}
	}
	return out
}

// Label formats a marker popup as "date | severity | Dir: direction".
func Label(r domain.ClassifiedRecord) string {
	return fmt.Sprintf("%s | %s | Dir: %s", r.Date.Format(time.DateOnly), r.Severity, r.Direction)
}
