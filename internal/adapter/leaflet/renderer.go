// Package leaflet renders map layers as standalone Leaflet HTML pages.
// Tiles, projection and the heat kernel are handled in the browser by
// Leaflet and leaflet.heat.
package leaflet

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/couchcryptid/crash-mapper/internal/mapview"
)

// DefaultTileURL is the OpenStreetMap standard tile layer.
const DefaultTileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

const osmAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`

//go:embed map.html.tmpl
var pageTemplate string

var page = template.Must(template.New("map").Parse(pageTemplate))

// Map is a rendered layer. It implements mapview.Layer and serializes to JSON
// for API consumers.
type Map struct {
	Kind        mapview.Mode         `json:"mode"`
	View        mapview.View         `json:"view"`
	Markers     []mapview.Marker     `json:"markers,omitempty"`
	Heat        []mapview.HeatPoint  `json:"heat,omitempty"`
	HeatOptions *mapview.HeatOptions `json:"heat_options,omitempty"`

	tileURL     string
	attribution string
}

// Mode reports whether the map holds markers or a heat layer.
func (m *Map) Mode() mapview.Mode { return m.Kind }

// Renderer implements mapview.Renderer.
type Renderer struct {
	tileURL     string
	attribution string
}

// NewRenderer creates a renderer drawing on the given XYZ tile URL template.
// An empty URL selects OpenStreetMap.
func NewRenderer(tileURL string) *Renderer {
	r := &Renderer{tileURL: tileURL}
	if tileURL == "" || tileURL == DefaultTileURL {
		r.tileURL = DefaultTileURL
		r.attribution = osmAttribution
	}
	return r
}

func (r *Renderer) MarkerLayer(view mapview.View, markers []mapview.Marker) (mapview.Layer, error) {
	return &Map{
		Kind:        mapview.ModeSeverityMarkers,
		View:        view,
		Markers:     markers,
		tileURL:     r.tileURL,
		attribution: r.attribution,
	}, nil
}

func (r *Renderer) HeatLayer(view mapview.View, points []mapview.HeatPoint, opts mapview.HeatOptions) (mapview.Layer, error) {
	return &Map{
		Kind:        mapview.ModeHeatWeighted,
		View:        view,
		Heat:        points,
		HeatOptions: &opts,
		tileURL:     r.tileURL,
		attribution: r.attribution,
	}, nil
}

// pageData is what the template sees. Coordinates are flattened to the
// array shapes Leaflet expects.
type pageData struct {
	Title       string
	TileURL     string
	Attribution string
	Center      [2]float64
	Zoom        int
	Markers     []markerJS
	Heat        [][3]float64
	HeatRadius  int
	HeatBlur    int
}

type markerJS struct {
	LatLng  [2]float64 `json:"latlng"`
	Color   string     `json:"color"`
	Radius  int        `json:"radius"`
	Opacity float64    `json:"opacity"`
	Label   string     `json:"label"`
}

// WriteHTML renders m as a complete HTML document.
func (m *Map) WriteHTML(w io.Writer, title string) error {
	data := pageData{
		Title:       title,
		TileURL:     m.tileURL,
		Attribution: m.attribution,
		Center:      [2]float64{m.View.Center.Lat, m.View.Center.Lon},
		Zoom:        m.View.Zoom,
		Markers:     make([]markerJS, 0, len(m.Markers)),
		Heat:        make([][3]float64, 0, len(m.Heat)),
	}
	if data.TileURL == "" {
		data.TileURL = DefaultTileURL
	}
	for _, mk := range m.Markers {
		data.Markers = append(data.Markers, markerJS{
			LatLng:  [2]float64{mk.Lat, mk.Lon},
			Color:   mk.Color,
			Radius:  mk.Radius,
			Opacity: mk.Opacity,
			Label:   mk.Label,
		})
	}
	for _, hp := range m.Heat {
		data.Heat = append(data.Heat, [3]float64{hp.Lat, hp.Lon, hp.Weight})
	}
	if m.HeatOptions != nil {
		data.HeatRadius = m.HeatOptions.Radius
		data.HeatBlur = m.HeatOptions.Blur
	}

	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("render %s map: %w", m.Kind, err)
	}
	return nil
}
