// Package present turns a session's request state into a display-ready page.
package present

import (
	"fmt"

	"github.com/i474232898/smog-density-map/internal/common"
	"github.com/i474232898/smog-density-map/internal/config"
	"github.com/i474232898/smog-density-map/internal/smog"
)

// Options are the per-deployment presentation settings.
type Options struct {
	Title      string
	Mode       config.ViewMode
	Policy     smog.JoinPolicy
	MapCenter  [2]float64
	MapZoom    int
	TileURL    string
	TileAttrib string
}

// OptionsFromConfig copies the presentation settings out of cfg.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		Title:      cfg.Title,
		Mode:       cfg.ViewMode,
		Policy:     cfg.JoinPolicy,
		MapCenter:  cfg.MapCenter,
		MapZoom:    cfg.MapZoom,
		TileURL:    cfg.TileURL,
		TileAttrib: cfg.TileAttrib,
	}
}

// Page is the complete view of one session.
type Page struct {
	SessionID string          `json:"sessionId"`
	Title     string          `json:"title"`
	Mode      config.ViewMode `json:"mode"`
	Policy    smog.JoinPolicy `json:"joinPolicy"`

	// Loading is true while any location has a fetch in flight.
	Loading bool `json:"loading"`
	// Errors are shown in a single banner; used when results are joined or
	// drawn on one map. Duplicate messages appear once.
	Errors    []string       `json:"errors,omitempty"`
	Locations []LocationView `json:"locations"`
	CanVary   bool           `json:"canVary"`

	Heat    *HeatLayer `json:"heat,omitempty"`
	Markers []Marker   `json:"markers,omitempty"`
	Map     MapView    `json:"map"`
}

// LocationView is one location's form fields and state.
type LocationView struct {
	ID      smog.LocationID    `json:"id"`
	Name    string             `json:"name"`
	Lat     string             `json:"lat"`
	Lng     string             `json:"lng"`
	Status  smog.RequestStatus `json:"status"`
	Loading bool               `json:"loading"`
	Error   string             `json:"error,omitempty"`
	Card    *Card              `json:"card,omitempty"`
}

// Card is the metric panel for a location with a sample.
type Card struct {
	Place     string `json:"place,omitempty"`
	PM25      string `json:"pm25"`
	PM10      string `json:"pm10"`
	SmogLevel string `json:"smogLevel"`
	AQI       int    `json:"aqi"`
	AQILabel  string `json:"aqiLabel"`
	AQIColor  string `json:"aqiColor"`
}

// HeatLayer is the data and styling for the map's heat overlay.
type HeatLayer struct {
	Points   [][3]float64        `json:"points"`
	Radius   int                 `json:"radius"`
	Blur     int                 `json:"blur"`
	MaxZoom  int                 `json:"maxZoom"`
	Gradient map[string]string   `json:"gradient"`
	Legend   []smog.GradientStop `json:"legend"`
}

// Marker pins a location on the map.
type Marker struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Title   string  `json:"title"`
	Tooltip string  `json:"tooltip"`
}

// MapView positions the base map.
type MapView struct {
	Center      [2]float64 `json:"center"`
	Zoom        int        `json:"zoom"`
	TileURL     string     `json:"tileUrl"`
	Attribution string     `json:"attribution"`
}

// Build assembles the page for sess.
func Build(sess *smog.Session, opts Options) Page {
	page := Page{
		SessionID: sess.ID,
		Title:     opts.Title,
		Mode:      opts.Mode,
		Policy:    opts.Policy,
		Map: MapView{
			Center:      opts.MapCenter,
			Zoom:        opts.MapZoom,
			TileURL:     opts.TileURL,
			Attribution: opts.TileAttrib,
		},
	}

	banner := opts.Mode == config.ViewHeatmap || opts.Policy == smog.JoinAllOrNothing
	seen := make(map[string]bool)

	for _, id := range sess.Tracker.IDs() {
		st, _ := sess.Tracker.State(id)
		coord, _ := sess.Input.Coordinate(id)

		lv := LocationView{
			ID:      id,
			Name:    locationName(id),
			Lat:     coord.Lat,
			Lng:     coord.Lng,
			Status:  st.Status,
			Loading: st.Status == smog.StatusLoading,
			Error:   st.Error,
		}
		if st.Sample != nil {
			lv.Card = buildCard(*st.Sample, st.Label)
			page.CanVary = true
		}
		if lv.Loading {
			page.Loading = true
		}
		if banner && st.Error != "" && !seen[st.Error] {
			seen[st.Error] = true
			page.Errors = append(page.Errors, st.Error)
		}
		page.Locations = append(page.Locations, lv)
	}

	if opts.Mode == config.ViewHeatmap {
		page.Heat, page.Markers = buildHeat(sess)
	}
	return page
}

func buildCard(s smog.Sample, place string) *Card {
	return &Card{
		Place:     place,
		PM25:      common.FormatOptional(s.PM25, -1),
		PM10:      common.FormatOptional(s.PM10, -1),
		SmogLevel: common.FormatOptional(s.SmogLevel, 2),
		AQI:       int(s.AQILevel),
		AQILabel:  smog.AQILabel(s.AQILevel),
		AQIColor:  smog.AQIColor(s.AQILevel),
	}
}

func buildHeat(sess *smog.Session) (*HeatLayer, []Marker) {
	ids, samples := sess.Tracker.Samples()
	points := smog.Normalize(samples)

	layer := &HeatLayer{
		Points:   make([][3]float64, 0, len(points)),
		Radius:   smog.HeatRadius,
		Blur:     smog.HeatBlur,
		MaxZoom:  smog.HeatMaxZoom,
		Gradient: make(map[string]string, len(smog.HeatGradient)),
		Legend:   smog.HeatGradient,
	}
	for _, stop := range smog.HeatGradient {
		layer.Gradient[fmt.Sprintf("%g", stop.Fraction)] = stop.Color
	}

	markers := make([]Marker, 0, len(points))
	for i, p := range points {
		layer.Points = append(layer.Points, [3]float64{p.Lat, p.Lng, p.Intensity})

		title := locationName(ids[i])
		if st, ok := sess.Tracker.State(ids[i]); ok && st.Label != "" {
			title += " (" + st.Label + ")"
		}
		markers = append(markers, Marker{
			Lat:     p.Lat,
			Lng:     p.Lng,
			Title:   title,
			Tooltip: SmogPercent(p.Intensity),
		})
	}
	return layer, markers
}

// SmogPercent renders a normalized intensity as a marker tooltip.
func SmogPercent(intensity float64) string {
	return fmt.Sprintf("Smog Level: %.1f%%", intensity*100)
}

func locationName(id smog.LocationID) string {
	return "Location " + string(id)
}
