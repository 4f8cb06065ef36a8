package smog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// LocationID identifies one tracked location ("1", "2", ...).
type LocationID string

// LocationIDs returns the ids for n tracked locations in display order.
func LocationIDs(n int) []LocationID {
	ids := make([]LocationID, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, LocationID(strconv.Itoa(i)))
	}
	return ids
}

// Axis names one half of a coordinate.
type Axis string

const (
	AxisLat Axis = "lat"
	AxisLng Axis = "lng"
)

// Coordinate is a user-entered latitude/longitude pair.
// Values are kept exactly as typed; parsing happens at fetch time.
type Coordinate struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Degrees is a latitude or longitude value. The air-quality service echoes
// coordinates either as JSON numbers or as numeric strings.
type Degrees float64

func (d *Degrees) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("degrees %q: %w", s, err)
		}
		*d = Degrees(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = Degrees(v)
	return nil
}

// Location is a parsed coordinate.
type Location struct {
	Lat Degrees `json:"lat"`
	Lng Degrees `json:"lng"`
}

// Category is the AQI category reported by the service: 1 (best) to 5 (worst).
// Zero means the service did not report a usable category.
type Category int

func (c *Category) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		// "Unavailable", null and friends.
		*c = 0
		return nil
	}
	if v != math.Trunc(v) {
		*c = 0
		return nil
	}
	*c = Category(v)
	return nil
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	return c >= 1 && c <= 5
}

// Sample is the air-quality reading for one coordinate.
type Sample struct {
	Location  *Location `json:"location,omitempty"`
	PM25      *float64  `json:"pm25"`
	PM10      *float64  `json:"pm10"`
	SmogLevel *float64  `json:"smogLevel"`
	AQILevel  Category  `json:"aqiLevel"`
}

// Smog returns the smog level, or 0 when the service did not report one.
func (s Sample) Smog() float64 {
	if s.SmogLevel == nil {
		return 0
	}
	return *s.SmogLevel
}

// NormalizedPoint is a heatmap point with intensity in [0,1].
type NormalizedPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

// RequestStatus is the lifecycle state of a location's fetch.
type RequestStatus string

const (
	StatusIdle    RequestStatus = "idle"
	StatusLoading RequestStatus = "loading"
	StatusSuccess RequestStatus = "success"
	StatusError   RequestStatus = "error"
)

// RequestState is everything the presenter needs to know about one location.
type RequestState struct {
	Status RequestStatus `json:"status"`
	Sample *Sample       `json:"sample,omitempty"`
	Error  string        `json:"error,omitempty"`
	// Label is a human-readable place name, when reverse geocoding is enabled.
	Label string `json:"label,omitempty"`
}

// Ticket identifies one issued fetch for a location.
type Ticket struct {
	ID  LocationID
	Seq uint64
}

// JoinPolicy decides how a multi-location fetch reports its results.
type JoinPolicy string

const (
	// JoinAllOrNothing shows results only when every location succeeded.
	JoinAllOrNothing JoinPolicy = "allOrNothing"
	// JoinIndependent lets each location succeed or fail on its own.
	JoinIndependent JoinPolicy = "independent"
)

// ParseJoinPolicy validates a configured join policy name.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch JoinPolicy(s) {
	case JoinAllOrNothing, JoinIndependent:
		return JoinPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown join policy %q", s)
	}
}
