package smog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// InputCollector holds the editable coordinate text for each tracked location.
type InputCollector struct {
	mu     sync.RWMutex
	ids    []LocationID
	coords map[LocationID]Coordinate
}

// NewInputCollector creates empty fields for the given locations.
func NewInputCollector(ids []LocationID) *InputCollector {
	coords := make(map[LocationID]Coordinate, len(ids))
	for _, id := range ids {
		coords[id] = Coordinate{}
	}
	return &InputCollector{
		ids:    append([]LocationID(nil), ids...),
		coords: coords,
	}
}

// SetField replaces one axis of one coordinate. The raw value is stored as is.
func (c *InputCollector) SetField(id LocationID, axis Axis, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	coord, ok := c.coords[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	switch axis {
	case AxisLat:
		coord.Lat = value
	case AxisLng:
		coord.Lng = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAxis, axis)
	}
	c.coords[id] = coord
	return nil
}

// Coordinate returns the current text for a location.
func (c *InputCollector) Coordinate(id LocationID) (Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coord, ok := c.coords[id]
	return coord, ok
}

// IDs returns the tracked location ids in display order.
func (c *InputCollector) IDs() []LocationID {
	return append([]LocationID(nil), c.ids...)
}

// ParseCoordinate converts coordinate text into a Location. Both axes must be
// finite numbers; ranges are not checked.
func ParseCoordinate(c Coordinate) (Location, error) {
	lat, err := parseDegrees(c.Lat)
	if err != nil {
		return Location{}, InvalidInput(fmt.Errorf("lat: %w", err))
	}
	lng, err := parseDegrees(c.Lng)
	if err != nil {
		return Location{}, InvalidInput(fmt.Errorf("lng: %w", err))
	}
	return Location{Lat: Degrees(lat), Lng: Degrees(lng)}, nil
}

func parseDegrees(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return v, nil
}
