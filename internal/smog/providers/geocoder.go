package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/smog-density-map/internal/smog"
)

var errNoAddress = errors.New("no address for location")

// reverseFunc matches geocoder.GeocodingReverse.
type reverseFunc func(geocoder.Location) ([]geocoder.Address, error)

// GoogleLabeler implements smog.Labeler with Google reverse geocoding.
type GoogleLabeler struct {
	reverse reverseFunc
}

// NewGoogleLabeler configures the geocoder package with apiKey.
// The key is process-wide; create at most one labeler.
func NewGoogleLabeler(apiKey string) *GoogleLabeler {
	geocoder.ApiKey = apiKey
	return &GoogleLabeler{reverse: geocoder.GeocodingReverse}
}

// Label implements smog.Labeler. It prefers "City, Country" and falls back
// to the formatted address.
func (l *GoogleLabeler) Label(ctx context.Context, loc smog.Location) (string, error) {
	type result struct {
		addrs []geocoder.Address
		err   error
	}

	// The geocoder package takes no context; give up waiting when ctx ends.
	ch := make(chan result, 1)
	go func() {
		addrs, err := l.reverse(geocoder.Location{
			Latitude:  float64(loc.Lat),
			Longitude: float64(loc.Lng),
		})
		ch <- result{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		if len(r.addrs) == 0 {
			return "", errNoAddress
		}
		return formatAddress(r.addrs[0]), nil
	}
}

func formatAddress(a geocoder.Address) string {
	var parts []string
	for _, p := range []string{a.City, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return strings.TrimSpace(a.FormattedAddress)
}
