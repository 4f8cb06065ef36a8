package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/smog-density-map/internal/smog"
)

func TestGoogleLabeler_Label(t *testing.T) {
	var got geocoder.Location
	l := &GoogleLabeler{reverse: func(loc geocoder.Location) ([]geocoder.Address, error) {
		got = loc
		return []geocoder.Address{
			{City: "Lahore", Country: "Pakistan", FormattedAddress: "Mall Rd, Lahore, Pakistan"},
			{City: "Ignored"},
		}, nil
	}}

	label, err := l.Label(context.Background(), smog.Location{Lat: 31.5204, Lng: 74.3587})
	require.NoError(t, err)
	assert.Equal(t, "Lahore, Pakistan", label)
	assert.Equal(t, 31.5204, got.Latitude)
	assert.Equal(t, 74.3587, got.Longitude)
}

func TestGoogleLabeler_Errors(t *testing.T) {
	empty := &GoogleLabeler{reverse: func(geocoder.Location) ([]geocoder.Address, error) {
		return nil, nil
	}}
	_, err := empty.Label(context.Background(), smog.Location{})
	assert.ErrorIs(t, err, errNoAddress)

	boom := errors.New("over query limit")
	failing := &GoogleLabeler{reverse: func(geocoder.Location) ([]geocoder.Address, error) {
		return nil, boom
	}}
	_, err = failing.Label(context.Background(), smog.Location{})
	assert.ErrorIs(t, err, boom)
}

func TestGoogleLabeler_HonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := &GoogleLabeler{reverse: func(geocoder.Location) ([]geocoder.Address, error) {
		<-block
		return nil, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := slow.Label(ctx, smog.Location{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "Pakistan", formatAddress(geocoder.Address{Country: "Pakistan"}))
	assert.Equal(t, "Somewhere 1", formatAddress(geocoder.Address{FormattedAddress: " Somewhere 1 "}))
	assert.Empty(t, formatAddress(geocoder.Address{}))
}
