package smog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func sampleAt(lat, lng, smog float64) Sample {
	return Sample{
		Location:  &Location{Lat: Degrees(lat), Lng: Degrees(lng)},
		SmogLevel: ptr(smog),
	}
}

func TestNormalize_ScalesAgainstMax(t *testing.T) {
	points := Normalize([]Sample{
		sampleAt(31.5204, 74.3587, 2.5),
		sampleAt(33.6844, 73.0479, 10),
	})
	require.Len(t, points, 2)

	assert.InDelta(t, 0.25, points[0].Intensity, 1e-9)
	assert.Equal(t, 1.0, points[1].Intensity)
	assert.Equal(t, 31.5204, points[0].Lat)
	assert.Equal(t, 73.0479, points[1].Lng)
}

func TestNormalize_IntensitiesStayInRange(t *testing.T) {
	cases := [][2]float64{{0, 1}, {1, 1}, {0.3, 99}, {42, 43}, {7, 7.5}}
	for _, c := range cases {
		a, b := c[0], c[1]
		points := Normalize([]Sample{sampleAt(0, 0, a), sampleAt(1, 1, b)})
		require.Len(t, points, 2)
		assert.InDelta(t, a/b, points[0].Intensity, 1e-12)
		assert.Equal(t, 1.0, points[1].Intensity)
		for _, p := range points {
			assert.GreaterOrEqual(t, p.Intensity, 0.0)
			assert.LessOrEqual(t, p.Intensity, 1.0)
		}
	}
}

func TestNormalize_AllZeroGivesZeroIntensity(t *testing.T) {
	points := Normalize([]Sample{sampleAt(1, 2, 0), sampleAt(3, 4, 0)})
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, 0.0, p.Intensity)
	}
}

func TestNormalize_MissingSmogCountsAsZero(t *testing.T) {
	missing := Sample{Location: &Location{Lat: 1, Lng: 2}}
	points := Normalize([]Sample{missing, sampleAt(3, 4, 8)})
	require.Len(t, points, 2)
	assert.Equal(t, 0.0, points[0].Intensity)
	assert.Equal(t, 1.0, points[1].Intensity)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
}

func TestAQIColor(t *testing.T) {
	assert.Equal(t, "#00e400", AQIColor(1))
	assert.Equal(t, "#ffff00", AQIColor(2))
	assert.Equal(t, "#ff7e00", AQIColor(3))
	assert.Equal(t, "#ff0000", AQIColor(4))
	assert.Equal(t, "#8f3f97", AQIColor(5))
	assert.Equal(t, NeutralColor, AQIColor(0))
	assert.Equal(t, NeutralColor, AQIColor(6))
	assert.Equal(t, "Unknown", AQILabel(-1))
	assert.Equal(t, "Moderate", AQILabel(3))
}

func TestHeatGradientIsOrdered(t *testing.T) {
	for i := 1; i < len(HeatGradient); i++ {
		assert.Less(t, HeatGradient[i-1].Fraction, HeatGradient[i].Fraction)
	}
	assert.Equal(t, 1.0, HeatGradient[len(HeatGradient)-1].Fraction)
}
