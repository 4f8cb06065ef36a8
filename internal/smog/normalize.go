package smog

// Normalize scales each sample's smog level against the largest one in the
// batch, producing heatmap points with intensity in [0,1].
// When the largest level is not positive every intensity is 0.
func Normalize(samples []Sample) []NormalizedPoint {
	if len(samples) == 0 {
		return nil
	}

	maxSmog := samples[0].Smog()
	for _, s := range samples[1:] {
		if v := s.Smog(); v > maxSmog {
			maxSmog = v
		}
	}

	points := make([]NormalizedPoint, 0, len(samples))
	for _, s := range samples {
		var p NormalizedPoint
		if s.Location != nil {
			p.Lat = float64(s.Location.Lat)
			p.Lng = float64(s.Location.Lng)
		}
		if maxSmog > 0 {
			p.Intensity = clamp01(s.Smog() / maxSmog)
		}
		points = append(points, p)
	}
	return points
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// NeutralColor is used for unknown AQI categories.
const NeutralColor = "#9e9e9e"

var aqiColors = map[Category]string{
	1: "#00e400",
	2: "#ffff00",
	3: "#ff7e00",
	4: "#ff0000",
	5: "#8f3f97",
}

var aqiLabels = map[Category]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

// AQIColor maps an AQI category to its display color.
func AQIColor(c Category) string {
	if color, ok := aqiColors[c]; ok {
		return color
	}
	return NeutralColor
}

// AQILabel maps an AQI category to its display name.
func AQILabel(c Category) string {
	if label, ok := aqiLabels[c]; ok {
		return label
	}
	return "Unknown"
}

// GradientStop is one color stop of the heat layer.
type GradientStop struct {
	Fraction float64 `json:"fraction"`
	Color    string  `json:"color"`
	Legend   string  `json:"legend"`
}

// HeatGradient is the heat layer gradient, ordered by fraction.
var HeatGradient = []GradientStop{
	{Fraction: 0.1, Color: "blue", Legend: "Low"},
	{Fraction: 0.3, Color: "cyan", Legend: "Moderate"},
	{Fraction: 0.5, Color: "lime", Legend: "High"},
	{Fraction: 0.7, Color: "yellow", Legend: "Very High"},
	{Fraction: 1.0, Color: "red", Legend: "Extreme"},
}

// Heat layer rendering options.
const (
	HeatRadius  = 25
	HeatBlur    = 15
	HeatMaxZoom = 8
)
