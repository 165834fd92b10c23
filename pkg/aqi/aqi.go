// Package aqi classifies US EPA Air Quality Index values and computes AQI
// from particulate concentrations.
package aqi

import "math"

// Category is an EPA AQI band.
type Category int

const (
	Good Category = iota
	Moderate
	UnhealthySensitive
	Unhealthy
	VeryUnhealthy
	Hazardous
)

var categories = [...]struct {
	upper float64
	name  string
	key   string
	color string
}{
	Good:               {50, "Good", "good", "#00e400"},
	Moderate:           {100, "Moderate", "moderate", "#ffff00"},
	UnhealthySensitive: {150, "Unhealthy for Sensitive Groups", "unhealthy_for_sensitive_groups", "#ff7e00"},
	Unhealthy:          {200, "Unhealthy", "unhealthy", "#ff0000"},
	VeryUnhealthy:      {300, "Very Unhealthy", "very_unhealthy", "#8f3f97"},
	Hazardous:          {math.Inf(1), "Hazardous", "hazardous", "#7e0023"},
}

// CategoryFor returns the band containing aqi. Fractional values are rounded
// first, matching how AirLink reports its own index.
func CategoryFor(aqi float64) Category {
	v := math.Round(aqi)
	for c := range categories {
		if v <= categories[c].upper {
			return Category(c)
		}
	}
	return Hazardous
}

// String returns the EPA display name.
func (c Category) String() string {
	if c < Good || c > Hazardous {
		return "Unknown"
	}
	return categories[c].name
}

// Key returns a snake_case identifier usable as an enum state.
func (c Category) Key() string {
	if c < Good || c > Hazardous {
		return "unknown"
	}
	return categories[c].key
}

// Color returns the EPA reporting color.
func (c Category) Color() string {
	if c < Good || c > Hazardous {
		return ""
	}
	return categories[c].color
}

// Keys lists every category key in band order.
func Keys() []string {
	keys := make([]string, len(categories))
	for i := range categories {
		keys[i] = categories[i].key
	}
	return keys
}

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// PM2.5 breakpoints from the 2024 NAAQS revision (µg/m³, 24-hour).
var pm25Breakpoints = []breakpoint{
	{0.0, 9.0, 0, 50},
	{9.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 125.4, 151, 200},
	{125.5, 225.4, 201, 300},
	{225.5, 325.4, 301, 500},
}

// PM10 breakpoints (µg/m³, 24-hour).
var pm10Breakpoints = []breakpoint{
	{0, 54, 0, 50},
	{55, 154, 51, 100},
	{155, 254, 101, 150},
	{255, 354, 151, 200},
	{355, 424, 201, 300},
	{425, 604, 301, 500},
}

// FromPM25 computes the AQI for a 24-hour PM2.5 average.
func FromPM25(concentration float64) int {
	// EPA truncates PM2.5 to one decimal.
	return interpolate(pm25Breakpoints, math.Floor(concentration*10)/10)
}

// FromPM10 computes the AQI for a 24-hour PM10 average.
func FromPM10(concentration float64) int {
	return interpolate(pm10Breakpoints, math.Floor(concentration))
}

func interpolate(table []breakpoint, c float64) int {
	if c <= 0 || math.IsNaN(c) {
		return 0
	}
	for _, bp := range table {
		if c <= bp.cHigh {
			if c < bp.cLow {
				// Gaps between bands belong to the upper band.
				c = bp.cLow
			}
			return int(math.Round((bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(c-bp.cLow) + bp.iLow))
		}
	}
	return 500
}
