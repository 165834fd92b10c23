package entity

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/pkg/aqi"
)

const (
	// UnavailableAfter is how old a transmitter's TIMESTAMP may get before its
	// entities report unavailable.
	UnavailableAfter = time.Hour
	// DisconnectedAfter is the age at which the connectivity sensor turns off.
	DisconnectedAfter = 15 * time.Minute
)

// State is the rendered value of one entity at one instant.
type State struct {
	Value      any            `json:"value"`
	Available  bool           `json:"available"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Render computes the entity's state from obs. lastPollOK is false when the
// most recent poll failed, which makes every entity unavailable.
func (e Entity) Render(obs *observation.Observation, lastPollOK bool, now time.Time) State {
	bucket, _ := obs.Transmitter(e.TxID)
	return State{
		Value:      RenderValue(e.Description, bucket, now),
		Available:  e.available(bucket, lastPollOK, now),
		Attributes: renderAttributes(e.Description, bucket),
	}
}

func (e Entity) available(bucket observation.Fields, lastPollOK bool, now time.Time) bool {
	if !lastPollOK {
		return false
	}
	if e.Description.render == renderConnectivity {
		return true
	}
	ts, ok := timestampOf(bucket)
	if !ok {
		return false
	}
	return now.Sub(ts) < UnavailableAfter
}

// RenderValue produces the display value of d from one transmitter's
// readings: a number, a text state, a bool for binary sensors, or nil when
// the field is absent.
func RenderValue(d Description, bucket observation.Fields, now time.Time) any {
	switch d.render {
	case renderConnectivity:
		ts, ok := timestampOf(bucket)
		return ok && now.Sub(ts) < DisconnectedAfter
	case renderFlag:
		v, ok := bucket.Get(d.Field)
		if !ok || v.IsNull() {
			return nil
		}
		f, ok := v.Float64()
		return ok && f != 0
	}

	v, ok := bucket.Get(d.Field)
	if !ok || v.IsNull() {
		return nil
	}
	switch d.render {
	case renderCompass:
		deg, ok := v.Float64()
		if !ok {
			return nil
		}
		return Compass(deg)
	case renderBarTrend:
		return BarTrendText(v)
	}
	return v.Interface()
}

func renderAttributes(d Description, bucket observation.Fields) map[string]any {
	if d.attrs != nil {
		return d.attrs(bucket)
	}
	switch d.render {
	case renderAQI:
		idx, ok := bucket.Float(d.Field)
		if !ok {
			return nil
		}
		c := aqi.CategoryFor(idx)
		return map[string]any{"category": c.Key(), "color": c.Color()}
	case renderConnectivity:
		ts, ok := timestampOf(bucket)
		if !ok {
			return nil
		}
		return map[string]any{"last_update": ts.Format(time.RFC3339)}
	}
	return nil
}

// Compass maps degrees to one of the 16 CompassPoints.
func Compass(deg float64) string {
	idx := int(math.Floor(math.Mod(math.Mod(deg+11.25, 360)+360, 360) / 22.5))
	return CompassPoints[idx%len(CompassPoints)]
}

// BarTrendText classifies a barometric tendency. Numbers are inHg over three
// hours; vendor text such as "Falling Slowly" is normalized to snake case.
func BarTrendText(v observation.Value) string {
	if s, ok := v.Str(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return barTrendBand(f)
		}
		return strings.ReplaceAll(strings.ToLower(s), " ", "_")
	}
	f, _ := v.Float64()
	return barTrendBand(f)
}

func barTrendBand(t float64) string {
	switch {
	case t >= 0.060:
		return "rising_rapidly"
	case t >= 0.020:
		return "rising_slowly"
	case t > -0.020:
		return "steady"
	case t > -0.060:
		return "falling_slowly"
	}
	return "falling_rapidly"
}

func stormAttributes(bucket observation.Fields) map[string]any {
	start, ok := epoch(bucket, observation.RainStormStart)
	if !ok {
		return nil
	}
	return map[string]any{"rain_storm_start": start.Format(time.RFC3339)}
}

func lastStormAttributes(bucket observation.Fields) map[string]any {
	start, ok := epoch(bucket, observation.RainStormLastStart)
	if !ok {
		return nil
	}
	end, ok := epoch(bucket, observation.RainStormLastEnd)
	if !ok {
		return nil
	}
	return map[string]any{
		"rain_storm_start": start.Format(time.RFC3339),
		"rain_storm_end":   end.Format(time.RFC3339),
	}
}

func timestampOf(bucket observation.Fields) (time.Time, bool) {
	return epoch(bucket, observation.Timestamp)
}

func epoch(bucket observation.Fields, f observation.Field) (time.Time, bool) {
	v, ok := bucket.Get(f)
	if !ok {
		return time.Time{}, false
	}
	sec, ok := v.Int64()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}
