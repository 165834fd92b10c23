package observation

import "fmt"

// Field is one entry of the normalized observation vocabulary.
type Field int

// Shape is the value type a field's readings are coerced to.
type Shape uint8

const (
	ShapeFloat Shape = iota
	ShapeInt
	ShapeString
	// ShapeAny keeps numbers as floats and strings as strings. Used where the
	// vendor reports the same reading as text in one API and a number in another.
	ShapeAny
)

const (
	FieldUnknown Field = iota

	DID
	StationName
	Timestamp
	SensorType
	DataStructure

	TempOut
	TempIn
	HumOut
	HumIn
	BarSeaLevel
	BarTrend
	WindMPH
	WindGustMPH
	WindDir
	Dewpoint
	HeatIndex
	WindChill
	ThwIndex
	ThswIndex
	WetBulb

	RainDay
	RainRate
	RainMonth
	RainYear
	RainStorm
	RainStormStart
	RainStormLast
	RainStormLastStart
	RainStormLastEnd

	ETDay
	ETMonth
	ETYear
	SolarRadiation
	UVIndex

	TransBatteryFlag
	TransBatteryVolt
	SolarPanelVolt
	SupercapVolt

	// AirLink
	Temp
	Hum
	PM1
	PM2p5
	PM2p5Last24h
	PM10
	PM10Last24h
	AQIVal
	AQINowcastVal

	// Soil/leaf station temperature channels
	Temp1
	Temp2
	Temp3
	Temp4

	MoistSoil1
	MoistSoil2
	MoistSoil3
	MoistSoil4

	WetLeaf1
	WetLeaf2
	WetLeaf3
	WetLeaf4

	TempExtra1
	TempExtra2
	TempExtra3
	TempExtra4
	TempExtra5
	TempExtra6
	TempExtra7

	TempLeaf1
	TempLeaf2
	TempLeaf3
	TempLeaf4

	TempSoil1
	TempSoil2
	TempSoil3
	TempSoil4

	HumExtra1
	HumExtra2
	HumExtra3
	HumExtra4
	HumExtra5
	HumExtra6
	HumExtra7

	fieldCount
)

type fieldMeta struct {
	key   string
	shape Shape
	unit  string
}

var fieldTable = [fieldCount]fieldMeta{
	FieldUnknown: {"UNKNOWN", ShapeAny, ""},

	DID:           {"DID", ShapeString, ""},
	StationName:   {"STATION_NAME", ShapeString, ""},
	Timestamp:     {"TIMESTAMP", ShapeInt, "s"},
	SensorType:    {"SENSOR_TYPE", ShapeInt, ""},
	DataStructure: {"DATA_STRUCTURE", ShapeInt, ""},

	TempOut:     {"TEMP_OUT", ShapeFloat, "°F"},
	TempIn:      {"TEMP_IN", ShapeFloat, "°F"},
	HumOut:      {"HUM_OUT", ShapeFloat, "%"},
	HumIn:       {"HUM_IN", ShapeFloat, "%"},
	BarSeaLevel: {"BAR_SEA_LEVEL", ShapeFloat, "inHg"},
	BarTrend:    {"BAR_TREND", ShapeAny, "inHg"},
	WindMPH:     {"WIND_MPH", ShapeFloat, "mph"},
	WindGustMPH: {"WIND_GUST_MPH", ShapeFloat, "mph"},
	WindDir:     {"WIND_DIR", ShapeFloat, "°"},
	Dewpoint:    {"DEWPOINT", ShapeFloat, "°F"},
	HeatIndex:   {"HEAT_INDEX", ShapeFloat, "°F"},
	WindChill:   {"WIND_CHILL", ShapeFloat, "°F"},
	ThwIndex:    {"THW_INDEX", ShapeFloat, "°F"},
	ThswIndex:   {"THSW_INDEX", ShapeFloat, "°F"},
	WetBulb:     {"WET_BULB", ShapeFloat, "°F"},

	RainDay:            {"RAIN_DAY", ShapeFloat, "in"},
	RainRate:           {"RAIN_RATE", ShapeFloat, "in/h"},
	RainMonth:          {"RAIN_MONTH", ShapeFloat, "in"},
	RainYear:           {"RAIN_YEAR", ShapeFloat, "in"},
	RainStorm:          {"RAIN_STORM", ShapeFloat, "in"},
	RainStormStart:     {"RAIN_STORM_START", ShapeInt, "s"},
	RainStormLast:      {"RAIN_STORM_LAST", ShapeFloat, "in"},
	RainStormLastStart: {"RAIN_STORM_LAST_START", ShapeInt, "s"},
	RainStormLastEnd:   {"RAIN_STORM_LAST_END", ShapeInt, "s"},

	ETDay:          {"ET_DAY", ShapeFloat, "in"},
	ETMonth:        {"ET_MONTH", ShapeFloat, "in"},
	ETYear:         {"ET_YEAR", ShapeFloat, "in"},
	SolarRadiation: {"SOLAR_RADIATION", ShapeFloat, "W/m²"},
	UVIndex:        {"UV_INDEX", ShapeFloat, "UV index"},

	TransBatteryFlag: {"TRANS_BATTERY_FLAG", ShapeInt, ""},
	TransBatteryVolt: {"TRANS_BATTERY_VOLT", ShapeFloat, "V"},
	SolarPanelVolt:   {"SOLAR_PANEL_VOLT", ShapeFloat, "V"},
	SupercapVolt:     {"SUPERCAP_VOLT", ShapeFloat, "V"},

	Temp:          {"TEMP", ShapeFloat, "°F"},
	Hum:           {"HUM", ShapeFloat, "%"},
	PM1:           {"PM_1", ShapeFloat, "µg/m³"},
	PM2p5:         {"PM_2P5", ShapeFloat, "µg/m³"},
	PM2p5Last24h:  {"PM_2P5_24H", ShapeFloat, "µg/m³"},
	PM10:          {"PM_10", ShapeFloat, "µg/m³"},
	PM10Last24h:   {"PM_10_24H", ShapeFloat, "µg/m³"},
	AQIVal:        {"AQI_VAL", ShapeFloat, ""},
	AQINowcastVal: {"AQI_NOWCAST_VAL", ShapeFloat, ""},

	Temp1: {"TEMP_1", ShapeFloat, "°F"},
	Temp2: {"TEMP_2", ShapeFloat, "°F"},
	Temp3: {"TEMP_3", ShapeFloat, "°F"},
	Temp4: {"TEMP_4", ShapeFloat, "°F"},

	MoistSoil1: {"MOIST_SOIL_1", ShapeFloat, "cbar"},
	MoistSoil2: {"MOIST_SOIL_2", ShapeFloat, "cbar"},
	MoistSoil3: {"MOIST_SOIL_3", ShapeFloat, "cbar"},
	MoistSoil4: {"MOIST_SOIL_4", ShapeFloat, "cbar"},

	WetLeaf1: {"WET_LEAF_1", ShapeFloat, ""},
	WetLeaf2: {"WET_LEAF_2", ShapeFloat, ""},
	WetLeaf3: {"WET_LEAF_3", ShapeFloat, ""},
	WetLeaf4: {"WET_LEAF_4", ShapeFloat, ""},

	TempExtra1: {"TEMP_EXTRA_1", ShapeFloat, "°F"},
	TempExtra2: {"TEMP_EXTRA_2", ShapeFloat, "°F"},
	TempExtra3: {"TEMP_EXTRA_3", ShapeFloat, "°F"},
	TempExtra4: {"TEMP_EXTRA_4", ShapeFloat, "°F"},
	TempExtra5: {"TEMP_EXTRA_5", ShapeFloat, "°F"},
	TempExtra6: {"TEMP_EXTRA_6", ShapeFloat, "°F"},
	TempExtra7: {"TEMP_EXTRA_7", ShapeFloat, "°F"},

	TempLeaf1: {"TEMP_LEAF_1", ShapeFloat, "°F"},
	TempLeaf2: {"TEMP_LEAF_2", ShapeFloat, "°F"},
	TempLeaf3: {"TEMP_LEAF_3", ShapeFloat, "°F"},
	TempLeaf4: {"TEMP_LEAF_4", ShapeFloat, "°F"},

	TempSoil1: {"TEMP_SOIL_1", ShapeFloat, "°F"},
	TempSoil2: {"TEMP_SOIL_2", ShapeFloat, "°F"},
	TempSoil3: {"TEMP_SOIL_3", ShapeFloat, "°F"},
	TempSoil4: {"TEMP_SOIL_4", ShapeFloat, "°F"},

	HumExtra1: {"HUM_EXTRA_1", ShapeFloat, "%"},
	HumExtra2: {"HUM_EXTRA_2", ShapeFloat, "%"},
	HumExtra3: {"HUM_EXTRA_3", ShapeFloat, "%"},
	HumExtra4: {"HUM_EXTRA_4", ShapeFloat, "%"},
	HumExtra5: {"HUM_EXTRA_5", ShapeFloat, "%"},
	HumExtra6: {"HUM_EXTRA_6", ShapeFloat, "%"},
	HumExtra7: {"HUM_EXTRA_7", ShapeFloat, "%"},
}

var fieldsByKey = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for f := FieldUnknown + 1; f < fieldCount; f++ {
		m[fieldTable[f].key] = f
	}
	return m
}()

// String returns the field's stable key, e.g. TEMP_OUT.
func (f Field) String() string {
	if f <= FieldUnknown || f >= fieldCount {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldTable[f].key
}

// Shape returns the value type readings of f are coerced to.
func (f Field) Shape() Shape {
	if f <= FieldUnknown || f >= fieldCount {
		return ShapeAny
	}
	return fieldTable[f].shape
}

// Unit returns the display unit of f, empty when unitless.
func (f Field) Unit() string {
	if f <= FieldUnknown || f >= fieldCount {
		return ""
	}
	return fieldTable[f].unit
}

// Valid reports whether f is a member of the vocabulary.
func (f Field) Valid() bool {
	return f > FieldUnknown && f < fieldCount
}

// ParseField looks a field up by its key.
func ParseField(key string) (Field, bool) {
	f, ok := fieldsByKey[key]
	return f, ok
}

// AllFields returns every field of the vocabulary in declaration order.
func AllFields() []Field {
	out := make([]Field, 0, fieldCount-1)
	for f := FieldUnknown + 1; f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// MarshalText lets Field act as a JSON object key.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid field %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, ok := ParseField(string(text))
	if !ok {
		return fmt.Errorf("unknown field %q", string(text))
	}
	*f = parsed
	return nil
}

func channel(base Field, count, n int) (Field, bool) {
	if n < 1 || n > count {
		return FieldUnknown, false
	}
	return base + Field(n-1), true
}

// TempChannel returns the soil/leaf station temperature channel n (1–4).
func TempChannel(n int) (Field, bool) { return channel(Temp1, 4, n) }

// MoistSoil returns soil moisture channel n (1–4).
func MoistSoil(n int) (Field, bool) { return channel(MoistSoil1, 4, n) }

// WetLeaf returns leaf wetness channel n (1–4).
func WetLeaf(n int) (Field, bool) { return channel(WetLeaf1, 4, n) }

// TempExtra returns extra temperature channel n (1–7).
func TempExtra(n int) (Field, bool) { return channel(TempExtra1, 7, n) }

// TempLeaf returns leaf temperature channel n (1–4).
func TempLeaf(n int) (Field, bool) { return channel(TempLeaf1, 4, n) }

// TempSoil returns soil temperature channel n (1–4).
func TempSoil(n int) (Field, bool) { return channel(TempSoil1, 4, n) }

// HumExtra returns extra humidity channel n (1–7).
func HumExtra(n int) (Field, bool) { return channel(HumExtra1, 7, n) }
