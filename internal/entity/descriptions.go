package entity

import (
	"fmt"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/pkg/sensorcatalog"
)

// Kind separates numeric/text sensors from on/off sensors.
type Kind string

const (
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
)

type renderer uint8

const (
	renderValue renderer = iota
	renderCompass
	renderBarTrend
	renderAQI
	renderFlag
	renderConnectivity
)

// Description is the static definition of one entity type. It says which
// normalized field backs the entity, how it is presented, and on which
// transmitters it may appear.
type Description struct {
	Key         string
	Name        string
	Kind        Kind
	Field       observation.Field
	DeviceClass string
	Unit        string
	StateClass  string
	Icon        string
	// Precision is the suggested display precision; -1 means none.
	Precision int
	// Category is "diagnostic" for housekeeping entities.
	Category          string
	DisabledByDefault bool
	Options           []string

	ExcludeAPI        []observation.APIVersion
	ExcludeStructures []int

	// aux lists the catalog families whose non-primary transmitters get
	// this entity.
	aux    auxFamily
	render renderer
	attrs  func(observation.Fields) map[string]any
}

const (
	stateMeasurement     = "measurement"
	stateTotalIncreasing = "total_increasing"
	categoryDiagnostic   = "diagnostic"
)

// auxFamily is a set of sensor catalog families.
type auxFamily uint8

const (
	auxISS auxFamily = 1 << iota
	auxSoilLeaf
	auxAirLink

	auxISSAir = auxISS | auxAirLink
)

var (
	excludeV1         = []observation.APIVersion{observation.APIv1}
	legacyStruct      = []int{2}
	nonAirLinkStructs = []int{2, 10, 12, 25}
	issStructs        = []int{10, 23}
)

// CompassPoints are the 16 wind-direction states, clockwise from north.
var CompassPoints = []string{
	"n", "nne", "ne", "ene", "e", "ese", "se", "sse",
	"s", "ssw", "sw", "wsw", "w", "wnw", "nw", "nnw",
}

// BarTrendStates are the barometric tendency states.
var BarTrendStates = []string{
	"rising_rapidly", "rising_slowly", "steady", "falling_slowly", "falling_rapidly",
}

func temperature(key, name string, f observation.Field) Description {
	return Description{
		Key: key, Name: name, Kind: KindSensor, Field: f,
		DeviceClass: "temperature", Unit: "°F", StateClass: stateMeasurement, Precision: 1,
	}
}

func humidity(key, name string, f observation.Field) Description {
	return Description{
		Key: key, Name: name, Kind: KindSensor, Field: f,
		DeviceClass: "humidity", Unit: "%", StateClass: stateMeasurement, Precision: 0,
	}
}

func rain(key, name string, f observation.Field, precision int) Description {
	return Description{
		Key: key, Name: name, Kind: KindSensor, Field: f,
		DeviceClass: "precipitation", Unit: "in", StateClass: stateTotalIncreasing, Precision: precision,
	}
}

func voltage(key, name string, f observation.Field) Description {
	return Description{
		Key: key, Name: name, Kind: KindSensor, Field: f,
		DeviceClass: "voltage", Unit: "V", StateClass: stateMeasurement, Precision: 3,
		Category: categoryDiagnostic, ExcludeAPI: excludeV1, ExcludeStructures: nonAirLinkStructs,
	}
}

func airQuality(key, name, class string, f observation.Field, unit string) Description {
	return Description{
		Key: key, Name: name, Kind: KindSensor, Field: f,
		DeviceClass: class, Unit: unit, StateClass: stateMeasurement, Precision: 1,
		ExcludeAPI: excludeV1, ExcludeStructures: nonAirLinkStructs, aux: auxAirLink,
	}
}

func with(d Description, mod func(*Description)) Description {
	mod(&d)
	return d
}

func channels(n int, build func(i int) Description) []Description {
	out := make([]Description, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, build(i))
	}
	return out
}

func mustChannel(ch func(int) (observation.Field, bool), n int) observation.Field {
	f, ok := ch(n)
	if !ok {
		panic(fmt.Sprintf("entity: no channel %d", n))
	}
	return f
}

var sensorDescriptions = func() []Description {
	d := []Description{
		with(temperature("OutsideTemp", "Outside temperature", observation.TempOut), func(d *Description) {
			d.aux = auxISS
		}),
		temperature("InsideTemp", "Inside temperature", observation.TempIn),
		with(humidity("OutsideHumidity", "Outside humidity", observation.HumOut), func(d *Description) {
			d.aux = auxISS
		}),
		humidity("InsideHumidity", "Inside humidity", observation.HumIn),
		{
			Key: "Pressure", Name: "Pressure", Kind: KindSensor, Field: observation.BarSeaLevel,
			DeviceClass: "pressure", Unit: "inHg", StateClass: stateMeasurement, Precision: 0,
		},
		{
			Key: "BarTrend", Name: "Pressure trend", Kind: KindSensor, Field: observation.BarTrend,
			DeviceClass: "enum", Icon: "mdi:trending-up", Precision: -1, Options: BarTrendStates,
			render: renderBarTrend,
		},
		{
			Key: "Wind", Name: "Wind", Kind: KindSensor, Field: observation.WindMPH,
			DeviceClass: "wind_speed", Unit: "mph", StateClass: stateMeasurement, Precision: 1,
			aux: auxISS,
		},
		{
			Key: "WindGust", Name: "Wind gust", Kind: KindSensor, Field: observation.WindGustMPH,
			DeviceClass: "wind_speed", Unit: "mph", StateClass: stateMeasurement, Precision: 1,
			aux: auxISS,
		},
		{
			Key: "WindDir", Name: "Wind direction", Kind: KindSensor, Field: observation.WindDir,
			DeviceClass: "enum", Icon: "mdi:compass-outline", Precision: -1, Options: CompassPoints,
			aux: auxISS, render: renderCompass,
		},
		{
			Key: "WindDirDeg", Name: "Wind direction degrees", Kind: KindSensor, Field: observation.WindDir,
			Icon: "mdi:compass-outline", Unit: "°", StateClass: stateMeasurement, Precision: 0,
			DisabledByDefault: true, aux: auxISS,
		},
		with(rain("RainToday", "Rain today", observation.RainDay, 2), func(d *Description) {
			d.aux = auxISS
		}),
		{
			Key: "RainRate", Name: "Rain rate", Kind: KindSensor, Field: observation.RainRate,
			DeviceClass: "precipitation_intensity", Unit: "in/h", StateClass: stateMeasurement, Precision: 2,
			aux: auxISS,
		},
		with(rain("RainStorm", "Rain storm", observation.RainStorm, 2), func(d *Description) {
			d.StateClass = ""
			d.aux = auxISS
			d.attrs = stormAttributes
		}),
		with(rain("RainStormLast", "Last rain storm", observation.RainStormLast, 2), func(d *Description) {
			d.StateClass = ""
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = legacyStruct
			d.aux = auxISS
			d.attrs = lastStormAttributes
		}),
		with(rain("ETDay", "Evapotranspiration today", observation.ETDay, 2), func(d *Description) {
			d.Icon = "mdi:waves-arrow-up"
			d.DisabledByDefault = true
		}),
		with(rain("ETMonth", "Evapotranspiration this month", observation.ETMonth, 2), func(d *Description) {
			d.Icon = "mdi:waves-arrow-up"
			d.DisabledByDefault = true
		}),
		with(rain("ETYear", "Evapotranspiration this year", observation.ETYear, 2), func(d *Description) {
			d.Icon = "mdi:waves-arrow-up"
			d.DisabledByDefault = true
		}),
		with(rain("RainInMonth", "Rain this month", observation.RainMonth, 0), func(d *Description) {
			d.aux = auxISS
		}),
		with(rain("RainInYear", "Rain this year", observation.RainYear, 0), func(d *Description) {
			d.aux = auxISS
		}),
		with(temperature("Dewpoint", "Dewpoint", observation.Dewpoint), func(d *Description) {
			d.aux = auxISSAir
		}),
		with(temperature("WindChill", "Wind chill", observation.WindChill), func(d *Description) {
			d.DisabledByDefault = true
			d.aux = auxISS
		}),
		with(temperature("HeatIndex", "Heat index", observation.HeatIndex), func(d *Description) {
			d.DisabledByDefault = true
			d.aux = auxISSAir
		}),
		with(temperature("WetBulb", "Wet bulb", observation.WetBulb), func(d *Description) {
			d.DisabledByDefault = true
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = legacyStruct
			d.aux = auxISSAir
		}),
		with(temperature("ThwIndex", "THW index", observation.ThwIndex), func(d *Description) {
			d.DisabledByDefault = true
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = legacyStruct
			d.aux = auxISS
		}),
		with(temperature("ThswIndex", "THSW index", observation.ThswIndex), func(d *Description) {
			d.DisabledByDefault = true
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = legacyStruct
			d.aux = auxISS
		}),
		{
			Key: "SolarRadiation", Name: "Solar irradiance", Kind: KindSensor, Field: observation.SolarRadiation,
			DeviceClass: "irradiance", Unit: "W/m²", StateClass: stateMeasurement, Precision: 0,
			aux: auxISS,
		},
		{
			Key: "UvIndex", Name: "UV index", Kind: KindSensor, Field: observation.UVIndex,
			Icon: "mdi:sun-wireless-outline", StateClass: stateMeasurement, Precision: 1,
			aux: auxISS,
		},
		voltage("TransBatteryVolt", "Transmitter battery voltage", observation.TransBatteryVolt),
		voltage("SolarPanelVolt", "Solar panel voltage", observation.SolarPanelVolt),
		voltage("SupercapVolt", "Supercap voltage", observation.SupercapVolt),
	}

	d = append(d, channels(4, func(i int) Description {
		return Description{
			Key: fmt.Sprintf("MoistSoil%d", i), Name: fmt.Sprintf("Soil moisture %d", i),
			Kind: KindSensor, Field: mustChannel(observation.MoistSoil, i),
			Icon: "mdi:watering-can-outline", Unit: "cbar", StateClass: stateMeasurement, Precision: 0,
			ExcludeAPI: excludeV1, ExcludeStructures: issStructs, aux: auxSoilLeaf,
		}
	})...)
	d = append(d, channels(4, func(i int) Description {
		desc := Description{
			Key: fmt.Sprintf("WetLeaf%d", i), Name: fmt.Sprintf("Leaf wetness %d", i),
			Kind: KindSensor, Field: mustChannel(observation.WetLeaf, i),
			Icon: "mdi:leaf", StateClass: stateMeasurement, Precision: 1,
			ExcludeAPI: excludeV1, ExcludeStructures: issStructs,
		}
		// Soil/leaf transmitters only carry two leaf channels.
		if i <= 2 {
			desc.aux = auxSoilLeaf
		}
		return desc
	})...)
	d = append(d, channels(4, func(i int) Description {
		return with(temperature(fmt.Sprintf("Temp%d", i), fmt.Sprintf("Temperature %d", i),
			mustChannel(observation.TempChannel, i)), func(d *Description) {
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = []int{2, 10, 23}
			d.aux = auxSoilLeaf
		})
	})...)
	d = append(d, channels(7, func(i int) Description {
		return with(temperature(fmt.Sprintf("TempExtra%d", i), fmt.Sprintf("Extra temperature %d", i),
			mustChannel(observation.TempExtra, i)), func(d *Description) {
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = issStructs
		})
	})...)
	d = append(d, channels(4, func(i int) Description {
		return with(temperature(fmt.Sprintf("TempLeaf%d", i), fmt.Sprintf("Leaf temperature %d", i),
			mustChannel(observation.TempLeaf, i)), func(d *Description) {
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = issStructs
		})
	})...)
	d = append(d, channels(4, func(i int) Description {
		return with(temperature(fmt.Sprintf("TempSoil%d", i), fmt.Sprintf("Soil temperature %d", i),
			mustChannel(observation.TempSoil, i)), func(d *Description) {
			d.ExcludeAPI = excludeV1
			d.ExcludeStructures = issStructs
		})
	})...)
	d = append(d, channels(7, func(i int) Description {
		return with(humidity(fmt.Sprintf("HumidityExtra%d", i), fmt.Sprintf("Extra humidity %d", i),
			mustChannel(observation.HumExtra, i)), func(d *Description) {
			d.ExcludeStructures = issStructs
		})
	})...)

	const ugm3 = "µg/m³"
	d = append(d,
		airQuality("PM1", "PM1", "pm1", observation.PM1, ugm3),
		airQuality("PM2P5", "PM2.5", "pm25", observation.PM2p5, ugm3),
		airQuality("PM10", "PM10", "pm10", observation.PM10, ugm3),
		with(airQuality("AQI", "AQI", "aqi", observation.AQIVal, ""), func(d *Description) {
			d.render = renderAQI
		}),
		with(airQuality("AQI_NOWCAST", "AQI nowcast", "aqi", observation.AQINowcastVal, ""), func(d *Description) {
			d.render = renderAQI
		}),
		airQuality("Temp", "Temperature", "temperature", observation.Temp, "°F"),
		airQuality("Hum", "Humidity", "humidity", observation.Hum, "%"),
	)
	return d
}()

var binaryDescriptions = []Description{
	{
		Key: "TransmitterBattery", Name: "Transmitter battery", Kind: KindBinarySensor,
		Field: observation.TransBatteryFlag, DeviceClass: "battery", Precision: -1,
		Category: categoryDiagnostic, ExcludeAPI: excludeV1, ExcludeStructures: []int{2, 12, 16, 18},
		aux: auxISS | auxSoilLeaf, render: renderFlag,
	},
	{
		Key: "Timestamp", Name: "Connectivity", Kind: KindBinarySensor,
		Field: observation.Timestamp, DeviceClass: "connectivity", Precision: -1,
		Category: categoryDiagnostic, aux: auxISS | auxSoilLeaf | auxAirLink,
		render: renderConnectivity,
	},
}

// Descriptions returns every sensor description followed by every binary
// sensor description. The slice is a copy.
func Descriptions() []Description {
	out := make([]Description, 0, len(sensorDescriptions)+len(binaryDescriptions))
	out = append(out, sensorDescriptions...)
	return append(out, binaryDescriptions...)
}

// DescriptionByKey finds a description by its key.
func DescriptionByKey(key string) (Description, bool) {
	for _, d := range sensorDescriptions {
		if d.Key == key {
			return d, true
		}
	}
	for _, d := range binaryDescriptions {
		if d.Key == key {
			return d, true
		}
	}
	return Description{}, false
}

// DescriptionsForField returns the descriptions backed by f. WIND_DIR has two.
func DescriptionsForField(f observation.Field) []Description {
	var out []Description
	for _, d := range Descriptions() {
		if d.Field == f {
			out = append(out, d)
		}
	}
	return out
}

func (d Description) excludesAPI(v observation.APIVersion) bool {
	for _, x := range d.ExcludeAPI {
		if x == v {
			return true
		}
	}
	return false
}

func (d Description) excludesStructure(ds int, known bool) bool {
	if !known {
		return false
	}
	return containsInt(d.ExcludeStructures, ds)
}

// familyOf classifies an auxiliary sensor type through the catalog.
func familyOf(c *sensorcatalog.Catalog, sensorType int) auxFamily {
	var f auxFamily
	if c.IsISSCurrentExtra(sensorType) {
		f |= auxISS
	}
	if c.IsSoilLeaf(sensorType) {
		f |= auxSoilLeaf
	}
	if c.IsAirLink(sensorType) {
		f |= auxAirLink
	}
	return f
}

func (d Description) isAuxFor(family auxFamily) bool {
	return d.aux&family != 0
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
