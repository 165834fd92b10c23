package observation

// Extractors map one vendor record shape onto normalized fields. Each reads
// only data[0] of its sensor element and returns a partial bucket.

type extractFunc func(rec record) Fields

// extractISSCurrent handles data structure 10, the first-generation ISS
// current-conditions record.
func extractISSCurrent(rec record) Fields {
	out := make(Fields)
	extractISSCommon(rec, out)
	rec.take(out, RainDay, "rainfall_daily_in")
	rec.takeZeroNull(out, RainStorm, "rain_storm_in")
	rec.take(out, RainStormStart, "rain_storm_start_at")
	rec.take(out, RainMonth, "rainfall_monthly_in")
	return out
}

// extractISSCurrentGen2 handles data structure 23. Same readings as
// structure 10 under renamed keys, plus supply voltages.
func extractISSCurrentGen2(rec record) Fields {
	out := make(Fields)
	extractISSCommon(rec, out)
	rec.take(out, RainDay, "rainfall_day_in")
	rec.takeZeroNull(out, RainStorm, "rain_storm_current_in")
	rec.take(out, RainStormStart, "rain_storm_current_start_at")
	rec.take(out, RainMonth, "rainfall_month_in")
	rec.take(out, TransBatteryVolt, "trans_battery_volt")
	rec.take(out, SupercapVolt, "supercap_volt")
	rec.take(out, SolarPanelVolt, "solar_panel_volt")
	return out
}

func extractISSCommon(rec record, out Fields) {
	rec.take(out, Timestamp, "ts")
	rec.take(out, TempOut, "temp")
	rec.take(out, HumOut, "hum")
	rec.take(out, WindMPH, "wind_speed_last")
	rec.take(out, WindGustMPH, "wind_speed_hi_last_10_min")
	rec.take(out, WindDir, "wind_dir_last")
	rec.take(out, Dewpoint, "dew_point")
	rec.take(out, HeatIndex, "heat_index")
	rec.take(out, ThwIndex, "thw_index")
	rec.take(out, ThswIndex, "thsw_index")
	rec.take(out, WetBulb, "wet_bulb")
	rec.take(out, WindChill, "wind_chill")
	rec.takeZeroNull(out, RainStormLast, "rain_storm_last_in")
	rec.take(out, RainStormLastStart, "rain_storm_last_start_at")
	rec.take(out, RainStormLastEnd, "rain_storm_last_end_at")
	rec.take(out, RainRate, "rain_rate_last_in")
	rec.take(out, RainYear, "rainfall_year_in")
	rec.take(out, TransBatteryFlag, "trans_battery_flag")
	rec.take(out, UVIndex, "uv_index")
	rec.take(out, SolarRadiation, "solar_rad")
	rec.take(out, ETDay, "et_day")
	rec.take(out, ETMonth, "et_month")
	rec.take(out, ETYear, "et_year")
}

// extractVantageLegacy handles data structure 2, the console record relayed
// by Vantage Connect and WeatherLinkIP gateways.
func extractVantageLegacy(rec record) Fields {
	out := extractEnviroMonitor(rec)
	rec.take(out, TempIn, "temp_in")
	rec.take(out, HumIn, "hum_in")
	rec.takeChannels(out, TempExtra, "temp_extra", 7)
	rec.takeChannels(out, TempLeaf, "temp_leaf", 4)
	rec.takeChannels(out, TempSoil, "temp_soil", 4)
	rec.takeChannels(out, HumExtra, "hum_extra", 7)
	rec.takeChannels(out, MoistSoil, "moist_soil", 4)
	rec.takeChannels(out, WetLeaf, "wet_leaf", 4)
	return out
}

// extractEnviroMonitor handles data structure 6. It shares the structure 2
// naming for outdoor readings and carries no indoor or channel data.
func extractEnviroMonitor(rec record) Fields {
	out := make(Fields)
	rec.take(out, Timestamp, "ts")
	rec.take(out, TempOut, "temp_out")
	rec.take(out, HumOut, "hum_out")
	rec.take(out, BarSeaLevel, "bar")
	// bar_trend arrives in thousandths of an inch.
	rec.takeScaled(out, BarTrend, "bar_trend", 1000)
	rec.take(out, WindMPH, "wind_speed")
	rec.take(out, WindGustMPH, "wind_gust_10_min")
	rec.take(out, WindDir, "wind_dir")
	rec.take(out, Dewpoint, "dew_point")
	rec.take(out, HeatIndex, "heat_index")
	rec.take(out, WindChill, "wind_chill")
	rec.take(out, RainDay, "rain_day_in")
	rec.takeZeroNull(out, RainStorm, "rain_storm_in")
	rec.take(out, RainStormStart, "rain_storm_start_date")
	rec.take(out, RainRate, "rain_rate_in")
	rec.take(out, RainMonth, "rain_month_in")
	rec.take(out, RainYear, "rain_year_in")
	rec.take(out, SolarRadiation, "solar_rad")
	rec.take(out, UVIndex, "uv")
	rec.take(out, ETDay, "et_day")
	rec.take(out, ETMonth, "et_month")
	rec.take(out, ETYear, "et_year")
	return out
}

// extractSoilLeaf handles data structure 12 from a soil/leaf station.
func extractSoilLeaf(rec record) Fields {
	out := make(Fields)
	rec.take(out, Timestamp, "ts")
	rec.takeChannels(out, TempChannel, "temp", 4)
	rec.takeChannels(out, MoistSoil, "moist_soil", 4)
	rec.takeChannels(out, WetLeaf, "wet_leaf", 2)
	return out
}

// extractSoilLeafGen2 handles data structure 25: structure 12 plus battery.
func extractSoilLeafGen2(rec record) Fields {
	out := extractSoilLeaf(rec)
	rec.take(out, TransBatteryFlag, "trans_battery_flag")
	return out
}

// extractAirLink handles data structure 16.
func extractAirLink(rec record) Fields {
	out := make(Fields)
	rec.take(out, Timestamp, "ts")
	rec.take(out, Temp, "temp")
	rec.take(out, Hum, "hum")
	rec.take(out, Dewpoint, "dew_point")
	rec.take(out, HeatIndex, "heat_index")
	rec.take(out, WetBulb, "wet_bulb")
	rec.take(out, PM1, "pm_1")
	rec.take(out, PM2p5, "pm_2p5")
	rec.take(out, PM2p5Last24h, "pm_2p5_24_hour")
	rec.take(out, PM10, "pm_10")
	rec.take(out, PM10Last24h, "pm_10_24_hour")
	rec.take(out, AQIVal, "aqi_val")
	rec.take(out, AQINowcastVal, "aqi_nowcast_val")
	return out
}

// extractIndoorPatch reads an indoor temperature/humidity sensor that feeds
// the primary transmitter.
func extractIndoorPatch(rec record) Fields {
	out := make(Fields)
	rec.take(out, TempIn, "temp_in")
	rec.take(out, HumIn, "hum_in")
	return out
}

// extractBarometerPatch reads an external barometer. Its bar_trend is
// already in inches and is not scaled.
func extractBarometerPatch(rec record) Fields {
	out := make(Fields)
	rec.take(out, BarSeaLevel, "bar_sea_level")
	rec.take(out, BarTrend, "bar_trend")
	return out
}

// extractV1 maps the flat API v1 NoaaExt document. DCO-only readings come
// from the nested davis_current_observation object.
func extractV1(doc record) Fields {
	out := make(Fields)
	dco, _ := doc.object("davis_current_observation")
	if dco == nil {
		dco = record{}
	}

	dco.take(out, DID, "DID")
	dco.take(out, StationName, "station_name")
	doc.take(out, TempOut, "temp_f")
	doc.take(out, HeatIndex, "heat_index_f")
	doc.take(out, WindChill, "wind_chill_f")
	dco.take(out, TempIn, "temp_in_f")
	dco.take(out, HumIn, "relative_humidity_in")
	doc.take(out, HumOut, "relative_humidity")
	doc.take(out, BarSeaLevel, "pressure_in")
	doc.take(out, WindMPH, "wind_mph")
	dco.take(out, WindGustMPH, "wind_ten_min_gust_mph")
	doc.take(out, WindDir, "wind_degrees")
	doc.take(out, Dewpoint, "dewpoint_f")
	dco.take(out, RainDay, "rain_day_in")
	dco.takeZeroNull(out, RainStorm, "rain_storm_in")
	dco.take(out, RainRate, "rain_rate_in_per_hr")
	dco.take(out, RainMonth, "rain_month_in")
	dco.take(out, RainYear, "rain_year_in")
	dco.take(out, BarTrend, "pressure_tendency_string")
	dco.take(out, SolarRadiation, "solar_radiation")
	dco.take(out, UVIndex, "uv_index")
	dco.take(out, ETDay, "et_day")
	dco.take(out, ETMonth, "et_month")
	dco.take(out, ETYear, "et_year")

	if ts, ok := parseRFC822(doc["observation_time_rfc822"]); ok {
		out[Timestamp] = Int(ts)
	}
	return out
}
