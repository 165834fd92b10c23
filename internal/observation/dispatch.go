package observation

import (
	"github.com/chrissnell/wlcloud/pkg/sensorcatalog"
)

// Vendor data structure types.
const (
	StructureVantageLegacy = 2
	StructureEnviroMonitor = 6
	StructureISSCurrent    = 10
	StructureSoilLeaf      = 12
	StructureAirLink       = 16
	StructureBarometer     = 19
	StructureIndoor        = 21
	StructureISSCurrentV2  = 23
	StructureSoilLeafV2    = 25
)

// route says which transmitter bucket an element's fields land in.
type route uint8

const (
	// routeTxID uses the element's data[0].tx_id; elements without one are skipped.
	routeTxID route = iota
	// routeTxIDOrPrimary uses data[0].tx_id, falling back to the primary id.
	routeTxIDOrPrimary
	// routeLSID uses the element's lsid.
	routeLSID
	// routePrimary patches the primary transmitter's bucket.
	routePrimary
)

func (r route) String() string {
	switch r {
	case routeTxID:
		return "tx_id"
	case routeTxIDOrPrimary:
		return "tx_id_or_primary"
	case routeLSID:
		return "lsid"
	case routePrimary:
		return "primary"
	}
	return "unknown"
}

type handler struct {
	name    string
	route   route
	extract extractFunc
	// tag records SENSOR_TYPE and DATA_STRUCTURE in the bucket. Patches
	// do not tag since they describe an auxiliary input, not the bucket owner.
	tag bool
}

type dispatchTable map[sensorcatalog.Pair]handler

// buildDispatch expands the catalog families into a lookup keyed by the exact
// (sensor type, data structure) pair. Patches are registered last.
func buildDispatch(c *sensorcatalog.Catalog) dispatchTable {
	t := make(dispatchTable)
	add := func(sensorType, structure int, h handler) {
		t[sensorcatalog.Pair{SensorType: sensorType, DataStructureType: structure}] = h
	}

	issTypes := append(c.ConsoleVueTypes(), c.ISSCurrentExtraTypes()...)
	for _, code := range issTypes {
		add(code, StructureISSCurrent, handler{"iss_current", routeTxID, extractISSCurrent, true})
		add(code, StructureISSCurrentV2, handler{"iss_current_v2", routeTxID, extractISSCurrentGen2, true})
	}
	for _, code := range c.ConsoleVueTypes() {
		add(code, StructureVantageLegacy, handler{"vantage_legacy", routeTxIDOrPrimary, extractVantageLegacy, true})
		add(code, StructureEnviroMonitor, handler{"enviromonitor", routeTxIDOrPrimary, extractEnviroMonitor, true})
	}
	for _, code := range c.SoilLeafTypes() {
		add(code, StructureSoilLeaf, handler{"soil_leaf", routeTxID, extractSoilLeaf, true})
		add(code, StructureSoilLeafV2, handler{"soil_leaf_v2", routeTxID, extractSoilLeafGen2, true})
	}
	for _, code := range c.AirLinkTypes() {
		add(code, StructureAirLink, handler{"airlink", routeLSID, extractAirLink, true})
	}
	for _, p := range c.IndoorPatches() {
		add(p.SensorType, p.DataStructureType, handler{"indoor_patch", routePrimary, extractIndoorPatch, false})
	}
	for _, p := range c.BarometerPatches() {
		add(p.SensorType, p.DataStructureType, handler{"barometer_patch", routePrimary, extractBarometerPatch, false})
	}
	return t
}
