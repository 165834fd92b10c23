package entity

import (
	"fmt"
	"strings"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
)

const (
	unknownDeviceName = "Unknown devicename"
	v1Model           = "WeatherLink - API V1"
	fallbackV1Base    = "weatherlink-v1"
)

// uniqueIDBase is the DID for API v1 and the station UUID for API v2.
func uniqueIDBase(snap *weatherstations.Snapshot) string {
	if snap.APIVersion == observation.APIv1 {
		if v, ok := snap.Observation.Get(observation.DefaultPrimaryTxID, observation.DID); ok {
			if did, ok := v.Str(); ok && did != "" {
				return did
			}
		}
		return fallbackV1Base
	}
	if snap.Observation.StationUUID != "" {
		return snap.Observation.StationUUID
	}
	if snap.Station != nil {
		return snap.Station.StationIDUUID
	}
	return ""
}

func txSuffix(primary, txID int) string {
	if txID == primary {
		return ""
	}
	return fmt.Sprintf("-%d", txID)
}

func (b *Builder) deviceName(snap *weatherstations.Snapshot, txID int) string {
	if snap.APIVersion == observation.APIv1 {
		if v, ok := snap.Observation.Get(observation.DefaultPrimaryTxID, observation.StationName); ok {
			if name, ok := v.Str(); ok {
				return name
			}
		}
		return unknownDeviceName
	}

	if txID == snap.PrimaryTxID && snap.Station != nil {
		return snap.Station.StationName
	}
	for _, s := range snap.Sensors {
		if (b.catalog.IsISSCurrentExtra(s.SensorType) || b.catalog.IsSoilLeaf(s.SensorType)) && s.TxID != nil && *s.TxID == txID {
			return fmt.Sprintf("%s ID%d", s.ProductName, txID)
		}
		if b.catalog.IsAirLink(s.SensorType) && s.LSID == txID {
			return fmt.Sprintf("%s %s", s.ProductName, s.ParentDeviceName)
		}
	}
	return unknownDeviceName
}

func (b *Builder) deviceModel(snap *weatherstations.Snapshot, txID int) string {
	if snap.APIVersion == observation.APIv1 {
		return v1Model
	}

	var productName string
	for _, s := range snap.Sensors {
		consoleWithoutTx := b.catalog.IsConsoleVue(s.SensorType) && s.TxID == nil
		if consoleWithoutTx || (s.TxID != nil && *s.TxID == txID) {
			productName = s.ProductName
			break
		}
		if b.catalog.IsAirLink(s.SensorType) && s.LSID == txID {
			productName = s.ProductName
			break
		}
	}

	if txID != snap.PrimaryTxID {
		return productName
	}
	var productNumber string
	if snap.Station != nil {
		productNumber = snap.Station.ProductNumber
	}
	return GatewayType(productNumber) + " / " + productName
}

// GatewayType names the gateway hardware from its product number.
func GatewayType(productNumber string) string {
	n := productNumber
	switch {
	case strings.HasSuffix(n, "6558"):
		return "WL " + n
	case strings.HasPrefix(n, "7210"):
		return "AirLink " + n
	case strings.HasPrefix(n, "6805"):
		return "EnviroMonitor " + n
	case strings.HasPrefix(n, "6313"):
		return "WLC " + n
	case strings.HasPrefix(n, "6100"):
		return "WLL " + n
	case n == "6555":
		return "WLIP " + n
	}
	return "WeatherLink"
}
