package observation

import "github.com/chrissnell/wlcloud/pkg/sensorcatalog"

// SelectPrimaryTransmitter returns the lowest tx_id among console/Vue family
// sensors, or DefaultPrimaryTxID when none carries a tx_id.
func SelectPrimaryTransmitter(sensors []SensorDescriptor, catalog *sensorcatalog.Catalog) int {
	if catalog == nil {
		catalog = sensorcatalog.Default()
	}

	primary, found := 0, false
	for _, s := range sensors {
		if s.TxID == nil || !catalog.IsConsoleVue(s.SensorType) {
			continue
		}
		if !found || *s.TxID < primary {
			primary, found = *s.TxID, true
		}
	}
	if !found {
		return DefaultPrimaryTxID
	}
	return primary
}

// FilterStation keeps the sensors attached to stationID. The sensors endpoint
// lists every sensor on the account.
func FilterStation(sensors []SensorDescriptor, stationID int) []SensorDescriptor {
	out := make([]SensorDescriptor, 0, len(sensors))
	for _, s := range sensors {
		if s.StationID == stationID {
			out = append(out, s)
		}
	}
	return out
}

// TransmitterIDs returns the distinct tx_ids present in sensors.
func TransmitterIDs(sensors []SensorDescriptor) []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, s := range sensors {
		if s.TxID == nil {
			continue
		}
		if _, ok := seen[*s.TxID]; ok {
			continue
		}
		seen[*s.TxID] = struct{}{}
		ids = append(ids, *s.TxID)
	}
	return ids
}
