// Package entity turns a station snapshot into the set of presentable
// entities (sensors and binary sensors grouped into devices) that the MQTT
// and REST surfaces publish.
package entity

import (
	"sort"

	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/sensorcatalog"
)

const (
	Manufacturer = "Davis"
	ConfigURL    = "https://www.weatherlink.com/"
)

// Device groups the entities of one transmitter.
type Device struct {
	Identifier      string `json:"identifier"`
	ViaDevice       string `json:"via_device,omitempty"`
	Name            string `json:"name"`
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	FirmwareVersion string `json:"sw_version,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	ConfigURL       string `json:"configuration_url"`
}

// Entity is one description bound to one transmitter.
type Entity struct {
	UniqueID    string
	TxID        int
	Description Description
	Device      Device
}

// Builder selects entities from a snapshot.
type Builder struct {
	catalog *sensorcatalog.Catalog
	logger  *zap.SugaredLogger
}

// NewBuilder returns a Builder. A nil catalog means the built-in one.
func NewBuilder(catalog *sensorcatalog.Catalog, logger *zap.SugaredLogger) *Builder {
	if catalog == nil {
		catalog = sensorcatalog.Default()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Builder{catalog: catalog, logger: logger}
}

// Build chooses the entities the snapshot supports. Primary transmitter
// entities honor the API version and data structure exclusions. Auxiliary
// transmitters, which only exist for API v2, get the descriptions listing
// their sensor type's catalog family. Entities are only created for fields present in the
// snapshot, so a rebuild after a poll may grow the set.
func (b *Builder) Build(snap *weatherstations.Snapshot) []Entity {
	if snap == nil || snap.Observation == nil {
		return nil
	}
	obs := snap.Observation
	primary := snap.PrimaryTxID

	var out []Entity
	seen := make(map[string]bool)
	add := func(e Entity) {
		if seen[e.UniqueID] {
			b.logger.Debugw("duplicate entity skipped", "unique_id", e.UniqueID)
			return
		}
		seen[e.UniqueID] = true
		out = append(out, e)
	}

	if bucket, ok := obs.Transmitter(primary); ok {
		ds, dsKnown := structureOf(bucket)
		for _, d := range Descriptions() {
			if d.excludesAPI(snap.APIVersion) || d.excludesStructure(ds, dsKnown) {
				continue
			}
			if !present(bucket, d.Field) {
				continue
			}
			add(b.newEntity(snap, d, primary))
		}
	}

	if snap.APIVersion != observation.APIv2 {
		return out
	}

	for _, sensor := range snap.Sensors {
		txID := sensor.LSID
		if sensor.TxID != nil {
			if *sensor.TxID == primary {
				continue
			}
			txID = *sensor.TxID
		}
		bucket, ok := obs.Transmitter(txID)
		if !ok {
			continue
		}
		family := familyOf(b.catalog, sensor.SensorType)
		if family == 0 {
			continue
		}
		ds, dsKnown := structureOf(bucket)
		for _, d := range Descriptions() {
			if !d.isAuxFor(family) {
				continue
			}
			// Binary sensors on tx-addressed transmitters are gated by the
			// structure rather than by field presence.
			if d.Kind == KindBinarySensor && sensor.TxID != nil {
				if d.excludesStructure(ds, dsKnown) {
					continue
				}
			} else if !present(bucket, d.Field) {
				continue
			}
			add(b.newEntity(snap, d, txID))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

func (b *Builder) newEntity(snap *weatherstations.Snapshot, d Description, txID int) Entity {
	base := uniqueIDBase(snap)
	txPart := txSuffix(snap.PrimaryTxID, txID)

	dev := Device{
		Identifier:   base + txPart,
		Name:         b.deviceName(snap, txID),
		Manufacturer: Manufacturer,
		Model:        b.deviceModel(snap, txID),
		ConfigURL:    ConfigURL,
	}
	if txPart != "" {
		dev.ViaDevice = base
	}
	if snap.APIVersion == observation.APIv2 && snap.Station != nil {
		dev.FirmwareVersion = snap.Station.FirmwareVersion
		dev.SerialNumber = snap.Station.GatewayIDHex
	}

	return Entity{
		UniqueID:    base + txPart + "-" + d.Key,
		TxID:        txID,
		Description: d,
		Device:      dev,
	}
}

func present(bucket observation.Fields, f observation.Field) bool {
	v, ok := bucket.Get(f)
	return ok && !v.IsNull()
}

func structureOf(bucket observation.Fields) (int, bool) {
	v, ok := bucket.Get(observation.DataStructure)
	if !ok {
		return 0, false
	}
	ds, ok := v.Int64()
	return int(ds), ok
}
