// Package observation turns WeatherLink cloud API payloads into a uniform
// per-transmitter model. Normalization is pure computation: it performs no
// I/O and keeps no state between calls.
package observation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// APIVersion selects the vendor payload schema.
type APIVersion string

const (
	APIv1 APIVersion = "v1"
	APIv2 APIVersion = "v2"
)

// ParseAPIVersion accepts "v1"/"v2" and the bare "1"/"2".
func ParseAPIVersion(s string) (APIVersion, error) {
	switch s {
	case "v1", "1":
		return APIv1, nil
	case "v2", "2":
		return APIv2, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAPIVersion, s)
}

// DefaultPrimaryTxID is the transmitter id used for API v1 and when station
// metadata names no console transmitter.
const DefaultPrimaryTxID = 1

// SensorDescriptor is one entry of the station's sensor metadata.
type SensorDescriptor struct {
	LSID              int    `json:"lsid"`
	SensorType        int    `json:"sensor_type"`
	DataStructureType int    `json:"data_structure_type"`
	TxID              *int   `json:"tx_id"`
	ProductName       string `json:"product_name"`
	ProductNumber     string `json:"product_number,omitempty"`
	ParentDeviceName  string `json:"parent_device_name"`
	StationID         int    `json:"station_id"`
}

// Fields is one transmitter's readings keyed by normalized field.
type Fields map[Field]Value

// Get returns the reading for f. Absent means no reading this cycle.
func (fs Fields) Get(f Field) (Value, bool) {
	v, ok := fs[f]
	return v, ok
}

// Float returns a numeric reading. Absent and null both report false.
func (fs Fields) Float(f Field) (float64, bool) {
	v, ok := fs[f]
	if !ok {
		return 0, false
	}
	return v.Float64()
}

// Keys returns the present fields in vocabulary order.
func (fs Fields) Keys() []Field {
	keys := make([]Field, 0, len(fs))
	for f := range fs {
		keys = append(keys, f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Observation is one poll's normalized result.
type Observation struct {
	// StationUUID is the v2 station identifier. It belongs to the station as a
	// whole and is never stored inside a transmitter bucket.
	StationUUID string

	Transmitters map[int]Fields
}

func newObservation() *Observation {
	return &Observation{Transmitters: make(map[int]Fields)}
}

// ensure creates an empty bucket for txID if none exists.
func (o *Observation) ensure(txID int) Fields {
	bucket, ok := o.Transmitters[txID]
	if !ok {
		bucket = make(Fields)
		o.Transmitters[txID] = bucket
	}
	return bucket
}

// merge folds partial into txID's bucket. Later writes win per field.
func (o *Observation) merge(txID int, partial Fields) {
	bucket := o.ensure(txID)
	for f, v := range partial {
		bucket[f] = v
	}
}

// Get looks up one reading.
func (o *Observation) Get(txID int, f Field) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	bucket, ok := o.Transmitters[txID]
	if !ok {
		return Value{}, false
	}
	return bucket.Get(f)
}

// Transmitter returns a transmitter's bucket.
func (o *Observation) Transmitter(txID int) (Fields, bool) {
	if o == nil {
		return nil, false
	}
	bucket, ok := o.Transmitters[txID]
	return bucket, ok
}

// TransmitterIDs returns the transmitter ids in ascending order.
func (o *Observation) TransmitterIDs() []int {
	ids := make([]int, 0, len(o.Transmitters))
	for id := range o.Transmitters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Clone returns a deep copy safe to hand to another goroutine.
func (o *Observation) Clone() *Observation {
	if o == nil {
		return nil
	}
	c := &Observation{
		StationUUID:  o.StationUUID,
		Transmitters: make(map[int]Fields, len(o.Transmitters)),
	}
	for id, bucket := range o.Transmitters {
		cp := make(Fields, len(bucket))
		for f, v := range bucket {
			cp[f] = v
		}
		c.Transmitters[id] = cp
	}
	return c
}

type observationJSON struct {
	StationUUID  string            `json:"station_uuid,omitempty"`
	Transmitters map[string]Fields `json:"transmitters"`
}

func (o *Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{
		StationUUID:  o.StationUUID,
		Transmitters: make(map[string]Fields, len(o.Transmitters)),
	}
	for id, bucket := range o.Transmitters {
		out.Transmitters[strconv.Itoa(id)] = bucket
	}
	return json.Marshal(out)
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	var in observationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	o.StationUUID = in.StationUUID
	o.Transmitters = make(map[int]Fields, len(in.Transmitters))
	for key, bucket := range in.Transmitters {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid transmitter id %q: %w", key, err)
		}
		o.Transmitters[id] = bucket
	}
	return nil
}
