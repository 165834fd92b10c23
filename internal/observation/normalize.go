package observation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/mail"

	"github.com/chrissnell/wlcloud/pkg/sensorcatalog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Normalizer converts raw payloads into Observations. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	catalog  *sensorcatalog.Catalog
	dispatch dispatchTable
	logger   *zap.SugaredLogger

	// known, when non-nil, limits output buckets to ids present in station metadata.
	known map[int]struct{}
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for skipped-element diagnostics.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithKnownSensors restricts output to transmitters named by station
// metadata: every tx_id and every lsid in sensors, plus the primary id.
func WithKnownSensors(sensors []SensorDescriptor) Option {
	return func(n *Normalizer) {
		n.known = make(map[int]struct{}, len(sensors)*2)
		for _, s := range sensors {
			if s.TxID != nil {
				n.known[*s.TxID] = struct{}{}
			}
			n.known[s.LSID] = struct{}{}
		}
	}
}

// NewNormalizer builds the dispatch table for catalog. A nil catalog selects
// the built-in default.
func NewNormalizer(catalog *sensorcatalog.Catalog, opts ...Option) *Normalizer {
	if catalog == nil {
		catalog = sensorcatalog.Default()
	}
	n := &Normalizer{
		catalog:  catalog,
		dispatch: buildDispatch(catalog),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Catalog returns the classification tables the normalizer dispatches on.
func (n *Normalizer) Catalog() *sensorcatalog.Catalog {
	return n.catalog
}

// Normalize decodes raw and normalizes it. Errors are returned only for
// payloads that are not a JSON object and for unknown API versions; field
// level problems are absorbed.
func (n *Normalizer) Normalize(raw []byte, version APIVersion, primaryTxID int) (*Observation, error) {
	if version != APIv1 && version != APIv2 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAPIVersion, version)
	}

	doc, err := DecodePayload(raw)
	if err != nil {
		return nil, err
	}
	return n.NormalizeDocument(doc, version, primaryTxID), nil
}

// DecodePayload decodes a vendor payload keeping numbers as json.Number so
// integers survive intact.
func DecodePayload(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedPayload)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedPayload)
	}
	return doc, nil
}

// NormalizeDocument normalizes an already decoded payload. It never fails;
// an unknown version yields an empty Observation.
func (n *Normalizer) NormalizeDocument(doc map[string]any, version APIVersion, primaryTxID int) *Observation {
	switch version {
	case APIv1:
		return n.normalizeV1(record(doc))
	case APIv2:
		return n.normalizeV2(record(doc), primaryTxID)
	}
	return newObservation()
}

// normalizeV1 places everything in transmitter 1: the v1 API describes a
// single console.
func (n *Normalizer) normalizeV1(doc record) *Observation {
	obs := newObservation()
	obs.merge(DefaultPrimaryTxID, extractV1(doc))
	return obs
}

func (n *Normalizer) normalizeV2(doc record, primaryTxID int) *Observation {
	obs := newObservation()
	obs.ensure(primaryTxID)

	if raw, ok := doc["station_id_uuid"].(string); ok {
		obs.StationUUID = canonicalUUID(raw)
	}

	sensors, _ := doc["sensors"].([]any)
	for i, raw := range sensors {
		n.normalizeElement(obs, i, raw, primaryTxID)
	}
	return obs
}

// normalizeElement folds one entry of the sensors array into obs. Anything it
// cannot interpret is skipped without affecting other elements.
func (n *Normalizer) normalizeElement(obs *Observation, index int, raw any, primaryTxID int) {
	elem, ok := asRecord(raw)
	if !ok {
		n.logger.Debugw("skipping sensor element that is not an object", "index", index)
		return
	}

	sensorType, ok1 := elem.int("sensor_type")
	structure, ok2 := elem.int("data_structure_type")
	if !ok1 || !ok2 {
		n.logger.Debugw("skipping sensor element without type tags", "index", index)
		return
	}

	pair := sensorcatalog.Pair{SensorType: sensorType, DataStructureType: structure}
	h, ok := n.dispatch[pair]
	if !ok {
		n.logger.Debugw("no extractor for sensor", "index", index, "pair", pair.String())
		return
	}

	data, ok := elem.firstData()
	if !ok {
		n.logger.Debugw("skipping sensor element without data", "index", index, "pair", pair.String())
		return
	}

	txID, ok := n.resolve(h.route, elem, data, primaryTxID)
	if !ok {
		n.logger.Debugw("skipping sensor element without routing id",
			"index", index, "pair", pair.String(), "route", h.route.String())
		return
	}

	if !n.isKnown(txID, primaryTxID) {
		n.logger.Debugw("skipping sensor element for transmitter absent from station metadata",
			"index", index, "pair", pair.String(), "tx", txID)
		return
	}

	partial := h.extract(data)
	if h.tag {
		partial[SensorType] = Int(int64(sensorType))
		partial[DataStructure] = Int(int64(structure))
	}
	obs.merge(txID, partial)
}

func (n *Normalizer) resolve(r route, elem, data record, primaryTxID int) (int, bool) {
	switch r {
	case routeTxID:
		return data.int("tx_id")
	case routeTxIDOrPrimary:
		if id, ok := data.int("tx_id"); ok {
			return id, true
		}
		return primaryTxID, true
	case routeLSID:
		return elem.int("lsid")
	case routePrimary:
		return primaryTxID, true
	}
	return 0, false
}

func (n *Normalizer) isKnown(txID, primaryTxID int) bool {
	if n.known == nil || txID == primaryTxID {
		return true
	}
	_, ok := n.known[txID]
	return ok
}

func canonicalUUID(raw string) string {
	id, err := uuid.Parse(raw)
	if err != nil {
		return raw
	}
	return id.String()
}

// parseRFC822 parses the v1 observation_time_rfc822 value into Unix seconds.
func parseRFC822(raw any) (int64, bool) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return 0, false
	}
	t, err := mail.ParseDate(s)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}
