package restserver

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
	"github.com/chrissnell/wlcloud/pkg/responseformat"
)

func (c *Controller) getObservation(w http.ResponseWriter, r *http.Request) {
	snap := c.source.Snapshot()
	if snap == nil {
		c.sendError(w, r, http.StatusServiceUnavailable, "no observation yet", nil)
		return
	}
	c.send(w, r, http.StatusOK, observationResponse(snap))
}

func (c *Controller) getTransmitter(w http.ResponseWriter, r *http.Request) {
	snap, txID, bucket, ok := c.lookupTransmitter(w, r)
	if !ok {
		return
	}
	c.send(w, r, http.StatusOK, TransmitterResponse{
		TxID:      txID,
		Primary:   txID == snap.PrimaryTxID,
		FetchedAt: snap.FetchedAt,
		Fields:    bucket,
	})
}

func (c *Controller) getField(w http.ResponseWriter, r *http.Request) {
	snap, txID, bucket, ok := c.lookupTransmitter(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)["field"]
	field, known := observation.ParseField(key)
	if !known {
		c.sendError(w, r, http.StatusNotFound, "unknown field", nil)
		return
	}
	value, present := bucket.Get(field)
	if !present {
		c.sendError(w, r, http.StatusNotFound, "field not reported by this transmitter", nil)
		return
	}

	resp := FieldResponse{TxID: txID, Field: field, Value: value, Unit: field.Unit()}
	now := c.now()
	pollOK := c.source.Status().State == weatherstations.StateHealthy

	// Prefer the built entities so unique ids are included; fall back to
	// rendering the bare descriptions for fields that have no entity here.
	if c.builder != nil {
		for _, e := range c.builder.Build(snap) {
			if e.TxID != txID || e.Description.Field != field {
				continue
			}
			resp.Entities = append(resp.Entities, FieldEntity{
				Key:      e.Description.Key,
				UniqueID: e.UniqueID,
				Kind:     e.Description.Kind,
				State:    e.Render(snap.Observation, pollOK, now),
			})
		}
	}
	if len(resp.Entities) == 0 {
		for _, d := range entity.DescriptionsForField(field) {
			resp.Entities = append(resp.Entities, FieldEntity{
				Key:   d.Key,
				Kind:  d.Kind,
				State: entity.State{Value: entity.RenderValue(d, bucket, now), Available: pollOK},
			})
		}
	}

	c.send(w, r, http.StatusOK, resp)
}

func (c *Controller) getStatus(w http.ResponseWriter, r *http.Request) {
	st := c.source.Status()
	c.send(w, r, http.StatusOK, StatusResponse{Status: st, Healthy: st.Healthy(c.now(), c.maxAge)})
}

func (c *Controller) getHealth(w http.ResponseWriter, r *http.Request) {
	st := c.source.Status()
	if !st.Healthy(c.now(), c.maxAge) {
		c.send(w, r, http.StatusServiceUnavailable, StatusResponse{Status: st})
		return
	}
	c.send(w, r, http.StatusOK, StatusResponse{Status: st, Healthy: true})
}

func (c *Controller) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	resp := DiagnosticsResponse{
		Entry:  config.Redact(c.entry),
		Status: c.source.Status(),
	}
	if snap := c.source.Snapshot(); snap != nil {
		if snap.Station != nil {
			resp.Station = config.Redact(snap.Station)
		}
		if len(snap.Sensors) > 0 {
			resp.Sensors = snap.Sensors
		}
		obs := observationResponse(snap)
		resp.Snapshot = &obs
	}
	c.send(w, r, http.StatusOK, resp)
}

func (c *Controller) lookupTransmitter(w http.ResponseWriter, r *http.Request) (*weatherstations.Snapshot, int, observation.Fields, bool) {
	snap := c.source.Snapshot()
	if snap == nil {
		c.sendError(w, r, http.StatusServiceUnavailable, "no observation yet", nil)
		return nil, 0, nil, false
	}
	txID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		c.sendError(w, r, http.StatusBadRequest, "invalid transmitter id", err)
		return nil, 0, nil, false
	}
	bucket, ok := snap.Observation.Transmitter(txID)
	if !ok {
		c.sendError(w, r, http.StatusNotFound, "unknown transmitter", nil)
		return nil, 0, nil, false
	}
	return snap, txID, bucket, true
}

func observationResponse(snap *weatherstations.Snapshot) ObservationResponse {
	resp := ObservationResponse{
		APIVersion:   snap.APIVersion,
		PrimaryTxID:  snap.PrimaryTxID,
		FetchedAt:    snap.FetchedAt,
		Transmitters: make(map[string]observation.Fields),
	}
	if snap.Observation != nil {
		resp.StationUUID = snap.Observation.StationUUID
		for id, bucket := range snap.Observation.Transmitters {
			resp.Transmitters[strconv.Itoa(id)] = bucket
		}
	}
	return resp
}

// send writes data in the negotiated format, falling back to a JSON 500 when
// encoding fails.
func (c *Controller) send(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := responseformat.Write(w, r, status, data); err != nil {
		c.logger.Errorf("error encoding response for %s: %v", r.URL.Path, err)
		c.sendError(w, r, http.StatusInternalServerError, "error encoding response", err)
	}
}

// sendError sends an error response in the negotiated format
func (c *Controller) sendError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	resp := ErrorResponse{
		Error:     message,
		Status:    statusCode,
		Timestamp: c.now().Unix(),
	}
	if err != nil {
		resp.Details = err.Error()
	}
	if werr := responseformat.Write(w, r, statusCode, resp); werr != nil {
		http.Error(w, message, statusCode)
	}
}
