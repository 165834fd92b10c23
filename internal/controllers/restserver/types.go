package restserver

import (
	"time"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
)

// ObservationResponse is the body of GET /observation.
type ObservationResponse struct {
	StationUUID  string                        `json:"station_uuid,omitempty"`
	APIVersion   observation.APIVersion        `json:"api_version"`
	PrimaryTxID  int                           `json:"primary_tx_id"`
	FetchedAt    time.Time                     `json:"fetched_at"`
	Transmitters map[string]observation.Fields `json:"transmitters"`
}

// TransmitterResponse is the body of GET /transmitters/{id}.
type TransmitterResponse struct {
	TxID      int                `json:"tx_id"`
	Primary   bool               `json:"primary"`
	FetchedAt time.Time          `json:"fetched_at"`
	Fields    observation.Fields `json:"fields"`
}

// FieldResponse is the body of GET /transmitters/{id}/fields/{field}.
type FieldResponse struct {
	TxID     int               `json:"tx_id"`
	Field    observation.Field `json:"field"`
	Value    observation.Value `json:"value"`
	Unit     string            `json:"unit,omitempty"`
	Entities []FieldEntity     `json:"entities,omitempty"`
}

// FieldEntity is one entity rendering of a field.
type FieldEntity struct {
	Key      string       `json:"key"`
	UniqueID string       `json:"unique_id,omitempty"`
	Kind     entity.Kind  `json:"kind"`
	State    entity.State `json:"state"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	weatherstations.Status
	Healthy bool `json:"healthy"`
}

// DiagnosticsResponse is the body of GET /diagnostics. Credentials and
// account identifiers are redacted.
type DiagnosticsResponse struct {
	Entry    any                    `json:"entry"`
	Station  any                    `json:"station,omitempty"`
	Sensors  any                    `json:"sensors,omitempty"`
	Snapshot *ObservationResponse   `json:"snapshot,omitempty"`
	Status   weatherstations.Status `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details,omitempty"`
}
