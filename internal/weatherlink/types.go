package weatherlink

import "github.com/chrissnell/wlcloud/internal/observation"

// Station is the subset of a /v2/stations entry the service uses.
type Station struct {
	StationID         int     `json:"station_id"`
	StationIDUUID     string  `json:"station_id_uuid"`
	StationName       string  `json:"station_name"`
	GatewayID         int     `json:"gateway_id,omitempty"`
	GatewayIDHex      string  `json:"gateway_id_hex"`
	ProductNumber     string  `json:"product_number"`
	FirmwareVersion   string  `json:"firmware_version"`
	UserEmail         string  `json:"user_email,omitempty"`
	City              string  `json:"city,omitempty"`
	Region            string  `json:"region,omitempty"`
	Country           string  `json:"country,omitempty"`
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
	Elevation         float64 `json:"elevation,omitempty"`
	RecordingInterval int     `json:"recording_interval,omitempty"`
}

type stationsResponse struct {
	Stations    []Station `json:"stations"`
	GeneratedAt int64     `json:"generated_at"`
}

type sensorsResponse struct {
	Sensors     []observation.SensorDescriptor `json:"sensors"`
	GeneratedAt int64                          `json:"generated_at"`
}

// apiError is the error envelope v2 returns alongside non-2xx statuses.
type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}
