package weatherstations

import (
	"time"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
)

// WeatherStation is an interface that provides standard methods for polled
// weather station backends
type WeatherStation interface {
	StartWeatherStation() error
	StopWeatherStation() error
	StationName() string
}

// Snapshot is the result of one successful poll. It is never mutated after
// publication, so readers may share it freely.
type Snapshot struct {
	Observation *observation.Observation `json:"observation"`
	APIVersion  observation.APIVersion   `json:"api_version"`
	PrimaryTxID int                      `json:"primary_tx_id"`
	FetchedAt   time.Time                `json:"fetched_at"`

	// Station and Sensors are captured once at setup; both are empty for v1.
	Station *weatherlink.Station           `json:"station,omitempty"`
	Sensors []observation.SensorDescriptor `json:"sensors,omitempty"`
}

// PollEvent reports the outcome of one poll cycle to subscribers. Snapshot is
// nil when Err is set.
type PollEvent struct {
	Snapshot *Snapshot
	Err      error
	At       time.Time
	Duration time.Duration
}

// Source is the read side of a running station, consumed by controllers.
type Source interface {
	Snapshot() *Snapshot
	Status() Status
	Subscribe() <-chan PollEvent
}
