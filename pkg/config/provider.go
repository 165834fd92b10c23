package config

import (
	"errors"
	"fmt"
	"time"
)

// Entry schema versions. Version 1 predates API v2 support and carries no
// api_version.
const (
	EntryVersionLegacy  = 1
	EntryVersionCurrent = 2
)

const (
	APIVersionV1 = "v1"
	APIVersionV2 = "v2"

	DefaultPollInterval = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetEntry() (*EntryData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Entry       EntryData        `json:"entry"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// EntryData describes the WeatherLink account and station being polled.
// JSON names match the keys redacted from diagnostics.
type EntryData struct {
	Version    int    `json:"version"`
	Name       string `json:"name"`
	APIVersion string `json:"api_version"`

	// API v1
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIToken string `json:"apitoken,omitempty"`

	// API v2
	APIKey    string `json:"api_key_v2,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
	StationID int    `json:"station_id,omitempty"`

	PollInterval string `json:"poll_interval,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	BaseURLV1    string `json:"base_url_v1,omitempty"`
	BaseURLV2    string `json:"base_url_v2,omitempty"`
	CatalogFile  string `json:"catalog_file,omitempty"`
}

// ControllerData holds the configuration for various controller backends
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
	MQTT       *MQTTData       `json:"mqtt,omitempty"`
	Metrics    *MetricsData    `json:"metrics,omitempty"`
	Health     *HealthData     `json:"health,omitempty"`
}

type RESTServerData struct {
	Cert             string `json:"cert,omitempty"`
	Key              string `json:"key,omitempty"`
	Port             int    `json:"port,omitempty"`
	ListenAddr       string `json:"listen_addr,omitempty"`
	DiagnosticsToken string `json:"diagnostics_token,omitempty"`
}

type MQTTData struct {
	Broker          string `json:"broker"`
	ClientID        string `json:"client_id,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	DiscoveryPrefix string `json:"discovery_prefix,omitempty"`
	TopicPrefix     string `json:"topic_prefix,omitempty"`
	QoS             int    `json:"qos,omitempty"`
}

type MetricsData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Path       string `json:"path,omitempty"`
}

type HealthData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
}

// PollIntervalDuration parses PollInterval, defaulting to five minutes.
func (e *EntryData) PollIntervalDuration() (time.Duration, error) {
	return parseDuration(e.PollInterval, DefaultPollInterval)
}

// FetchTimeoutDuration parses FetchTimeout, defaulting to ten seconds.
func (e *EntryData) FetchTimeoutDuration() (time.Duration, error) {
	return parseDuration(e.FetchTimeout, DefaultFetchTimeout)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

// Validate reports every missing or malformed setting at once.
func (e *EntryData) Validate() error {
	var errs []error

	switch e.APIVersion {
	case APIVersionV1:
		if e.Username == "" {
			errs = append(errs, errors.New("username is required for API v1"))
		}
		if e.Password == "" {
			errs = append(errs, errors.New("password is required for API v1"))
		}
		if e.APIToken == "" {
			errs = append(errs, errors.New("apitoken is required for API v1"))
		}
	case APIVersionV2:
		if e.APIKey == "" {
			errs = append(errs, errors.New("api_key_v2 is required for API v2"))
		}
		if e.APISecret == "" {
			errs = append(errs, errors.New("api_secret is required for API v2"))
		}
		if e.StationID <= 0 {
			errs = append(errs, errors.New("station_id is required for API v2"))
		}
	default:
		errs = append(errs, fmt.Errorf("api_version must be %q or %q, got %q", APIVersionV1, APIVersionV2, e.APIVersion))
	}

	if _, err := e.PollIntervalDuration(); err != nil {
		errs = append(errs, fmt.Errorf("invalid poll_interval: %w", err))
	}
	if _, err := e.FetchTimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("invalid fetch_timeout: %w", err))
	}

	return errors.Join(errs...)
}

// FindController returns the first controller of the given type.
func (c *ConfigData) FindController(controllerType string) (*ControllerData, bool) {
	for i := range c.Controllers {
		if c.Controllers[i].Type == controllerType {
			return &c.Controllers[i], true
		}
	}
	return nil, false
}
