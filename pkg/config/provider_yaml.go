package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document into ConfigData. Legacy entries are
// migrated on the fly; the file itself is never rewritten.
func ParseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Entry       EntryYAML        `yaml:"entry"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	e := yamlConfig.Entry
	config := &ConfigData{
		Entry: EntryData{
			Version:      e.Version,
			Name:         e.Name,
			APIVersion:   e.APIVersion,
			Username:     e.Username,
			Password:     e.Password,
			APIToken:     e.APIToken,
			APIKey:       e.APIKey,
			APISecret:    e.APISecret,
			StationID:    e.StationID,
			PollInterval: e.PollInterval,
			FetchTimeout: e.FetchTimeout,
			BaseURLV1:    e.BaseURLV1,
			BaseURLV2:    e.BaseURLV2,
			CatalogFile:  e.CatalogFile,
		},
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}
	if _, err := MigrateEntry(&config.Entry); err != nil {
		return nil, err
	}

	// Convert controllers
	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:             controller.RESTServer.Cert,
				Key:              controller.RESTServer.Key,
				Port:             controller.RESTServer.Port,
				ListenAddr:       controller.RESTServer.ListenAddr,
				DiagnosticsToken: controller.RESTServer.DiagnosticsToken,
			}
		}

		if controller.MQTT != nil {
			config.Controllers[i].MQTT = &MQTTData{
				Broker:          controller.MQTT.Broker,
				ClientID:        controller.MQTT.ClientID,
				Username:        controller.MQTT.Username,
				Password:        controller.MQTT.Password,
				DiscoveryPrefix: controller.MQTT.DiscoveryPrefix,
				TopicPrefix:     controller.MQTT.TopicPrefix,
				QoS:             controller.MQTT.QoS,
			}
		}

		if controller.Metrics != nil {
			config.Controllers[i].Metrics = &MetricsData{
				ListenAddr: controller.Metrics.ListenAddr,
				Port:       controller.Metrics.Port,
				Path:       controller.Metrics.Path,
			}
		}

		if controller.Health != nil {
			config.Controllers[i].Health = &HealthData{
				ListenAddr: controller.Health.ListenAddr,
				Port:       controller.Health.Port,
				Cert:       controller.Health.Cert,
				Key:        controller.Health.Key,
			}
		}
	}

	return config, nil
}

// GetEntry returns the station entry
func (y *YAMLProvider) GetEntry() (*EntryData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	entry := y.config.Entry
	return &entry, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags
type EntryYAML struct {
	Version      int    `yaml:"version,omitempty"`
	Name         string `yaml:"name"`
	APIVersion   string `yaml:"api-version,omitempty"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	APIToken     string `yaml:"api-token,omitempty"`
	APIKey       string `yaml:"api-key-v2,omitempty"`
	APISecret    string `yaml:"api-secret,omitempty"`
	StationID    int    `yaml:"station-id,omitempty"`
	PollInterval string `yaml:"poll-interval,omitempty"`
	FetchTimeout string `yaml:"fetch-timeout,omitempty"`
	BaseURLV1    string `yaml:"base-url-v1,omitempty"`
	BaseURLV2    string `yaml:"base-url-v2,omitempty"`
	CatalogFile  string `yaml:"catalog-file,omitempty"`
}

type ControllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	RESTServer *RESTServerYAML `yaml:"rest,omitempty"`
	MQTT       *MQTTYAML       `yaml:"mqtt,omitempty"`
	Metrics    *MetricsYAML    `yaml:"metrics,omitempty"`
	Health     *HealthYAML     `yaml:"health,omitempty"`
}

type RESTServerYAML struct {
	Cert             string `yaml:"cert,omitempty"`
	Key              string `yaml:"key,omitempty"`
	Port             int    `yaml:"port,omitempty"`
	ListenAddr       string `yaml:"listen-addr,omitempty"`
	DiagnosticsToken string `yaml:"diagnostics-token,omitempty"`
}

type MQTTYAML struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client-id,omitempty"`
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	DiscoveryPrefix string `yaml:"discovery-prefix,omitempty"`
	TopicPrefix     string `yaml:"topic-prefix,omitempty"`
	QoS             int    `yaml:"qos,omitempty"`
}

type MetricsYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Path       string `yaml:"path,omitempty"`
}

type HealthYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
}
