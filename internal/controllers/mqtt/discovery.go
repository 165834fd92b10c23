package mqtt

import (
	"fmt"
	"strings"
	"time"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/observation"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	payloadOn      = "ON"
	payloadOff     = "OFF"
)

// DiscoveryConfig is a Home Assistant MQTT discovery message.
type DiscoveryConfig struct {
	Name                   string         `json:"name"`
	UniqueID               string         `json:"unique_id"`
	ObjectID               string         `json:"object_id"`
	StateTopic             string         `json:"state_topic"`
	ValueTemplate          string         `json:"value_template"`
	JSONAttributesTopic    string         `json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate string         `json:"json_attributes_template,omitempty"`
	Availability           []Availability `json:"availability"`
	AvailabilityMode       string         `json:"availability_mode"`
	DeviceClass            string         `json:"device_class,omitempty"`
	UnitOfMeasurement      string         `json:"unit_of_measurement,omitempty"`
	StateClass             string         `json:"state_class,omitempty"`
	Icon                   string         `json:"icon,omitempty"`
	EntityCategory         string         `json:"entity_category,omitempty"`
	EnabledByDefault       bool           `json:"enabled_by_default"`
	SuggestedPrecision     *int           `json:"suggested_display_precision,omitempty"`
	Options                []string       `json:"options,omitempty"`
	PayloadOn              string         `json:"payload_on,omitempty"`
	PayloadOff             string         `json:"payload_off,omitempty"`
	Device                 DeviceConfig   `json:"device"`
}

// Availability is one entry of a discovery availability list.
type Availability struct {
	Topic         string `json:"topic"`
	ValueTemplate string `json:"value_template,omitempty"`
}

// DeviceConfig is the device block of a discovery message.
type DeviceConfig struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Manufacturer     string   `json:"manufacturer"`
	Model            string   `json:"model"`
	SWVersion        string   `json:"sw_version,omitempty"`
	SerialNumber     string   `json:"serial_number,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
	ViaDevice        string   `json:"via_device,omitempty"`
}

// DeviceState is the JSON document published to a device's state topic. One
// document carries every entity of the device, keyed by description key.
type DeviceState struct {
	Values     map[string]any            `json:"values"`
	Available  map[string]string         `json:"available"`
	Attributes map[string]map[string]any `json:"attributes,omitempty"`
}

type topics struct {
	discoveryPrefix string
	topicPrefix     string
}

func (t topics) availability() string {
	return t.topicPrefix + "/status"
}

func (t topics) state(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", t.topicPrefix, sanitize(deviceID))
}

func (t topics) discovery(e entity.Entity) string {
	return fmt.Sprintf("%s/%s/%s/config", t.discoveryPrefix, e.Description.Kind, sanitize(e.UniqueID))
}

// sanitize keeps topic levels within the characters discovery accepts.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func (t topics) discoveryConfig(e entity.Entity) DiscoveryConfig {
	d := e.Description
	stateTopic := t.state(e.Device.Identifier)

	cfg := DiscoveryConfig{
		Name:          d.Name,
		UniqueID:      e.UniqueID,
		ObjectID:      sanitize(strings.ToLower(e.Device.Name + "_" + d.Key)),
		StateTopic:    stateTopic,
		ValueTemplate: fmt.Sprintf("{{ value_json['values'][%q] }}", d.Key),
		Availability: []Availability{
			{Topic: t.availability()},
			{Topic: stateTopic, ValueTemplate: fmt.Sprintf("{{ value_json['available'][%q] }}", d.Key)},
		},
		AvailabilityMode:  "all",
		DeviceClass:       d.DeviceClass,
		UnitOfMeasurement: d.Unit,
		StateClass:        d.StateClass,
		Icon:              d.Icon,
		EntityCategory:    d.Category,
		EnabledByDefault:  !d.DisabledByDefault,
		Options:           d.Options,
		Device: DeviceConfig{
			Identifiers:      []string{e.Device.Identifier},
			Name:             e.Device.Name,
			Manufacturer:     e.Device.Manufacturer,
			Model:            e.Device.Model,
			SWVersion:        e.Device.FirmwareVersion,
			SerialNumber:     e.Device.SerialNumber,
			ConfigurationURL: e.Device.ConfigURL,
			ViaDevice:        e.Device.ViaDevice,
		},
	}
	if d.Precision >= 0 && d.Kind == entity.KindSensor {
		p := d.Precision
		cfg.SuggestedPrecision = &p
	}
	if d.Kind == entity.KindBinarySensor {
		cfg.PayloadOn = payloadOn
		cfg.PayloadOff = payloadOff
	} else {
		cfg.JSONAttributesTopic = stateTopic
		cfg.JSONAttributesTemplate = fmt.Sprintf("{{ value_json['attributes'][%q] | default({}) | tojson }}", d.Key)
	}
	return cfg
}

// deviceStates renders every entity into per-device state documents keyed by
// state topic.
func (t topics) deviceStates(entities []entity.Entity, obs *observation.Observation, pollOK bool, now time.Time) map[string]*DeviceState {
	out := make(map[string]*DeviceState)
	for _, e := range entities {
		topic := t.state(e.Device.Identifier)
		doc, ok := out[topic]
		if !ok {
			doc = &DeviceState{
				Values:    make(map[string]any),
				Available: make(map[string]string),
			}
			out[topic] = doc
		}

		st := e.Render(obs, pollOK, now)
		value := st.Value
		if b, isBool := value.(bool); isBool {
			value = payloadOff
			if b {
				value = payloadOn
			}
		}
		doc.Values[e.Description.Key] = value
		doc.Available[e.Description.Key] = payloadOffline
		if st.Available {
			doc.Available[e.Description.Key] = payloadOnline
		}
		if len(st.Attributes) > 0 {
			if doc.Attributes == nil {
				doc.Attributes = make(map[string]map[string]any)
			}
			doc.Attributes[e.Description.Key] = st.Attributes
		}
	}
	return out
}
