// Package mqtt publishes the station's entities to an MQTT broker using Home
// Assistant discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

const (
	defaultDiscoveryPrefix = "homeassistant"
	defaultTopicPrefix     = "wlcloud"
	publishTimeout         = 10 * time.Second
	disconnectQuiesceMS    = 250
)

var errPublishTimeout = errors.New("publish timed out")

// publisher is the slice of the paho client the controller needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type pahoPublisher struct {
	client paho.Client
}

func (p pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	t := p.client.Publish(topic, qos, retained, payload)
	if !t.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return t.Error()
}

// Controller publishes discovery configs and state for every entity.
type Controller struct {
	ctx     context.Context
	wg      *sync.WaitGroup
	source  weatherstations.Source
	builder *entity.Builder
	topics  topics
	qos     byte
	client  paho.Client
	pub     publisher
	logger  *zap.SugaredLogger
	now     func() time.Time

	announced map[string]bool
	last      *weatherstations.Snapshot
}

// NewController creates the MQTT controller. The broker connection is made
// by StartController.
func NewController(ctx context.Context, wg *sync.WaitGroup, mc config.MQTTData, source weatherstations.Source,
	builder *entity.Builder, logger *zap.SugaredLogger) (*Controller, error) {
	if mc.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker must be set")
	}
	if mc.QoS < 0 || mc.QoS > 2 {
		return nil, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", mc.QoS)
	}
	broker, err := brokerURL(mc.Broker)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		ctx:     ctx,
		wg:      wg,
		source:  source,
		builder: builder,
		topics: topics{
			discoveryPrefix: firstNonEmpty(mc.DiscoveryPrefix, defaultDiscoveryPrefix),
			topicPrefix:     strings.TrimSuffix(firstNonEmpty(mc.TopicPrefix, defaultTopicPrefix), "/"),
		},
		qos:       byte(mc.QoS),
		logger:    logger,
		now:       time.Now,
		announced: make(map[string]bool),
	}

	clientID := mc.ClientID
	if clientID == "" {
		clientID = "wlcloud-" + uuid.NewString()[:8]
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(mc.Username).
		SetPassword(mc.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetKeepAlive(30*time.Second).
		SetPingTimeout(10*time.Second).
		SetBinaryWill(c.topics.availability(), []byte(payloadOffline), c.qos, true)
	opts.OnConnect = func(_ paho.Client) {
		logger.Infof("connected to MQTT broker %s", broker)
		// Retained discovery and state survive reconnects; only the
		// availability flag needs restating after the will fired.
		c.publishRaw(c.topics.availability(), []byte(payloadOnline))
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warnf("MQTT connection lost: %v", err)
	}

	c.client = paho.NewClient(opts)
	c.pub = pahoPublisher{client: c.client}
	return c, nil
}

// brokerURL maps mqtt:// and tls:// style URLs onto the schemes paho expects.
func brokerURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "tcp://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("cannot parse MQTT broker URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "tcp":
		u.Scheme = "tcp"
	case "mqtts", "ssl", "tls":
		u.Scheme = "ssl"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported MQTT broker scheme %q", u.Scheme)
	}
	if u.Port() == "" && (u.Scheme == "tcp" || u.Scheme == "ssl") {
		port := "1883"
		if u.Scheme == "ssl" {
			port = "8883"
		}
		u.Host = u.Host + ":" + port
	}
	return u.String(), nil
}

// StartController connects to the broker and begins publishing.
func (c *Controller) StartController() error {
	c.logger.Info("Starting MQTT controller...")
	if c.client != nil {
		// With connect retry enabled the token stays pending until the broker
		// answers, so an unreachable broker does not block startup.
		t := c.client.Connect()
		if t.WaitTimeout(publishTimeout) && t.Error() != nil {
			return fmt.Errorf("error connecting to MQTT broker: %w", t.Error())
		}
	}

	events := c.source.Subscribe()
	c.wg.Add(1)
	go c.run(events)
	return nil
}

func (c *Controller) run(events <-chan weatherstations.PollEvent) {
	defer c.wg.Done()

	if snap := c.source.Snapshot(); snap != nil {
		c.handleSnapshot(snap)
	}

	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return
		case ev, ok := <-events:
			if !ok {
				c.shutdown()
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Controller) handleEvent(ev weatherstations.PollEvent) {
	if ev.Err != nil {
		if c.last != nil {
			c.publishStates(c.last, false)
		}
		return
	}
	if ev.Snapshot != nil {
		c.handleSnapshot(ev.Snapshot)
	}
}

// handleSnapshot announces any entity not yet announced and publishes state.
// Entities only appear once their field is first reported, so the set can
// grow between polls.
func (c *Controller) handleSnapshot(snap *weatherstations.Snapshot) {
	c.last = snap
	for _, e := range c.builder.Build(snap) {
		if c.announced[e.UniqueID] {
			continue
		}
		payload, err := json.Marshal(c.topics.discoveryConfig(e))
		if err != nil {
			c.logger.Errorf("error encoding discovery for %s: %v", e.UniqueID, err)
			continue
		}
		if c.publishRaw(c.topics.discovery(e), payload) {
			c.announced[e.UniqueID] = true
		}
	}
	c.publishStates(snap, true)
}

func (c *Controller) publishStates(snap *weatherstations.Snapshot, pollOK bool) {
	entities := c.builder.Build(snap)
	for topic, doc := range c.topics.deviceStates(entities, snap.Observation, pollOK, c.now()) {
		payload, err := json.Marshal(doc)
		if err != nil {
			c.logger.Errorf("error encoding state for %s: %v", topic, err)
			continue
		}
		c.publishRaw(topic, payload)
	}
}

func (c *Controller) publishRaw(topic string, payload []byte) bool {
	if err := c.pub.Publish(topic, c.qos, true, payload); err != nil {
		c.logger.Warnf("error publishing to %s: %v", topic, err)
		return false
	}
	return true
}

func (c *Controller) shutdown() {
	c.logger.Info("Shutting down the MQTT controller...")
	c.publishRaw(c.topics.availability(), []byte(payloadOffline))
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesceMS)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
