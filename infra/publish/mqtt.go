// Package publish delivers composed run results to external consumers. The
// dashboard and storage layers subscribe to the topic; rendering and
// persistence stay outside the engine.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fuelhedge/core/result"
	"github.com/kilianp07/fuelhedge/infra/logger"
)

// Config defines the connection parameters for the MQTT result publisher.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
	// TimeoutSeconds bounds connect and publish token waits.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "fuelhedge-publisher"
	}
	if c.Topic == "" {
		c.Topic = "fuelhedge/results"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
}

// Validate checks mandatory fields when the publisher is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("publisher broker is required")
	}
	return nil
}

// pahoClient is the subset of the Paho client the publisher uses. It is an
// interface so tests can substitute a fake.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTTPublisher publishes run results as JSON on a single topic.
type MQTTPublisher struct {
	cli     pahoClient
	topic   string
	qos     byte
	timeout time.Duration
	log     logger.Logger
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(cfg Config) (*MQTTPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)
	p := &MQTTPublisher{
		cli:     paho.NewClient(opts),
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:     logger.New("result-publisher"),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MQTTPublisher) connect() error {
	tok := p.cli.Connect()
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt connect timed out after %s", p.timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish serializes the result and publishes it on the configured topic.
func (p *MQTTPublisher) Publish(res *result.RunResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tok := p.cli.Publish(p.topic, p.qos, false, payload)
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish result %s: timed out after %s", res.RunID, p.timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish result %s: %w", res.RunID, err)
	}
	p.log.Debugf("published result %s to %s", res.RunID, p.topic)
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
