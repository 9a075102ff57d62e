// ABOUTME: MQTT refresh notifier
// ABOUTME: Publishes refresh signals as JSON to <prefix>/refresh

package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds the broker settings for the MQTT notifier.
type MQTTConfig struct {
	Broker      string `json:"broker" env:"BROKER"`
	ClientID    string `json:"client_id" env:"CLIENT_ID"`
	TopicPrefix string `json:"topic_prefix" env:"TOPIC_PREFIX"`
	Enabled     bool   `json:"enabled" env:"ENABLED"`
}

// RefreshMessage is the payload published for each signal.
type RefreshMessage struct {
	Scope     string    `json:"scope"`
	Timestamp time.Time `json:"timestamp"`
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
}

// MQTT publishes refresh signals to a broker.
type MQTT struct {
	client publisher
	topic  string
	logger *log.Logger
	now    func() time.Time
}

// NewMQTT connects to the configured broker.
func NewMQTT(cfg MQTTConfig, logger *log.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	opts := MQTT.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)

	client := MQTT.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTT(client, cfg.TopicPrefix, logger), nil
}

func newMQTT(client publisher, prefix string, logger *log.Logger) *MQTT {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if prefix == "" {
		prefix = "locguard"
	}
	return &MQTT{
		client: client,
		topic:  prefix + "/refresh",
		logger: logger,
		now:    time.Now,
	}
}

// Refresh implements Notifier. Delivery failures are logged.
func (m *MQTT) Refresh(scope string) {
	payload, err := json.Marshal(RefreshMessage{Scope: scope, Timestamp: m.now()})
	if err != nil {
		m.logger.Warn("failed to encode refresh", "error", err)
		return
	}

	token := m.client.Publish(m.topic, 0, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			m.logger.Warn("failed to publish refresh", "topic", m.topic, "error", err)
		}
	}()
}

// Close disconnects from the broker if the client supports it.
func (m *MQTT) Close() {
	if c, ok := m.client.(MQTT.Client); ok {
		c.Disconnect(250)
	}
}
