package sink

import (
	"bytes"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMillis  = 250
)

// MQTTConfig describes where batches are published
type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
	// PerSentence publishes every sentence on Topic/<type>, e.g. nmea/GGA,
	// without the CRLF. Otherwise the whole batch goes to Topic.
	PerSentence bool
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes NMEA batches to an MQTT broker
type MQTTPublisher struct {
	cfg    MQTTConfig
	pub    publisher
	client mqtt.Client
}

// DialMQTT connects to the broker in cfg
func DialMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("no MQTT topic given")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid MQTT QoS %d", cfg.QoS)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("nmea-emulator-%d", time.Now().UnixNano())
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &MQTTPublisher{cfg: cfg, pub: client, client: client}, nil
}

func (m *MQTTPublisher) Write(p []byte) (int, error) {
	if !m.cfg.PerSentence {
		payload := make([]byte, len(p))
		copy(payload, p)
		if err := m.publish(m.cfg.Topic, payload); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	for _, sentence := range splitSentences(p) {
		line := bytes.TrimRight(sentence, "\r\n")
		if len(line) == 0 {
			continue
		}
		if err := m.publish(m.cfg.Topic+"/"+sentenceType(line), string(line)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (m *MQTTPublisher) publish(topic string, payload interface{}) error {
	token := m.pub.Publish(topic, m.cfg.QoS, m.cfg.Retain, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// sentenceType returns the three letter type of "$GPGGA,..." style lines
func sentenceType(line []byte) string {
	end := bytes.IndexAny(line, ",*")
	if end < 0 {
		end = len(line)
	}
	addr := line[:end]
	if len(addr) < 6 || addr[0] != '$' {
		return "unknown"
	}
	return string(addr[3:])
}

// Close disconnects from the broker
func (m *MQTTPublisher) Close() error {
	if m.client != nil {
		m.client.Disconnect(mqttQuiesceMillis)
	}
	return nil
}
