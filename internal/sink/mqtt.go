package sink

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/render"
)

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTOptions names the output topics.
type MQTTOptions struct {
	SignalTopic    string // latest sample JSON
	ScalogramTopic string // PNG bytes; metadata JSON goes to <topic>/meta
	Render         render.Options
}

// MQTT publishes frames to a broker.
type MQTT struct {
	pub        Publisher
	opts       MQTTOptions
	logger     *zap.Logger
	disconnect func()
}

// NewMQTT wraps an already connected publisher.
func NewMQTT(pub Publisher, opts MQTTOptions, logger *zap.Logger) *MQTT {
	return &MQTT{pub: pub, opts: opts, logger: logger}
}

// ConnectMQTT connects a new client to broker.
func ConnectMQTT(broker, clientID string, opts MQTTOptions, logger *zap.Logger) (*MQTT, error) {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt sink: connect %s: %w", broker, token.Error())
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker))

	m := NewMQTT(client, opts, logger)
	m.disconnect = func() { client.Disconnect(250) }
	return m, nil
}

func (m *MQTT) publish(topic string, retained bool, payload []byte) error {
	token := m.pub.Publish(topic, 0, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt sink: publish %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) PublishSignal(_ context.Context, s frame.Signal) error {
	if m.opts.SignalTopic == "" {
		return nil
	}
	payload, err := json.Marshal(s.Message())
	if err != nil {
		return fmt.Errorf("mqtt sink: signal marshal: %w", err)
	}
	return m.publish(m.opts.SignalTopic, false, payload)
}

func (m *MQTT) PublishScalogram(_ context.Context, s frame.Scalogram) error {
	if m.opts.ScalogramTopic == "" {
		return nil
	}
	img, err := pngOf(s, m.opts.Render)
	if err != nil {
		return fmt.Errorf("mqtt sink: %w", err)
	}
	if err := m.publish(m.opts.ScalogramTopic, true, img); err != nil {
		return err
	}

	meta, err := json.Marshal(s.Message())
	if err != nil {
		return fmt.Errorf("mqtt sink: scalogram marshal: %w", err)
	}
	m.logger.Debug("published scalogram", zap.Uint64("seq", s.Seq), zap.Int("png_bytes", len(img)))
	return m.publish(m.opts.ScalogramTopic+"/meta", true, meta)
}

func (m *MQTT) Close() error {
	if m.disconnect != nil {
		m.disconnect()
	}
	return nil
}
