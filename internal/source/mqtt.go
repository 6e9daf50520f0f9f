package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// MQTTOptions selects the broker and the raw IMU topic to consume.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
	Channels []string
}

type mqttItem struct {
	sample imu.Sample
	err    error
}

// MQTT consumes imu.IMURaw JSON records from a broker topic, as published by
// the inertial producers. A lost connection is fatal.
type MQTT struct {
	client   mqtt.Client
	topic    string
	channels []string
	logger   *zap.Logger

	mu  sync.Mutex
	clk clock

	items     chan mqttItem
	lost      chan error
	lostOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func newMQTT(topic string, channels []string, logger *zap.Logger) *MQTT {
	return &MQTT{
		topic:    topic,
		channels: channels,
		logger:   logger,
		items:    make(chan mqttItem, 256),
		lost:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// ConnectMQTT connects to the broker and subscribes to the IMU topic.
func ConnectMQTT(opts MQTTOptions, logger *zap.Logger) (*MQTT, error) {
	for _, ch := range opts.Channels {
		if _, err := (imu.IMURaw{}).Field(ch); err != nil {
			return nil, fmt.Errorf("mqtt source: %w", err)
		}
	}

	m := newMQTT(opts.Topic, opts.Channels, logger)

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.connectionLost(err)
		})

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, &imu.DeviceError{Device: opts.Broker, Err: token.Error()}
	}
	m.client = client
	logger.Info("connected to MQTT broker", zap.String("broker", opts.Broker))

	token := client.Subscribe(opts.Topic, 0, m.onMessage)
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return nil, &imu.DeviceError{Device: opts.Broker, Err: token.Error()}
	}
	logger.Info("subscribed to MQTT topic", zap.String("topic", opts.Topic))

	return m, nil
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m.handle(msg.Payload(), time.Now())
}

// handle decodes one payload and queues the result. When the consumer falls
// behind the newest record is dropped.
func (m *MQTT) handle(payload []byte, at time.Time) {
	var item mqttItem

	var raw imu.IMURaw
	if err := json.Unmarshal(payload, &raw); err != nil {
		item.err = &imu.SchemaError{Want: len(m.channels), Reason: "payload unmarshal: " + err.Error(), Line: string(payload)}
	} else if values, err := raw.Values(m.channels); err != nil {
		item.err = &imu.SchemaError{Want: len(m.channels), Reason: err.Error()}
	} else {
		m.mu.Lock()
		t := m.clk.since(at)
		m.mu.Unlock()
		item.sample = imu.Sample{Time: t, Values: values}
	}

	select {
	case m.items <- item:
	case <-m.done:
	default:
		m.logger.Warn("mqtt source queue full, dropping record", zap.String("topic", m.topic))
	}
}

func (m *MQTT) connectionLost(err error) {
	m.lostOnce.Do(func() {
		m.lost <- &imu.DeviceError{Device: m.topic, Err: fmt.Errorf("connection lost: %w", err)}
	})
}

// Next returns queued records in arrival order.
func (m *MQTT) Next(ctx context.Context) (imu.Sample, error) {
	select {
	case <-ctx.Done():
		return imu.Sample{}, ctx.Err()
	case err := <-m.lost:
		return imu.Sample{}, err
	case <-m.done:
		return imu.Sample{}, &imu.DeviceError{Device: m.topic, Err: errors.New("source closed")}
	case it := <-m.items:
		return it.sample, it.err
	}
}

// Close unsubscribes and disconnects.
func (m *MQTT) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.client != nil {
			m.client.Unsubscribe(m.topic).Wait()
			m.client.Disconnect(250)
		}
	})
	return nil
}
