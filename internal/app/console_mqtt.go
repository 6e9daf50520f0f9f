package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/config"
	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// RunConsoleMQTT prints the signal and scalogram messages published by a
// scalogram session's MQTT sink.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	logger, flush, err := consoleLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-console")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Info("console: connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	subs := map[string]mqtt.MessageHandler{
		cfg.TopicSignal: func(_ mqtt.Client, msg mqtt.Message) {
			if err := printSignal(os.Stdout, msg.Payload()); err != nil {
				logger.Warn("console: signal unmarshal error", zap.Error(err))
			}
		},
		cfg.TopicScalogram + "/meta": func(_ mqtt.Client, msg mqtt.Message) {
			if err := printScalogram(os.Stdout, msg.Payload()); err != nil {
				logger.Warn("console: scalogram unmarshal error", zap.Error(err))
			}
		},
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		logger.Info("console: subscribed", zap.String("topic", topic))
	}

	// Wait for Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("console: shutting down")
	return nil
}

func printSignal(w io.Writer, payload []byte) error {
	var m frame.SignalMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m.Values))
	for k := range m.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s=%9.2f", imu.DisplayName(k), m.Values[k])
	}
	_, err := fmt.Fprintf(w, "[SIG ] t=%8.3f n=%6d%s\n", m.Time, m.Seq, b.String())
	return err
}

func printScalogram(w io.Writer, payload []byte) error {
	var m frame.ScalogramMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[SCAL] t=%8.3f n=%6d %s %dx%d %s %.1fms\n",
		m.Time, m.Seq, strings.Join(imu.DisplayNames(m.Channels), "/"), m.Rows, m.Cols, m.Kernel, m.TookMs)
	return err
}
