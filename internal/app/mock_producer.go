// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/config"
	"github.com/relabs-tech/imu_scalogram/internal/source"
)

// RunMockProducer publishes synthetic raw IMU records on TOPIC_IMU_SOURCE
// at MOCK_RATE_HZ, for running the scalogram with SOURCE=mqtt and no hardware.
func RunMockProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	logger, flush, err := consoleLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-mock-producer")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	// 2) Publish loop
	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.MockRateHz))
	defer ticker.Stop()

	start := time.Now()
	var published uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("mock producer stopped", zap.Uint64("published", published))
			return nil
		case t := <-ticker.C:
			raw := source.MockRaw(t.Sub(start).Seconds(), "mock")
			payload, err := json.Marshal(raw)
			if err != nil {
				logger.Warn("json marshal error", zap.Error(err))
				continue
			}
			if token := client.Publish(cfg.TopicIMUSource, 0, false, payload); token.Wait() && token.Error() != nil {
				logger.Warn("MQTT publish error", zap.Error(token.Error()))
				continue
			}
			published++
			if published%1000 == 0 {
				logger.Info("mock samples published", zap.Uint64("count", published))
			}
		}
	}
}
