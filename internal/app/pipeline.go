// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/config"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/logging"
	"github.com/relabs-tech/imu_scalogram/internal/recorder"
	"github.com/relabs-tech/imu_scalogram/internal/render"
	"github.com/relabs-tech/imu_scalogram/internal/router"
	"github.com/relabs-tech/imu_scalogram/internal/sink"
	"github.com/relabs-tech/imu_scalogram/internal/source"
	"github.com/relabs-tech/imu_scalogram/internal/wavelet"
)

// newLogger builds the process logger. Console output is off while the TUI
// owns the terminal.
func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	return logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: !cfg.HasSink("tui"),
	})
}

// Trigger converts the configured cadence.
func Trigger(cfg *config.Config) router.Trigger {
	if cfg.Trigger == "seconds" {
		return router.EveryTSeconds(time.Duration(cfg.TriggerEverySeconds * float64(time.Second)))
	}
	return router.EveryNSamples(uint64(cfg.TriggerEverySamples))
}

// EngineOptions converts the configured transform settings.
func EngineOptions(cfg *config.Config, logger *zap.Logger) (wavelet.Options, error) {
	kernel, err := wavelet.ParseKernel(cfg.Wavelet, cfg.MorletW0)
	if err != nil {
		return wavelet.Options{}, err
	}
	method, err := wavelet.ParseMethod(cfg.CWTMethod)
	if err != nil {
		return wavelet.Options{}, err
	}
	return wavelet.Options{
		Kernel:  kernel,
		Scales:  cfg.Scales,
		Width:   cfg.WindowCapacity,
		MinFill: cfg.MinFill,
		Method:  method,
		Logger:  logger.Named("wavelet"),
	}, nil
}

// Normalization converts the configured compositor policy.
func Normalization(cfg *config.Config) (composite.Normalization, error) {
	mode, err := composite.ParseMode(cfg.Normalization)
	if err != nil {
		return composite.Normalization{}, err
	}
	return composite.Normalization{Mode: mode, Min: cfg.NormalizationMin, Max: cfg.NormalizationMax}, nil
}

// RenderOptions sizes and labels rendered scalograms.
func RenderOptions(cfg *config.Config, selection []int) render.Options {
	names := make([]string, len(selection))
	for i, idx := range selection {
		names[i] = imu.DisplayName(cfg.Channels[idx])
	}
	return render.Options{
		Width:  cfg.ImageWidth,
		Height: cfg.ImageHeight,
		Smooth: true,
		Labels: []string{strings.Join(names, " / ") + "  " + cfg.Wavelet + " " + cfg.Scales.String()},
	}
}

// openSource opens the configured sample source.
func openSource(cfg *config.Config, clientID string, logger *zap.Logger) (source.Source, error) {
	logger = logger.Named("source")
	switch cfg.Source {
	case "serial":
		return source.OpenSerial(source.SerialOptions{
			PortName: cfg.SerialPort,
			BaudRate: uint(cfg.SerialBaudRate),
			Fields:   cfg.SerialFields,
			Channels: cfg.Channels,
		}, logger)
	case "mqtt":
		return source.ConnectMQTT(source.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: clientID + "-source",
			Topic:    cfg.TopicIMUSource,
			Channels: cfg.Channels,
		}, logger)
	case "mpu9250":
		return source.OpenMPU9250(source.MPU9250Options{
			SPIDevice: cfg.IMUSPIDevice,
			CSPin:     cfg.IMUCSPin,
			Interval:  time.Duration(cfg.IMUSampleInterval) * time.Millisecond,
			Channels:  cfg.Channels,
		}, logger)
	case "mock":
		logger.Info("using mock source", zap.Float64("rate_hz", cfg.MockRateHz))
		return source.NewMock(cfg.Channels, cfg.MockRateHz, true)
	case "replay":
		logger.Info("replaying recording", zap.String("file", cfg.ReplayFile))
		return source.OpenReplay(cfg.ReplayFile, cfg.Channels, cfg.ReplayRealtime)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// openSinks opens every configured sink. The TUI is started last since it
// takes over the terminal. On failure the sinks opened so far are closed.
func openSinks(cfg *config.Config, sessionID, clientID string, ropts render.Options, logger *zap.Logger) (sink.Multi, error) {
	var sinks sink.Multi
	fail := func(err error) (sink.Multi, error) {
		sinks.Close()
		return nil, err
	}

	if cfg.HasSink("csv") {
		rec, err := recorder.New(cfg.CSVOutputDir, cfg.Channels, time.Now(), logger.Named("recorder"))
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, rec)
	}
	if cfg.HasSink("png") {
		p, err := sink.NewPNGFile(cfg.PNGOutputPath, ropts)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, p)
	}
	if cfg.HasSink("mqtt") {
		m, err := sink.ConnectMQTT(cfg.MQTTBroker, clientID+"-sink", sink.MQTTOptions{
			SignalTopic:    cfg.TopicSignal,
			ScalogramTopic: cfg.TopicScalogram,
			Render:         ropts,
		}, logger.Named("mqtt"))
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, m)
	}
	if cfg.HasSink("web") {
		h := sink.NewHub(sink.WebOptions{
			Addr:   fmt.Sprintf(":%d", cfg.WebServerPort),
			Root:   cfg.WebRoot,
			Render: ropts,
		}, logger.Named("web"))
		if err := h.Start(); err != nil {
			return fail(err)
		}
		sinks = append(sinks, h)
	}
	if cfg.HasSink("tui") {
		sinks = append(sinks, sink.StartTUI("IMU Scalogram "+sessionID[:8], cfg.Channels))
	}
	return sinks, nil
}

// needsPNG reports whether any enabled sink consumes rendered images.
func needsPNG(cfg *config.Config) bool {
	return cfg.HasSink("web") || cfg.HasSink("mqtt") || cfg.HasSink("png")
}
