// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/config"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/recorder"
	"github.com/relabs-tech/imu_scalogram/internal/source"
)

// RunRecorder records the configured source to CSV for duration (0 means
// until interrupted) and writes the statistics report.
func RunRecorder(duration time.Duration) error {
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
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	clientID := cfg.MQTTClientID + "-rec-" + uuid.NewString()[:8]
	src, err := openSource(cfg, clientID, logger)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	rec, err := recorder.New(cfg.CSVOutputDir, cfg.Channels, time.Now(), logger.Named("recorder"))
	if err != nil {
		return err
	}

	logger.Info("starting data collection",
		zap.Duration("duration", duration),
		zap.Strings("channels", cfg.Channels))

	recErr := Record(ctx, src, rec, logger)
	if err := rec.Close(); err != nil {
		return err
	}
	return recErr
}

// consoleLogger is newLogger for tools without a TUI; they always log to
// the console.
func consoleLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	c := *cfg
	c.Sinks = nil
	return newLogger(&c)
}

// Record copies samples from src into rec until ctx is done or the source
// ends. Malformed records are skipped.
func Record(ctx context.Context, src source.Source, rec *recorder.Recorder, logger *zap.Logger) error {
	for {
		s, err := src.Next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			logger.Info("data collection complete")
			return nil
		case imu.IsSchemaError(err):
			logger.Debug("skipping record", zap.Error(err))
			continue
		case errors.Is(err, imu.ErrUnavailable):
			continue
		case errors.Is(err, io.EOF):
			logger.Info("source exhausted")
			return nil
		default:
			return fmt.Errorf("recorder: source: %w", err)
		}
		if err := rec.Record(s); err != nil {
			logger.Warn("record failed", zap.Error(err))
		}
	}
}
