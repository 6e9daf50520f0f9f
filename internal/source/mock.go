// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// Mock generates smooth synthetic IMU signals at a fixed rate. Sample time
// is count/rate, so runs are reproducible.
type Mock struct {
	channels []string
	rate     float64
	ticker   *time.Ticker
	n        uint64
}

// NewMock creates a mock source. When paced is false Next never sleeps.
func NewMock(channels []string, rateHz float64, paced bool) (*Mock, error) {
	if !(rateHz > 0) {
		return nil, fmt.Errorf("mock source: rate must be positive, got %v", rateHz)
	}
	for _, ch := range channels {
		if _, err := (imu.IMURaw{}).Field(ch); err != nil {
			return nil, fmt.Errorf("mock source: %w", err)
		}
	}
	m := &Mock{channels: channels, rate: rateHz}
	if paced {
		m.ticker = time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	}
	return m, nil
}

func (m *Mock) Next(ctx context.Context) (imu.Sample, error) {
	if m.ticker != nil {
		select {
		case <-ctx.Done():
			return imu.Sample{}, ctx.Err()
		case <-m.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return imu.Sample{}, err
	}

	t := float64(m.n) / m.rate
	m.n++

	values, err := MockRaw(t, "mock").Values(m.channels)
	if err != nil {
		return imu.Sample{}, err
	}
	return imu.Sample{Time: t, Values: values}, nil
}

func (m *Mock) Close() error {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	return nil
}

// MockRaw returns a synthetic raw record for time t (seconds).
// Each axis mixes a slow tone with a faster burst so the scalogram has
// structure at several scales.
func MockRaw(t float64, src string) imu.IMURaw {
	burst := 0.0
	if math.Mod(t, 4) < 1 {
		burst = 1
	}
	chirp := math.Sin(2 * math.Pi * (0.5 + 2*math.Mod(t, 5)) * t)

	return imu.IMURaw{
		Source: src,
		Ax:     int16(2000*math.Sin(2*math.Pi*1.0*t) + 800*burst*math.Sin(2*math.Pi*12*t)),
		Ay:     int16(1500 * chirp),
		Az:     int16(16384 + 600*math.Cos(2*math.Pi*0.3*t) + 400*burst*math.Sin(2*math.Pi*20*t)),
		Gx:     int16(300 * math.Sin(2*math.Pi*2.5*t)),
		Gy:     int16(250*math.Cos(2*math.Pi*0.7*t) + 150*burst),
		Gz:     int16(math.Mod(t*30, 360)),
		Mx:     int16(200 * math.Cos(t)),
		My:     int16(200 * math.Sin(t)),
		Mz:     -400,
	}
}
