// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package source produces time-stamped multi-channel samples from devices,
// brokers, files and generators.
package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// Source yields samples in session channel order.
//
// Next blocks until a sample is ready or ctx is done. It returns
// imu.ErrUnavailable when nothing is ready yet, a *imu.SchemaError for a
// malformed record (the caller skips it) and a *imu.DeviceError when the
// device is gone.
type Source interface {
	Next(ctx context.Context) (imu.Sample, error)
	Close() error
}

// ParseLine splits a comma separated device line and returns the values in
// session order. order[i] is the field index of session channel i and
// fieldCount is how many fields every line must carry.
func ParseLine(line string, order []int, fieldCount int) ([]float64, error) {
	parts := strings.Split(line, ",")
	if len(parts) != fieldCount {
		return nil, &imu.SchemaError{Want: fieldCount, Got: len(parts), Line: line}
	}

	fields := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &imu.SchemaError{
				Want:   fieldCount,
				Got:    len(parts),
				Reason: "field " + strconv.Itoa(i) + " is not a number",
				Line:   line,
			}
		}
		fields[i] = v
	}

	out := make([]float64, len(order))
	for i, idx := range order {
		out[i] = fields[idx]
	}
	return out, nil
}

// clock stamps samples with seconds since the first call to since.
type clock struct {
	start time.Time
}

func (c *clock) since(at time.Time) float64 {
	if c.start.IsZero() {
		c.start = at
	}
	return at.Sub(c.start).Seconds()
}
