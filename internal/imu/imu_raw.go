// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// IMURaw represents a single raw IMU+mag record as published on MQTT.
type IMURaw struct {
	Source string `json:"source"` // "left", "right", "mock"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer
	My int16 `json:"my"`
	Mz int16 `json:"mz"`
}

// Field returns the raw value of the named axis ("ax" .. "mz").
func (r IMURaw) Field(name string) (float64, error) {
	switch name {
	case "ax":
		return float64(r.Ax), nil
	case "ay":
		return float64(r.Ay), nil
	case "az":
		return float64(r.Az), nil
	case "gx":
		return float64(r.Gx), nil
	case "gy":
		return float64(r.Gy), nil
	case "gz":
		return float64(r.Gz), nil
	case "mx":
		return float64(r.Mx), nil
	case "my":
		return float64(r.My), nil
	case "mz":
		return float64(r.Mz), nil
	default:
		return 0, fmt.Errorf("unknown IMU field %q", name)
	}
}

// Values extracts the named axes in the given order.
func (r IMURaw) Values(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := r.Field(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
