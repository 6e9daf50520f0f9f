// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "strings"

// Sample is one multi-channel reading stamped with session time.
type Sample struct {
	Time   float64   `json:"t"` // seconds since session start
	Values []float64 `json:"v"`
}

// Arity returns the number of channel values carried by the sample.
func (s Sample) Arity() int { return len(s.Values) }

// DefaultChannels is the session channel order used when none is configured.
var DefaultChannels = []string{"ax", "ay", "az", "gx", "gy", "gz"}

var displayNames = map[string]string{
	"ax": "X-Accel",
	"ay": "Y-Accel",
	"az": "Z-Accel",
	"gx": "X-Gyro",
	"gy": "Y-Gyro",
	"gz": "Z-Gyro",
	"mx": "X-Mag",
	"my": "Y-Mag",
	"mz": "Z-Mag",
}

// DisplayName returns the human label for a channel key, e.g. "ax" -> "X-Accel".
// Unknown keys are returned unchanged.
func DisplayName(key string) string {
	if n, ok := displayNames[strings.ToLower(key)]; ok {
		return n
	}
	return key
}

// DisplayNames maps DisplayName over keys.
func DisplayNames(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = DisplayName(k)
	}
	return out
}

// FieldOrder computes, for each wanted channel, its index in the device field order.
// Channel order is never inferred from the device: both lists come from configuration.
func FieldOrder(fields, channels []string) ([]int, error) {
	pos := make(map[string]int, len(fields))
	for i, f := range fields {
		pos[strings.ToLower(f)] = i
	}
	idx := make([]int, len(channels))
	for i, c := range channels {
		p, ok := pos[strings.ToLower(c)]
		if !ok {
			return nil, &SchemaError{Want: len(channels), Got: len(fields), Reason: "channel " + c + " not present in device fields"}
		}
		idx[i] = p
	}
	return idx, nil
}

// ChannelKey is the inverse of DisplayName: "X-Accel" -> "ax".
// Keys and unknown names are returned lower-cased.
func ChannelKey(name string) string {
	for k, v := range displayNames {
		if strings.EqualFold(v, name) {
			return k
		}
	}
	return strings.ToLower(name)
}
