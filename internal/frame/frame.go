// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package frame defines what the pipeline hands to display sinks.
package frame

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// Signal is the time-domain frame emitted after every accepted sample:
// the latest contents of the time buffer and of every channel buffer.
type Signal struct {
	Session  string
	Seq      uint64 // accepted sample count
	Channels []string
	Latest   imu.Sample
	Times    []float64
	Values   [][]float64 // one slice per channel, aligned with Times
}

// Scalogram is the image frame emitted on each engine trigger.
type Scalogram struct {
	Session   string
	Seq       uint64
	Time      float64 // session time of the newest sample in the window
	Kernel    string
	Scales    []float64
	Channels  []string     // composited channels, plane order
	Surfaces  []*mat.Dense // raw magnitudes, one per composited channel
	Composite *composite.Frame
	Took      time.Duration // engine + compositor time
	PNG       []byte        // rendered composite, nil when rendering is off
}

// SignalMessage is the JSON form of the newest sample of a Signal.
type SignalMessage struct {
	Type    string             `json:"type"`
	Session string             `json:"session"`
	Seq     uint64             `json:"seq"`
	Time    float64            `json:"t"`
	Values  map[string]float64 `json:"values"`
	Window  int                `json:"window"`
}

// Message returns the compact per-sample JSON form.
func (s Signal) Message() SignalMessage {
	vals := make(map[string]float64, len(s.Channels))
	for i, name := range s.Channels {
		if i < len(s.Latest.Values) {
			vals[name] = s.Latest.Values[i]
		}
	}
	return SignalMessage{
		Type:    "signal",
		Session: s.Session,
		Seq:     s.Seq,
		Time:    s.Latest.Time,
		Values:  vals,
		Window:  len(s.Times),
	}
}

// WindowMessage is the JSON form of a whole Signal window.
type WindowMessage struct {
	Type     string               `json:"type"`
	Session  string               `json:"session"`
	Seq      uint64               `json:"seq"`
	Times    []float64            `json:"times"`
	Channels map[string][]float64 `json:"channels"`
}

// Window returns the full-window JSON form.
func (s Signal) Window() WindowMessage {
	ch := make(map[string][]float64, len(s.Channels))
	for i, name := range s.Channels {
		if i < len(s.Values) {
			ch[name] = s.Values[i]
		}
	}
	return WindowMessage{Type: "window", Session: s.Session, Seq: s.Seq, Times: s.Times, Channels: ch}
}

// ScalogramMessage describes a Scalogram without its pixel data.
type ScalogramMessage struct {
	Type       string    `json:"type"`
	Session    string    `json:"session"`
	Seq        uint64    `json:"seq"`
	Time       float64   `json:"t"`
	Kernel     string    `json:"kernel"`
	Scales     []float64 `json:"scales"`
	Channels   []string  `json:"channels"`
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	Degenerate []bool    `json:"degenerate,omitempty"`
	TookMs     float64   `json:"took_ms"`
	PNG        []byte    `json:"png,omitempty"` // base64 in JSON
}

// Message returns the metadata form; callers attach the rendered PNG.
func (s Scalogram) Message() ScalogramMessage {
	m := ScalogramMessage{
		Type:     "scalogram",
		Session:  s.Session,
		Seq:      s.Seq,
		Time:     s.Time,
		Kernel:   s.Kernel,
		Scales:   s.Scales,
		Channels: s.Channels,
		TookMs:   float64(s.Took) / float64(time.Millisecond),
	}
	if s.Composite != nil {
		m.Rows, m.Cols, _ = s.Composite.Shape()
		m.Degenerate = s.Composite.Degenerate
	}
	return m
}
