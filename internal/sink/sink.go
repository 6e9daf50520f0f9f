// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink delivers signal and scalogram frames to displays, brokers and
// files.
package sink

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/render"
)

// ErrClosed is returned by a sink whose display was closed by the user.
// The session treats it as a request to stop.
var ErrClosed = errors.New("sink closed")

// Sink consumes pipeline frames. Implementations must not retain the
// frames' slices past the call unless they copy them.
type Sink interface {
	PublishSignal(ctx context.Context, s frame.Signal) error
	PublishScalogram(ctx context.Context, s frame.Scalogram) error
	Close() error
}

// Multi fans every frame out to all sinks. Errors are combined; one sink
// failing does not skip the others.
type Multi []Sink

func (m Multi) PublishSignal(ctx context.Context, s frame.Signal) error {
	var err error
	for _, sk := range m {
		err = multierr.Append(err, sk.PublishSignal(ctx, s))
	}
	return err
}

func (m Multi) PublishScalogram(ctx context.Context, s frame.Scalogram) error {
	var err error
	for _, sk := range m {
		err = multierr.Append(err, sk.PublishScalogram(ctx, s))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, sk := range m {
		err = multierr.Append(err, sk.Close())
	}
	return err
}

// pngOf returns the frame's rendered PNG, rendering it when the session did not.
func pngOf(s frame.Scalogram, opts render.Options) ([]byte, error) {
	if s.PNG != nil {
		return s.PNG, nil
	}
	if s.Composite == nil {
		return nil, errors.New("scalogram has no composite")
	}
	return render.PNG(s.Composite, opts)
}
