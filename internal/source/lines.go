// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

type lineResult struct {
	line string
	at   time.Time
	err  error
}

// Lines reads newline terminated CSV records from a stream, for example a
// serial port. A reader goroutine owns the stream so Next can return as soon
// as ctx is done.
type Lines struct {
	name       string
	rc         io.ReadCloser
	order      []int
	fieldCount int
	clk        clock

	results   chan lineResult
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewLines starts reading rc. fields is the device field order of each line,
// channels the session order to emit.
func NewLines(name string, rc io.ReadCloser, fields, channels []string) (*Lines, error) {
	order, err := imu.FieldOrder(fields, channels)
	if err != nil {
		return nil, err
	}
	l := &Lines{
		name:       name,
		rc:         rc,
		order:      order,
		fieldCount: len(fields),
		results:    make(chan lineResult, 64),
		done:       make(chan struct{}),
	}
	go l.read()
	return l, nil
}

func (l *Lines) read() {
	defer close(l.results)
	reader := bufio.NewReader(l.rc)
	for {
		line, err := reader.ReadString('\n')
		now := time.Now()
		if line = strings.TrimSpace(line); line != "" {
			select {
			case l.results <- lineResult{line: line, at: now}:
			case <-l.done:
				return
			}
		}
		if err != nil {
			select {
			case l.results <- lineResult{err: err}:
			case <-l.done:
			}
			return
		}
	}
}

// Next returns the next well-formed line as a sample.
func (l *Lines) Next(ctx context.Context) (imu.Sample, error) {
	select {
	case <-ctx.Done():
		return imu.Sample{}, ctx.Err()
	case <-l.done:
		return imu.Sample{}, &imu.DeviceError{Device: l.name, Err: errors.New("source closed")}
	case r, ok := <-l.results:
		if !ok {
			return imu.Sample{}, &imu.DeviceError{Device: l.name, Err: io.ErrClosedPipe}
		}
		if r.err != nil {
			return imu.Sample{}, &imu.DeviceError{Device: l.name, Err: r.err}
		}
		values, err := ParseLine(r.line, l.order, l.fieldCount)
		if err != nil {
			return imu.Sample{}, err
		}
		return imu.Sample{Time: l.clk.since(r.at), Values: values}, nil
	}
}

// Close stops the reader and closes the underlying stream.
func (l *Lines) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = l.rc.Close()
	})
	return l.closeErr
}
