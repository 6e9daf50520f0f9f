// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder writes accepted samples to CSV and summarizes them in a
// statistics report when the recording ends.
package recorder

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

const progressEvery = 100

// SignalStats summarizes one channel over the whole recording.
type SignalStats struct {
	Name   string
	Mean   float64
	StdDev float64 // population standard deviation
	Min    float64
	Max    float64
}

// Stats summarizes a recording.
type Stats struct {
	Duration float64 // seconds, time of the last sample
	Samples  int
	Rate     float64 // samples per second
	Signals  []SignalStats
}

// Recorder streams samples to imu_data_<ts>.csv and writes
// imu_stats_<ts>.txt on Close. It also works as a session sink.
type Recorder struct {
	mu sync.Mutex

	dataPath  string
	statsPath string
	file      *os.File
	buf       *bufio.Writer
	csv       *csv.Writer

	channels []string
	names    []string
	values   [][]float64
	last     float64
	count    int
	closed   bool

	started time.Time
	logger  *zap.Logger
}

// New creates the data file in dir with the header row. stamp names the files.
func New(dir string, channels []string, stamp time.Time, logger *zap.Logger) (*Recorder, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("recorder: no channels")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create dir: %w", err)
	}

	ts := stamp.Format("20060102_150405")
	dataPath := filepath.Join(dir, "imu_data_"+ts+".csv")

	f, err := os.Create(dataPath)
	if err != nil {
		return nil, fmt.Errorf("recorder: csv create %s: %w", dataPath, err)
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	cw := csv.NewWriter(bw)

	names := imu.DisplayNames(channels)
	if err := cw.Write(append([]string{"Time"}, names...)); err != nil {
		f.Close()
		return nil, fmt.Errorf("recorder: csv write header: %w", err)
	}

	logger.Info("recording started", zap.String("file", dataPath), zap.Strings("signals", names))

	return &Recorder{
		dataPath:  dataPath,
		statsPath: filepath.Join(dir, "imu_stats_"+ts+".txt"),
		file:      f,
		buf:       bw,
		csv:       cw,
		channels:  channels,
		names:     names,
		values:    make([][]float64, len(channels)),
		started:   time.Now(),
		logger:    logger,
	}, nil
}

// DataPath returns the CSV file path.
func (r *Recorder) DataPath() string { return r.dataPath }

// StatsPath returns the statistics report path.
func (r *Recorder) StatsPath() string { return r.statsPath }

// Record appends one sample.
func (r *Recorder) Record(s imu.Sample) error {
	if s.Arity() != len(r.channels) {
		return &imu.SchemaError{Want: len(r.channels), Got: s.Arity()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder: closed")
	}

	row := make([]string, 0, len(s.Values)+1)
	row = append(row, strconv.FormatFloat(s.Time, 'f', 3, 64))
	for i, v := range s.Values {
		row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
		r.values[i] = append(r.values[i], v)
	}
	if err := r.csv.Write(row); err != nil {
		return fmt.Errorf("recorder: csv write: %w", err)
	}
	r.last = s.Time
	r.count++

	if r.count%progressEvery == 0 {
		r.csv.Flush()
		r.logger.Info("recording progress",
			zap.Float64("elapsed_s", time.Since(r.started).Seconds()),
			zap.Int("samples", r.count))
	}
	return nil
}

// Stats computes the summary of everything recorded so far.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats()
}

func (r *Recorder) stats() Stats {
	st := Stats{Duration: r.last, Samples: r.count}
	if r.last > 0 {
		st.Rate = float64(r.count) / r.last
	}
	if r.count == 0 {
		return st
	}
	for i, name := range r.names {
		mean, std := stat.PopMeanStdDev(r.values[i], nil)
		st.Signals = append(st.Signals, SignalStats{
			Name:   name,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(r.values[i]),
			Max:    floats.Max(r.values[i]),
		})
	}
	return st
}

// Close flushes the CSV and writes the statistics report. A recording with
// no samples leaves no report.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	r.csv.Flush()
	err := r.csv.Error()
	if ferr := r.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	st := r.stats()
	r.logger.Info("recording complete",
		zap.String("file", r.dataPath),
		zap.Int("samples", st.Samples),
		zap.Float64("duration_s", st.Duration),
		zap.Float64("rate_hz", st.Rate))

	if st.Samples == 0 {
		r.logger.Warn("no data recorded, skipping statistics")
		return nil
	}
	if err := os.WriteFile(r.statsPath, []byte(FormatStats(st, r.channels)), 0o644); err != nil {
		return fmt.Errorf("recorder: write stats: %w", err)
	}
	r.logger.Info("statistics saved", zap.String("file", r.statsPath))
	return nil
}

// FormatStats renders the plain-text report. Channels are grouped by sensor
// using their key prefix (a, g, m).
func FormatStats(st Stats, channels []string) string {
	var b strings.Builder
	b.WriteString("IMU Data Statistics\n")
	b.WriteString("==================\n\n")

	b.WriteString("Timing Information:\n")
	fmt.Fprintf(&b, "Total duration: %.2f seconds\n", st.Duration)
	fmt.Fprintf(&b, "Total samples: %d\n", st.Samples)
	fmt.Fprintf(&b, "Average sampling rate: %.2f Hz\n\n", st.Rate)

	b.WriteString("Signal Statistics:\n")
	groups := []struct{ prefix, title string }{
		{"g", "GYROSCOPE DATA"},
		{"a", "ACCELEROMETER DATA"},
		{"m", "MAGNETOMETER DATA"},
		{"", "OTHER DATA"},
	}
	done := make([]bool, len(st.Signals))
	for _, g := range groups {
		header := false
		for i, s := range st.Signals {
			if done[i] || i >= len(channels) {
				continue
			}
			if g.prefix != "" && !strings.HasPrefix(strings.ToLower(channels[i]), g.prefix) {
				continue
			}
			if !header {
				fmt.Fprintf(&b, "\n%s:\n", g.title)
				header = true
			}
			done[i] = true
			fmt.Fprintf(&b, "\n%s:\n", s.Name)
			fmt.Fprintf(&b, "  Mean: %.2f\n", s.Mean)
			fmt.Fprintf(&b, "  Std Dev: %.2f\n", s.StdDev)
			fmt.Fprintf(&b, "  Min: %.2f\n", s.Min)
			fmt.Fprintf(&b, "  Max: %.2f\n", s.Max)
		}
	}
	return b.String()
}

// PublishSignal records the newest sample of the frame.
func (r *Recorder) PublishSignal(_ context.Context, s frame.Signal) error {
	return r.Record(s.Latest)
}

func (r *Recorder) PublishScalogram(context.Context, frame.Scalogram) error { return nil }
