package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

// Replay reads a recording ("Time,<channels...>") back as a sample stream.
// End of file is reported as a *imu.DeviceError wrapping io.EOF.
type Replay struct {
	path     string
	f        *os.File
	r        *csv.Reader
	columns  []int // column of each session channel
	realtime bool
	start    time.Time
}

// OpenReplay opens a recording. Header columns may use channel keys ("ax")
// or display names ("X-Accel"). With realtime set, Next waits until each
// record's timestamp has elapsed since the first call.
func OpenReplay(path string, channels []string, realtime bool) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &imu.DeviceError{Device: path, Err: err}
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay source: read header: %w", err)
	}
	if len(header) == 0 || !strings.EqualFold(strings.TrimSpace(header[0]), "time") {
		f.Close()
		return nil, fmt.Errorf("replay source: first column must be Time, got %q", header)
	}

	keys := make([]string, len(header)-1)
	for i, h := range header[1:] {
		keys[i] = imu.ChannelKey(strings.TrimSpace(h))
	}
	order, err := imu.FieldOrder(keys, channels)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay source: %w", err)
	}
	for i := range order {
		order[i]++ // skip the Time column
	}

	return &Replay{path: path, f: f, r: r, columns: order, realtime: realtime}, nil
}

func (p *Replay) Next(ctx context.Context) (imu.Sample, error) {
	if err := ctx.Err(); err != nil {
		return imu.Sample{}, err
	}

	rec, err := p.r.Read()
	if err != nil {
		if pe, ok := err.(*csv.ParseError); ok {
			return imu.Sample{}, &imu.SchemaError{Want: len(p.columns), Reason: pe.Error()}
		}
		return imu.Sample{}, &imu.DeviceError{Device: p.path, Err: err}
	}

	s, err := p.parse(rec)
	if err != nil {
		return imu.Sample{}, err
	}

	if p.realtime {
		if p.start.IsZero() {
			p.start = time.Now().Add(-time.Duration(s.Time * float64(time.Second)))
		}
		due := p.start.Add(time.Duration(s.Time * float64(time.Second)))
		if wait := time.Until(due); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return imu.Sample{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return s, nil
}

func (p *Replay) parse(rec []string) (imu.Sample, error) {
	line := strings.Join(rec, ",")
	need := 1
	for _, c := range p.columns {
		if c+1 > need {
			need = c + 1
		}
	}
	if len(rec) < need {
		return imu.Sample{}, &imu.SchemaError{Want: len(p.columns), Got: len(rec) - 1, Line: line}
	}

	t, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	if err != nil {
		return imu.Sample{}, &imu.SchemaError{Want: len(p.columns), Got: len(rec) - 1, Reason: "bad time", Line: line}
	}
	values := make([]float64, len(p.columns))
	for i, c := range p.columns {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
		if err != nil {
			return imu.Sample{}, &imu.SchemaError{Want: len(p.columns), Got: len(rec) - 1, Reason: "column " + strconv.Itoa(c) + " is not a number", Line: line}
		}
		values[i] = v
	}
	return imu.Sample{Time: t, Values: values}, nil
}

func (p *Replay) Close() error {
	return p.f.Close()
}
