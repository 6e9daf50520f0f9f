package recorder

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

var stamp = time.Date(2024, 11, 14, 9, 7, 10, 0, time.UTC)

func TestRecorderCSVAndStats(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, []string{"gx", "ax"}, stamp, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(r.DataPath(), "imu_data_20241114_090710.csv") {
		t.Errorf("unexpected data path %s", r.DataPath())
	}

	samples := []imu.Sample{
		{Time: 0, Values: []float64{1, 10}},
		{Time: 0.5, Values: []float64{2, 20}},
		{Time: 1.0004, Values: []float64{3.456, 30}},
	}
	for _, s := range samples {
		if err := r.Record(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Record(imu.Sample{Time: 2, Values: []float64{1}}); !imu.IsSchemaError(err) {
		t.Errorf("expected schema error for short sample, got %v", err)
	}

	st := r.Stats()
	if st.Samples != 3 {
		t.Errorf("expected 3 samples, got %d", st.Samples)
	}
	if want := (1 + 2 + 3.456) / 3; math.Abs(st.Signals[0].Mean-want) > 1e-12 {
		t.Errorf("expected mean %v, got %v", want, st.Signals[0].Mean)
	}
	if st.Signals[1].Min != 10 || st.Signals[1].Max != 30 {
		t.Errorf("unexpected min/max %v/%v", st.Signals[1].Min, st.Signals[1].Max)
	}
	// population std of 10, 20, 30
	if want := math.Sqrt(200.0 / 3); math.Abs(st.Signals[1].StdDev-want) > 1e-9 {
		t.Errorf("expected std %v, got %v", want, st.Signals[1].StdDev)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(samples[0]); err == nil {
		t.Error("expected error recording after close")
	}

	data, err := os.ReadFile(r.DataPath())
	if err != nil {
		t.Fatal(err)
	}
	want := "Time,X-Gyro,X-Accel\n0.000,1.00,10.00\n0.500,2.00,20.00\n1.000,3.46,30.00\n"
	if string(data) != want {
		t.Errorf("csv mismatch:\n%s\nwant:\n%s", data, want)
	}

	report, err := os.ReadFile(r.StatsPath())
	if err != nil {
		t.Fatal(err)
	}
	text := string(report)
	for _, s := range []string{"Total samples: 3", "Total duration: 1.00 seconds", "GYROSCOPE DATA", "ACCELEROMETER DATA", "X-Accel:\n  Mean: 20.00", "  Max: 30.00"} {
		if !strings.Contains(text, s) {
			t.Errorf("report missing %q:\n%s", s, text)
		}
	}
	if strings.Index(text, "GYROSCOPE") > strings.Index(text, "ACCELEROMETER") {
		t.Error("gyroscope section should come first")
	}
}

func TestRecorderAsSink(t *testing.T) {
	r, err := New(t.TempDir(), []string{"ax"}, stamp, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		sig := frame.Signal{Latest: imu.Sample{Time: float64(i), Values: []float64{float64(i)}}}
		if err := r.PublishSignal(ctx, sig); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.PublishScalogram(ctx, frame.Scalogram{}); err != nil {
		t.Fatal(err)
	}
	if st := r.Stats(); st.Samples != 3 || st.Rate != 1.5 {
		t.Errorf("unexpected stats %+v", st)
	}
	r.Close()
}

func TestRecorderEmptyWritesNoReport(t *testing.T) {
	r, err := New(t.TempDir(), []string{"ax"}, stamp, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(r.StatsPath()); !os.IsNotExist(err) {
		t.Error("expected no stats file for an empty recording")
	}
}
