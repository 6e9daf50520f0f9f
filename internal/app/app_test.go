package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/config"
	"github.com/relabs-tech/imu_scalogram/internal/recorder"
	"github.com/relabs-tech/imu_scalogram/internal/router"
	"github.com/relabs-tech/imu_scalogram/internal/source"
	"github.com/relabs-tech/imu_scalogram/internal/wavelet"
)

func TestConversions(t *testing.T) {
	cfg := config.Default()
	cfg.TriggerEverySamples = 25
	if tr := Trigger(cfg); tr.Kind != router.EverySamples || tr.Samples != 25 {
		t.Errorf("unexpected trigger %v", tr)
	}
	cfg.Trigger = "seconds"
	cfg.TriggerEverySeconds = 0.25
	if tr := Trigger(cfg); tr.Kind != router.EverySeconds || tr.Interval != 250*time.Millisecond {
		t.Errorf("unexpected trigger %v", tr)
	}

	cfg.Wavelet = "morlet"
	cfg.CWTMethod = "fft"
	eo, err := EngineOptions(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := eo.Kernel.(wavelet.Morlet); !ok || eo.Method != wavelet.MethodFFT || eo.Width != cfg.WindowCapacity {
		t.Errorf("unexpected engine options %+v", eo)
	}

	cfg.Normalization = "fixed"
	cfg.NormalizationMax = 10
	n, err := Normalization(cfg)
	if err != nil || n.Mode != composite.Fixed || n.Max != 10 {
		t.Errorf("unexpected normalization %+v, %v", n, err)
	}

	ro := RenderOptions(cfg, []int{0, 4})
	if len(ro.Labels) != 1 || ro.Width != cfg.ImageWidth {
		t.Errorf("unexpected render options %+v", ro)
	}
}

func TestSessionWithMockSource(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Source = "mock"
	cfg.MockRateHz = 1000
	cfg.WindowCapacity = 32
	cfg.MinFill = 16
	cfg.Scales = wavelet.ScaleSet{1, 2, 4}
	cfg.TriggerEverySamples = 16
	cfg.Sinks = []string{"csv", "png"}
	cfg.CSVOutputDir = dir
	cfg.PNGOutputPath = filepath.Join(dir, "scalogram.png")

	ctrl, err := NewSession(cfg, uuid.NewString(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := ctrl.Stats()
	if st.Accepted < 16 || st.Triggers < 1 || st.Rejected != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if _, err := os.Stat(cfg.PNGOutputPath); err != nil {
		t.Errorf("expected png output: %v", err)
	}
	data, _ := filepath.Glob(filepath.Join(dir, "imu_data_*.csv"))
	stats, _ := filepath.Glob(filepath.Join(dir, "imu_stats_*.txt"))
	if len(data) != 1 || len(stats) != 1 {
		t.Errorf("expected one recording and one report, got %v %v", data, stats)
	}
}

func TestRecordFromReplay(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	body := "Time,X-Accel,Y-Accel\n0.000,1.00,2.00\nbad,1,2\n0.010,3.00,4.00\n"
	if err := os.WriteFile(in, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := source.OpenReplay(in, []string{"ax", "ay"}, false)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	rec, err := recorder.New(filepath.Join(dir, "out"), []string{"ax", "ay"}, time.Now(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := Record(context.Background(), src, rec, zap.NewNop()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if st := rec.Stats(); st.Samples != 2 || st.Signals[1].Max != 4 {
		t.Errorf("unexpected stats %+v", st)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsolePrinters(t *testing.T) {
	var b strings.Builder
	if err := printSignal(&b, []byte(`{"type":"signal","seq":7,"t":1.5,"values":{"ay":-2,"ax":1.25}}`)); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); !strings.Contains(got, "X-Accel=     1.25") || strings.Index(got, "X-Accel") > strings.Index(got, "Y-Accel") {
		t.Errorf("unexpected signal line %q", got)
	}

	b.Reset()
	if err := printScalogram(&b, []byte(`{"seq":8,"t":2,"kernel":"ricker","channels":["ax","ay"],"rows":30,"cols":250,"took_ms":3.2}`)); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); !strings.Contains(got, "X-Accel/Y-Accel 30x250 ricker 3.2ms") {
		t.Errorf("unexpected scalogram line %q", got)
	}

	if err := printSignal(&b, []byte("{")); err == nil {
		t.Error("expected unmarshal error")
	}
}
