package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/render"
	"github.com/relabs-tech/imu_scalogram/internal/router"
	"github.com/relabs-tech/imu_scalogram/internal/sink"
	"github.com/relabs-tech/imu_scalogram/internal/wavelet"
)

type result struct {
	s   imu.Sample
	err error
}

// fakeSource replays results, then either blocks until ctx is done or
// reports end of input.
type fakeSource struct {
	results []result
	block   bool
	closed  int
}

func (f *fakeSource) Next(ctx context.Context) (imu.Sample, error) {
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r.s, r.err
	}
	if f.block {
		<-ctx.Done()
		return imu.Sample{}, ctx.Err()
	}
	return imu.Sample{}, &imu.DeviceError{Device: "fake", Err: io.EOF}
}

func (f *fakeSource) Close() error {
	f.closed++
	return nil
}

type fakeSink struct {
	mu         sync.Mutex
	signals    []frame.Signal
	scalograms []frame.Scalogram
	signalErr  error
	closed     int
}

func (f *fakeSink) PublishSignal(_ context.Context, s frame.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, s)
	return f.signalErr
}

func (f *fakeSink) PublishScalogram(_ context.Context, s frame.Scalogram) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scalograms = append(f.scalograms, s)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed++
	return nil
}

func sample(t float64, v ...float64) result {
	return result{s: imu.Sample{Time: t, Values: v}}
}

func newController(t *testing.T, src *fakeSource, snk *fakeSink, opts Options) *Controller {
	t.Helper()
	r, err := router.New(3, 4, router.EveryNSamples(4))
	if err != nil {
		t.Fatal(err)
	}
	e, err := wavelet.NewEngine(wavelet.Options{Kernel: wavelet.Ricker{}, Scales: wavelet.ScaleSet{1, 2}, Width: 4, MinFill: 4})
	if err != nil {
		t.Fatal(err)
	}
	c, err := composite.New(composite.Normalization{Mode: composite.PerFrame})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Channels == nil {
		opts.Channels = []string{"ax", "ay", "az"}
	}
	if opts.Selection == nil {
		opts.Selection = []int{0, 1, 2}
	}
	ctrl, err := New(src, snk, r, e, c, opts)
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func TestRunScenario(t *testing.T) {
	src := &fakeSource{results: []result{
		sample(0.00, 1, 10, 100),
		sample(0.01, 2, 20, 200),
		sample(0.02, 3, 30, 300),
		sample(0.03, 4, 40, 400),
		sample(0.04, 5, 50, 500),
		sample(0.05, 6, 60),
		{err: &imu.SchemaError{Want: 3, Got: 1, Line: "garbage"}},
	}}
	snk := &fakeSink{}
	ctrl := newController(t, src, snk, Options{ID: "test", Render: &render.Options{}})

	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := ctrl.Stats()
	if st.Accepted != 5 || st.Rejected != 2 || st.Triggers != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(snk.signals) != 5 {
		t.Fatalf("expected 5 signal frames, got %d", len(snk.signals))
	}
	last := snk.signals[4]
	if len(last.Times) != 4 || last.Times[0] != 0.01 || last.Values[0][0] != 2 || last.Values[2][3] != 500 {
		t.Errorf("fifth sample should evict the first: times %v values %v", last.Times, last.Values)
	}
	if last.Session != "test" || last.Seq != 5 {
		t.Errorf("unexpected frame id %s/%d", last.Session, last.Seq)
	}

	if len(snk.scalograms) != 1 {
		t.Fatalf("expected 1 scalogram, got %d", len(snk.scalograms))
	}
	sc := snk.scalograms[0]
	for i, s := range sc.Surfaces {
		if r, c := s.Dims(); r != 2 || c != 4 {
			t.Errorf("surface %d shape (%d,%d), want (2,4)", i, r, c)
		}
	}
	if r, c, k := sc.Composite.Shape(); r != 2 || c != 4 || k != 3 {
		t.Errorf("composite shape (%d,%d,%d), want (2,4,3)", r, c, k)
	}
	if sc.Time != 0.03 || sc.Seq != 4 || len(sc.PNG) == 0 {
		t.Errorf("unexpected scalogram t=%v seq=%d png=%d", sc.Time, sc.Seq, len(sc.PNG))
	}
	if src.closed != 1 || snk.closed != 1 {
		t.Errorf("expected source and sink closed once, got %d/%d", src.closed, snk.closed)
	}
}

func TestRunDeviceErrorIsFatal(t *testing.T) {
	boom := errors.New("unplugged")
	src := &fakeSource{results: []result{
		sample(0, 1, 2, 3),
		{err: &imu.DeviceError{Device: "/dev/ttyUSB0", Err: boom}},
		sample(1, 1, 2, 3),
	}}
	snk := &fakeSink{}
	ctrl := newController(t, src, snk, Options{})

	err := ctrl.Run(context.Background())
	if !imu.IsDeviceError(err) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped device error, got %v", err)
	}
	if len(snk.signals) != 1 {
		t.Errorf("expected processing to stop at the failure, got %d signals", len(snk.signals))
	}
	if src.closed != 1 || snk.closed != 1 {
		t.Errorf("expected source and sink closed, got %d/%d", src.closed, snk.closed)
	}
}

func TestRunStopsWhenDisplayCloses(t *testing.T) {
	src := &fakeSource{results: []result{sample(0, 1, 2, 3), sample(1, 1, 2, 3)}, block: true}
	snk := &fakeSink{signalErr: sink.ErrClosed}
	ctrl := newController(t, src, snk, Options{})

	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if len(snk.signals) != 1 || src.closed != 1 || snk.closed != 1 {
		t.Errorf("signals=%d closed=%d/%d", len(snk.signals), src.closed, snk.closed)
	}
}

func TestRunSinkErrorsAreNotFatal(t *testing.T) {
	src := &fakeSource{results: []result{sample(0, 1, 2, 3), sample(1, 1, 2, 3)}}
	snk := &fakeSink{signalErr: errors.New("broker down")}
	ctrl := newController(t, src, snk, Options{})

	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := ctrl.Stats(); st.Accepted != 2 || st.SinkErrors != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRunCancellation(t *testing.T) {
	src := &fakeSource{results: []result{
		{err: imu.ErrUnavailable},
		sample(0, 1, 2, 3),
	}, block: true}
	snk := &fakeSink{}
	ctrl := newController(t, src, snk, Options{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Stats().Accepted == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if ctrl.Stats().Accepted != 1 || src.closed != 1 || snk.closed != 1 {
		t.Errorf("accepted=%d closed=%d/%d", ctrl.Stats().Accepted, src.closed, snk.closed)
	}
}

func TestNewValidatesSelection(t *testing.T) {
	r, _ := router.New(3, 4, router.EveryNSamples(1))
	e, _ := wavelet.NewEngine(wavelet.Options{Scales: wavelet.ScaleSet{1}, Width: 4})
	c, _ := composite.New(composite.Normalization{})
	names := []string{"a", "b", "c"}

	cases := map[string]Options{
		"no selection":   {Channels: names, Selection: []int{}},
		"too many":       {Channels: names, Selection: []int{0, 1, 2, 0}},
		"out of range":   {Channels: names, Selection: []int{3}},
		"name count off": {Channels: names[:2], Selection: []int{0}},
	}
	for name, opts := range cases {
		if _, err := New(&fakeSource{}, &fakeSink{}, r, e, c, opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	e8, _ := wavelet.NewEngine(wavelet.Options{Scales: wavelet.ScaleSet{1}, Width: 8})
	if _, err := New(&fakeSource{}, &fakeSink{}, r, e8, c, Options{Channels: names, Selection: []int{0}}); err == nil {
		t.Error("expected error for engine width mismatch")
	}

	ctrl, err := New(&fakeSource{}, &fakeSink{}, r, e, c, Options{Channels: names, Selection: []int{2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ctrl.ID()) != 36 {
		t.Errorf("expected generated uuid, got %q", ctrl.ID())
	}
}
