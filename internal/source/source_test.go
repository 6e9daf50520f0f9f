package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
)

func TestParseLineReorders(t *testing.T) {
	// device sends gx,gy,gz,ax,ay,az; session wants ax,ay,az,gx,gy,gz
	order, err := imu.FieldOrder([]string{"gx", "gy", "gz", "ax", "ay", "az"}, imu.DefaultChannels)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseLine("1, 2, 3, 4, 5, 6", order, 6)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	want := []float64{4, 5, 6, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestParseLineSchemaErrors(t *testing.T) {
	order := []int{0, 1, 2}
	for _, line := range []string{"1,2", "1,2,3,4", "1,x,3", ""} {
		_, err := ParseLine(line, order, 3)
		if !imu.IsSchemaError(err) {
			t.Errorf("line %q: expected schema error, got %v", line, err)
		}
	}
}

func TestLinesStream(t *testing.T) {
	pr, pw := io.Pipe()
	src, err := NewLines("pipe", pr, []string{"ax", "ay", "az"}, []string{"az", "ax"})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	go func() {
		io.WriteString(pw, "1,2,3\n\n1,2\n4,5,6\n")
		pw.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := src.Next(ctx)
	if err != nil || s.Values[0] != 3 || s.Values[1] != 1 {
		t.Fatalf("first sample = %+v, %v", s, err)
	}
	if s.Time != 0 {
		t.Errorf("first sample should start the clock, got t=%v", s.Time)
	}
	if _, err := src.Next(ctx); !imu.IsSchemaError(err) {
		t.Fatalf("expected schema error for short line, got %v", err)
	}
	s2, err := src.Next(ctx)
	if err != nil || s2.Values[0] != 6 || s2.Values[1] != 4 {
		t.Fatalf("third sample = %+v, %v", s2, err)
	}
	if s2.Time < s.Time {
		t.Errorf("time went backwards: %v < %v", s2.Time, s.Time)
	}
	_, err = src.Next(ctx)
	if !imu.IsDeviceError(err) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected device error wrapping EOF, got %v", err)
	}
}

func TestLinesNextHonoursContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src, err := NewLines("pipe", pr, []string{"ax"}, []string{"ax"})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewLinesUnknownChannel(t *testing.T) {
	pr, _ := io.Pipe()
	if _, err := NewLines("pipe", pr, []string{"ax"}, []string{"gx"}); !imu.IsSchemaError(err) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestMockIsDeterministic(t *testing.T) {
	a, err := NewMock([]string{"ax", "gz"}, 100, false)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewMock([]string{"ax", "gz"}, 100, false)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		sa, err := a.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		sb, _ := b.Next(ctx)
		if sa.Time != float64(i)/100 {
			t.Fatalf("sample %d: expected t=%v, got %v", i, float64(i)/100, sa.Time)
		}
		if sa.Arity() != 2 || sa.Values[0] != sb.Values[0] || sa.Values[1] != sb.Values[1] {
			t.Fatalf("sample %d differs: %v vs %v", i, sa.Values, sb.Values)
		}
	}
}

func TestMockRejectsBadConfig(t *testing.T) {
	if _, err := NewMock([]string{"ax"}, 0, false); err == nil {
		t.Error("expected error for zero rate")
	}
	if _, err := NewMock([]string{"temp"}, 10, false); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestReplay(t *testing.T) {
	p := filepath.Join(t.TempDir(), "imu_data.csv")
	body := "Time,X-Accel,Y-Accel,gz\n0.000,1.00,2.00,3.00\n0.010,oops,2.00,3.00\n0.020,4.00,5.00,6.00\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenReplay(p, []string{"gz", "ax"}, false)
	if err != nil {
		t.Fatalf("OpenReplay: %v", err)
	}
	defer src.Close()
	ctx := context.Background()

	s, err := src.Next(ctx)
	if err != nil || s.Time != 0 || s.Values[0] != 3 || s.Values[1] != 1 {
		t.Fatalf("first = %+v, %v", s, err)
	}
	if _, err := src.Next(ctx); !imu.IsSchemaError(err) {
		t.Fatalf("expected schema error, got %v", err)
	}
	s, err = src.Next(ctx)
	if err != nil || s.Time != 0.02 || s.Values[0] != 6 || s.Values[1] != 4 {
		t.Fatalf("third = %+v, %v", s, err)
	}
	if _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReplayMissingChannel(t *testing.T) {
	p := filepath.Join(t.TempDir(), "imu_data.csv")
	os.WriteFile(p, []byte("Time,ax\n0,1\n"), 0o644)
	if _, err := OpenReplay(p, []string{"gy"}, false); err == nil {
		t.Fatal("expected error for channel missing from header")
	}
}

func TestMQTTHandle(t *testing.T) {
	m := newMQTT("inertial/imu/left", []string{"az", "gx"}, zap.NewNop())
	now := time.Now()
	m.handle([]byte(`{"source":"left","ax":1,"az":3,"gx":7}`), now)
	m.handle([]byte(`not json`), now.Add(10*time.Millisecond))
	m.handle([]byte(`{"az":4,"gx":8}`), now.Add(20*time.Millisecond))

	ctx := context.Background()
	s, err := m.Next(ctx)
	if err != nil || s.Time != 0 || s.Values[0] != 3 || s.Values[1] != 7 {
		t.Fatalf("first = %+v, %v", s, err)
	}
	if _, err := m.Next(ctx); !imu.IsSchemaError(err) {
		t.Fatalf("expected schema error, got %v", err)
	}
	s, err = m.Next(ctx)
	if err != nil || s.Values[0] != 4 {
		t.Fatalf("third = %+v, %v", s, err)
	}
	if d := s.Time - 0.02; d > 1e-9 || d < -1e-9 {
		t.Errorf("expected t=0.02, got %v", s.Time)
	}

	m.connectionLost(errors.New("broker went away"))
	if _, err := m.Next(ctx); !imu.IsDeviceError(err) {
		t.Fatalf("expected device error after connection loss, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}
