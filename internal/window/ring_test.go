package window

import (
	"reflect"
	"testing"
)

func TestRingKeepsLastCapacityValues(t *testing.T) {
	for _, capacity := range []int{1, 2, 4, 7} {
		r := NewRing(capacity)
		var pushed []float64
		for i := 0; i < 3*capacity+1; i++ {
			v := float64(i*i) - 3
			r.Push(v)
			pushed = append(pushed, v)

			want := pushed
			if len(want) > capacity {
				want = want[len(want)-capacity:]
			}
			got := r.Snapshot()
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("cap=%d after %d pushes: got %v, want %v", capacity, i+1, got, want)
			}
			if r.Len() != len(want) {
				t.Fatalf("cap=%d: Len()=%d, want %d", capacity, r.Len(), len(want))
			}
		}
		if !r.Full() {
			t.Errorf("cap=%d: expected ring to be full", capacity)
		}
	}
}

func TestRingSnapshotDoesNotAlias(t *testing.T) {
	r := NewRing(3)
	r.Push(1)
	r.Push(2)
	snap := r.Snapshot()
	r.Push(3)
	r.Push(4)
	if want := []float64{1, 2}; !reflect.DeepEqual(snap, want) {
		t.Fatalf("snapshot changed by later pushes: got %v, want %v", snap, want)
	}
	snap[0] = 99
	if got, want := r.Snapshot(), []float64{2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ring contents modified through snapshot: got %v, want %v", got, want)
	}
}

func TestRingLastAndReset(t *testing.T) {
	r := NewRing(2)
	if _, ok := r.Last(); ok {
		t.Fatal("expected no last value on empty ring")
	}
	r.Push(5)
	r.Push(6)
	r.Push(7)
	if v, ok := r.Last(); !ok || v != 7 {
		t.Fatalf("Last() = %v,%v, want 7,true", v, ok)
	}
	r.Reset()
	if r.Len() != 0 || len(r.Snapshot()) != 0 {
		t.Fatalf("expected empty ring after Reset, got %v", r.Snapshot())
	}
	if r.Cap() != 2 {
		t.Fatalf("Cap() = %d, want 2", r.Cap())
	}
}

func TestNewRingClampsCapacity(t *testing.T) {
	r := NewRing(0)
	r.Push(1)
	r.Push(2)
	if got := r.Snapshot(); !reflect.DeepEqual(got, []float64{2}) {
		t.Fatalf("got %v, want [2]", got)
	}
}
