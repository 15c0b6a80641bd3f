package crossfade

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeFader records every volume set and whether it was stopped.
type fakeFader struct {
	mu      sync.Mutex
	volumes []float64
	stopped bool
}

func (f *fakeFader) SetVolume(level float64) {
	f.mu.Lock()
	f.volumes = append(f.volumes, level)
	f.mu.Unlock()
}

func (f *fakeFader) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeFader) snapshot() ([]float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.volumes...), f.stopped
}

func waitDone(t *testing.T, op *Operation) {
	t.Helper()
	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("transition did not complete")
	}
}

func TestCrossfade_Conservation(t *testing.T) {
	const sessionVolume = 0.8
	const steps = 10

	e := New()
	out := &fakeFader{}
	in := &fakeFader{}

	op, err := e.Crossfade(out, in, sessionVolume, 20*time.Millisecond, steps)
	if err != nil {
		t.Fatalf("Crossfade: %v", err)
	}
	waitDone(t, op)

	outVols, stopped := out.snapshot()
	inVols, _ := in.snapshot()

	if len(outVols) != steps+1 || len(inVols) != steps+1 {
		t.Fatalf("volume sets = %d/%d, want %d each", len(outVols), len(inVols), steps+1)
	}
	for i := range outVols {
		sum := outVols[i] + inVols[i]
		if math.Abs(sum-sessionVolume) > 1e-6 {
			t.Errorf("step %d: out+in = %g, want %g", i, sum, sessionVolume)
		}
	}
	if outVols[0] != sessionVolume || inVols[0] != 0 {
		t.Errorf("step 0: out=%g in=%g, want %g/0", outVols[0], inVols[0], sessionVolume)
	}
	if math.Abs(outVols[steps]) > 1e-9 || math.Abs(inVols[steps]-sessionVolume) > 1e-9 {
		t.Errorf("final step: out=%g in=%g, want 0/%g", outVols[steps], inVols[steps], sessionVolume)
	}
	if !stopped {
		t.Error("outgoing handle was not stopped on completion")
	}
	if e.InFlight() {
		t.Error("InFlight should clear after completion")
	}
}

func TestCrossfade_OverlapDropped(t *testing.T) {
	e := New()
	out := &fakeFader{}
	in := &fakeFader{}

	op, err := e.Crossfade(out, in, 1.0, 200*time.Millisecond, 20)
	if err != nil {
		t.Fatalf("Crossfade: %v", err)
	}

	second := &fakeFader{}
	if _, err := e.Crossfade(in, second, 1.0, 10*time.Millisecond, 5); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Crossfade err = %v, want ErrInFlight", err)
	}
	if vols, _ := second.snapshot(); len(vols) != 0 {
		t.Error("dropped transition must not touch its handles")
	}

	waitDone(t, op)
}

func TestCrossfade_Cancel(t *testing.T) {
	e := New()
	out := &fakeFader{}
	in := &fakeFader{}

	op, err := e.Crossfade(out, in, 1.0, 10*time.Second, 100)
	if err != nil {
		t.Fatalf("Crossfade: %v", err)
	}

	e.Cancel()
	waitDone(t, op)

	if e.InFlight() {
		t.Error("InFlight should clear after cancel")
	}
	if _, stopped := out.snapshot(); stopped {
		t.Error("cancel must leave handle teardown to the caller")
	}

	// Cancelling an idle engine is a no-op.
	e.Cancel()

	// The engine accepts a new transition after cancellation.
	op2, err := e.FadeIn(in, 1.0, 10*time.Millisecond, 5)
	if err != nil {
		t.Fatalf("FadeIn after cancel: %v", err)
	}
	waitDone(t, op2)
}

func TestFadeIn(t *testing.T) {
	const sessionVolume = 0.5
	const steps = 8

	e := New()
	in := &fakeFader{}

	op, err := e.FadeIn(in, sessionVolume, 16*time.Millisecond, steps)
	if err != nil {
		t.Fatalf("FadeIn: %v", err)
	}
	waitDone(t, op)

	vols, _ := in.snapshot()
	if len(vols) != steps+1 {
		t.Fatalf("volume sets = %d, want %d", len(vols), steps+1)
	}
	if vols[0] != 0 {
		t.Errorf("fade-in starts at %g, want 0", vols[0])
	}
	if math.Abs(vols[steps]-sessionVolume) > 1e-9 {
		t.Errorf("fade-in ends at %g, want %g", vols[steps], sessionVolume)
	}
	for i := 1; i < len(vols); i++ {
		if vols[i] < vols[i-1] {
			t.Errorf("fade-in not monotonic at step %d: %g < %g", i, vols[i], vols[i-1])
		}
	}
}

func TestCrossfade_NilIncoming(t *testing.T) {
	e := New()
	if _, err := e.Crossfade(&fakeFader{}, nil, 1.0, time.Millisecond, 2); err == nil {
		t.Error("nil incoming handle should error")
	}
	if e.InFlight() {
		t.Error("failed call must not leave the engine in flight")
	}
}
