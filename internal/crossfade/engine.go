// Package crossfade drives timed volume interpolation between an outgoing
// and an incoming local playback handle.
package crossfade

import (
	"errors"
	"sync"
	"time"
)

// DefaultSteps is the number of volume increments per transition.
const DefaultSteps = 50

// ErrInFlight is returned when a transition is requested while another is
// still running. The new transition is dropped, not queued.
var ErrInFlight = errors.New("crossfade already in flight")

// Fader is the slice of a playback handle the engine needs: independent
// volume control plus release of the outgoing handle when the fade completes.
type Fader interface {
	SetVolume(level float64)
	Stop()
}

// Operation represents one in-flight transition.
type Operation struct {
	done chan struct{}
}

// Done is closed when the transition finishes or is cancelled.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Engine runs at most one transition at a time.
type Engine struct {
	mu       sync.Mutex
	inFlight bool
	cancel   chan struct{}
}

// New creates an idle engine.
func New() *Engine {
	return &Engine{}
}

// InFlight reports whether a transition is currently running.
func (e *Engine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Crossfade fades outgoing down and incoming up over duration in the given
// number of equal steps. At every step the two volumes sum to sessionVolume.
// On completion the outgoing handle is stopped and released. Returns
// ErrInFlight if another transition is still running.
func (e *Engine) Crossfade(outgoing, incoming Fader, sessionVolume float64, duration time.Duration, steps int) (*Operation, error) {
	if incoming == nil {
		return nil, errors.New("crossfade: nil incoming handle")
	}
	if steps <= 0 {
		steps = DefaultSteps
	}
	if duration <= 0 {
		duration = time.Duration(steps) * time.Millisecond
	}

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrInFlight
	}
	e.inFlight = true
	cancel := make(chan struct{})
	e.cancel = cancel
	e.mu.Unlock()

	op := &Operation{done: make(chan struct{})}
	go e.run(op, cancel, outgoing, incoming, sessionVolume, duration, steps)
	return op, nil
}

// FadeIn is the one-sided case used when no track was playing before.
func (e *Engine) FadeIn(incoming Fader, sessionVolume float64, duration time.Duration, steps int) (*Operation, error) {
	return e.Crossfade(nil, incoming, sessionVolume, duration, steps)
}

// Cancel aborts the in-flight transition, if any. Handles are left to the
// caller to stop; StopAll silences every backend anyway.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight && e.cancel != nil {
		close(e.cancel)
		e.cancel = nil
	}
}

func (e *Engine) run(op *Operation, cancel <-chan struct{}, outgoing, incoming Fader, sessionVolume float64, duration time.Duration, steps int) {
	ticker := time.NewTicker(duration / time.Duration(steps))
	defer ticker.Stop()

	cancelled := false
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		if outgoing != nil {
			outgoing.SetVolume((1 - f) * sessionVolume)
		}
		incoming.SetVolume(f * sessionVolume)

		if i == steps {
			break
		}
		select {
		case <-ticker.C:
		case <-cancel:
			cancelled = true
		}
		if cancelled {
			break
		}
	}

	if outgoing != nil && !cancelled {
		outgoing.Stop()
	}

	e.mu.Lock()
	e.inFlight = false
	e.cancel = nil
	e.mu.Unlock()
	close(op.done)
}
