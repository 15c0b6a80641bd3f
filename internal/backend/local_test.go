package backend

import (
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// silentSeeker is an empty StreamSeekCloser for handle tests that never
// touch a real decoder.
type silentSeeker struct{}

func (silentSeeker) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (silentSeeker) Err() error                              { return nil }
func (silentSeeker) Len() int                                { return 0 }
func (silentSeeker) Position() int                           { return 0 }
func (silentSeeker) Seek(p int) error                        { return nil }
func (silentSeeker) Close() error                            { return nil }

func newTestHandle() *LocalHandle {
	h := &LocalHandle{
		streamer: silentSeeker{},
		done:     make(chan struct{}),
	}
	h.ctrl = &beep.Ctrl{Streamer: h.streamer}
	h.volume = &effects.Volume{Streamer: h.ctrl, Base: 2, Silent: true}
	return h
}

// The drain callback fires on the audio goroutine while the speaker mutex
// is held. It must return without waiting on h.mu, and SetVolume must not
// wait on the speaker mutex while holding h.mu, or the two wedge each
// other permanently.
func TestLocalHandle_DrainDuringSetVolume(t *testing.T) {
	h := newTestHandle()

	speaker.Lock()

	setDone := make(chan struct{})
	go func() {
		h.SetVolume(0.5)
		close(setDone)
	}()

	// Give SetVolume a moment to reach the speaker mutex.
	time.Sleep(10 * time.Millisecond)

	callbackDone := make(chan struct{})
	go func() {
		h.finished()
		close(callbackDone)
	}()

	select {
	case <-callbackDone:
	case <-time.After(2 * time.Second):
		speaker.Unlock()
		t.Fatal("drain callback blocked while the speaker mutex was held")
	}
	speaker.Unlock()

	select {
	case <-setDone:
	case <-time.After(2 * time.Second):
		t.Fatal("SetVolume never completed")
	}
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle never reported done")
	}
}

func TestLocalHandle_NaturalDrainFiresOnDone(t *testing.T) {
	h := newTestHandle()
	fired := make(chan bool, 1)
	h.onDone = func(natural bool) { fired <- natural }

	h.finished()

	select {
	case natural := <-fired:
		if !natural {
			t.Fatal("drain must report a natural end")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onDone never fired")
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("done channel must be closed after drain")
	}
}

func TestLocalHandle_StopSuppressesDrainCallback(t *testing.T) {
	h := newTestHandle()
	fired := make(chan bool, 1)
	h.onDone = func(natural bool) { fired <- natural }

	h.Stop()
	h.finished()

	select {
	case <-fired:
		t.Fatal("a stopped handle must not fire onDone from a late drain")
	case <-time.After(50 * time.Millisecond):
	}

	// Stop twice stays safe.
	h.Stop()
}
