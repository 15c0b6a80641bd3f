package backend

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/lvasseur/shelftunes/internal/track"
)

// mixRate is the fixed speaker rate; decoded streams at other rates are
// resampled so two handles can sound through one mixer during a crossfade.
const mixRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(mixRate, mixRate.N(time.Second/10))
	})
	return speakerErr
}

// LocalHandle is one playback invocation on the speaker mixer. Each
// LoadAndPlay creates a fresh handle; stopping a handle frees its decoder,
// file and mixer slot.
type LocalHandle struct {
	mu       sync.Mutex
	file     *os.File
	streamer beep.StreamSeekCloser
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	stopped  bool
	done     chan struct{}
	onDone   func(natural bool)
}

var _ Handle = (*LocalHandle)(nil)

// SetVolume sets the handle level, clamped to [0,1]. No-op once stopped.
// The speaker mutex is never taken while h.mu is held: the speaker callback
// runs under the speaker mutex and holding both here would deadlock against
// it. The volume node pointer is immutable after openHandle.
func (h *LocalHandle) SetVolume(level float64) {
	level = clamp(level)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.level = level
	h.mu.Unlock()

	speaker.Lock()
	h.volume.Silent = level <= 0
	h.volume.Volume = levelToVolume(level)
	speaker.Unlock()
}

// Level returns the last level set on the handle.
func (h *LocalHandle) Level() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// Stop releases the handle: the mixer slot is drained by nilling the Ctrl
// streamer, then the decoder and file are closed. Safe to call twice.
// An explicit stop never counts as a natural end.
func (h *LocalHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()

	h.streamer.Close()
	h.file.Close()

	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Done is closed when the handle finishes, naturally or by Stop.
func (h *LocalHandle) Done() <-chan struct{} {
	return h.done
}

// finished runs inside the speaker callback with the speaker mutex held;
// it must not block or take h.mu there, so release happens on its own
// goroutine.
func (h *LocalHandle) finished() {
	go h.drained()
}

// drained releases a naturally completed handle and fires onDone.
func (h *LocalHandle) drained() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	onDone := h.onDone
	h.mu.Unlock()

	h.streamer.Close()
	h.file.Close()

	select {
	case <-h.done:
	default:
		close(h.done)
	}

	if onDone != nil {
		onDone(true)
	}
}

// openHandle decodes path and starts it on the mixer at volume zero.
// Shared by the Local and VideoPlatform adapters.
func openHandle(path string) (*LocalHandle, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	h := &LocalHandle{
		file:     f,
		streamer: streamer,
		done:     make(chan struct{}),
	}

	h.ctrl = &beep.Ctrl{Streamer: streamer}
	var out beep.Streamer = h.ctrl
	if format.SampleRate != mixRate {
		out = beep.Resample(4, format.SampleRate, mixRate, out)
	}
	h.volume = &effects.Volume{
		Streamer: out,
		Base:     2,
		Volume:   levelToVolume(0),
		Silent:   true,
	}

	speaker.Play(beep.Seq(h.volume, beep.Callback(h.finished)))
	return h, nil
}

// levelToVolume converts a 0-1 level to beep's base-2 volume scale:
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10 (essentially silent).
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

// Local plays soundtrack files discovered on disk.
type Local struct {
	mu          sync.Mutex
	current     *LocalHandle
	onEnded     func()
	initialized bool
	disposed    bool
}

var _ Adapter = (*Local)(nil)

// NewLocal creates the local-file adapter.
func NewLocal() *Local {
	return &Local{}
}

// Kind returns the backend kind.
func (l *Local) Kind() track.SourceKind {
	return track.SourceLocal
}

// Initialize brings up the speaker. Idempotent.
func (l *Local) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return nil
	}
	if l.initialized {
		return nil
	}
	if err := initSpeaker(); err != nil {
		return err
	}
	l.initialized = true
	return nil
}

// LoadAndPlay starts the locator at volume zero. The arbiter fades the new
// handle in through the crossfade engine, so the uniform-contract path
// deliberately starts silent.
func (l *Local) LoadAndPlay(locator string) error {
	_, err := l.Load(locator)
	return err
}

// Load starts the locator at volume zero and returns the handle for the
// crossfade engine. The previous handle is left sounding; the engine owns
// fading it out and releasing it.
func (l *Local) Load(locator string) (Handle, error) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return nil, ErrDisposed
	}
	l.mu.Unlock()

	h, err := openHandle(locator)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = h
	l.mu.Unlock()

	h.mu.Lock()
	h.onDone = func(natural bool) {
		if natural {
			l.handleEnded(h)
		}
	}
	h.mu.Unlock()

	return h, nil
}

// handleEnded fires the registered callback when the finished handle is
// still the adapter's current one (a superseded crossfade casualty is not
// a track end).
func (l *Local) handleEnded(h *LocalHandle) {
	l.mu.Lock()
	fn := l.onEnded
	current := l.current == h
	if current {
		l.current = nil
	}
	l.mu.Unlock()

	if current && fn != nil {
		fn()
	}
}

// Stop releases the current handle, if any.
func (l *Local) Stop() {
	l.mu.Lock()
	h := l.current
	l.current = nil
	disposed := l.disposed
	l.mu.Unlock()

	if disposed || h == nil {
		return
	}
	h.Stop()
}

// SetVolume forwards to the current handle.
func (l *Local) SetVolume(level float64) {
	l.mu.Lock()
	h := l.current
	disposed := l.disposed
	l.mu.Unlock()

	if disposed || h == nil {
		return
	}
	h.SetVolume(level)
}

// OnEnded registers the natural-end callback, replacing any previous one.
func (l *Local) OnEnded(fn func()) {
	l.mu.Lock()
	l.onEnded = fn
	l.mu.Unlock()
}

// Dispose permanently releases the adapter.
func (l *Local) Dispose() {
	l.Stop()
	l.mu.Lock()
	l.disposed = true
	l.onEnded = nil
	l.mu.Unlock()
}
