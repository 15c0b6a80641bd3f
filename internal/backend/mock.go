package backend

import (
	"sync"

	"github.com/lvasseur/shelftunes/internal/track"
)

// Mock is a test double implementing the adapter contract. It records calls
// and can simulate natural track ends and injected failures.
type Mock struct {
	mu sync.Mutex

	kind        track.SourceKind
	initialized bool
	disposed    bool
	playing     bool

	initErr error
	loadErr error

	loadCalls   []string
	stopCalls   int
	volumeCalls []float64
	onEnded     func()
}

var _ Adapter = (*Mock)(nil)

// NewMock creates a mock adapter of the given kind.
func NewMock(kind track.SourceKind) *Mock {
	return &Mock{kind: kind}
}

func (m *Mock) Kind() track.SourceKind {
	return m.kind
}

func (m *Mock) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.initialized {
		return nil
	}
	if m.initErr != nil {
		return m.initErr
	}
	m.initialized = true
	return nil
}

func (m *Mock) LoadAndPlay(locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return ErrDisposed
	}
	m.loadCalls = append(m.loadCalls, locator)
	if m.loadErr != nil {
		return m.loadErr
	}
	m.playing = true
	return nil
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.stopCalls++
	m.playing = false
}

func (m *Mock) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.volumeCalls = append(m.volumeCalls, clamp(level))
}

func (m *Mock) OnEnded(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.onEnded = fn
}

func (m *Mock) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
	m.playing = false
	m.onEnded = nil
}

// Test helpers

// SetInitError makes Initialize fail.
func (m *Mock) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initErr = err
}

// SetLoadError makes LoadAndPlay fail.
func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// SimulateEnded fires the registered natural-end callback.
func (m *Mock) SimulateEnded() {
	m.mu.Lock()
	fn := m.onEnded
	m.playing = false
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Playing reports whether the mock is loaded and unstopped.
func (m *Mock) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Disposed reports whether Dispose was called.
func (m *Mock) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// LoadCalls returns every locator passed to LoadAndPlay.
func (m *Mock) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

// StopCalls returns the number of Stop invocations.
func (m *Mock) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// VolumeCalls returns every level passed to SetVolume.
func (m *Mock) VolumeCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.volumeCalls...)
}
