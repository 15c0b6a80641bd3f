// Package backend wraps the three playback technologies behind one uniform
// adapter contract so the arbiter can drive them identically.
package backend

import (
	"errors"

	"github.com/lvasseur/shelftunes/internal/track"
)

// ErrCredentialMissing marks a streaming backend selected without a
// credential. It is a fallback trigger for the arbiter, not a failure.
var ErrCredentialMissing = errors.New("credential missing")

// ErrDisposed is returned by operations on a permanently released adapter.
var ErrDisposed = errors.New("backend disposed")

// Adapter is the uniform contract implemented by every backend.
//
// Initialize is idempotent: calling it while already initialized is a no-op
// success. LoadAndPlay starts playback of a locator; the Local adapter
// starts at volume zero so the crossfade engine can fade it in, the other
// backends start at the session volume. Stop always succeeds, even when
// nothing is playing, and releases the underlying handle. OnEnded registers
// a single callback fired exactly once when a track finishes naturally;
// re-registering replaces the previous callback, and an explicit Stop never
// fires it. After Dispose every operation is a no-op.
type Adapter interface {
	Kind() track.SourceKind
	Initialize() error
	LoadAndPlay(locator string) error
	Stop()
	SetVolume(level float64)
	OnEnded(fn func())
	Dispose()
}

// Handle is one independent local playback invocation. The crossfade engine
// drives two of these at once with separate volumes; only the Local backend
// exposes handles, which is why transitions across backend kinds are hard
// stops instead of crossfades.
type Handle interface {
	SetVolume(level float64)
	Stop()
	Done() <-chan struct{}
}

// clamp bounds a volume level to [0,1].
func clamp(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
