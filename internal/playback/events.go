package playback

import (
	"github.com/lvasseur/shelftunes/internal/backend"
	"github.com/lvasseur/shelftunes/internal/track"
)

// ErrorKind classifies playback failures handled inside the arbiter
// boundary. None of these propagate to public-API callers; the observable
// artifact is a log entry plus an ErrorEvent for subscribers.
type ErrorKind int

const (
	// ErrorCredentialMissing: a streaming backend was selected without a
	// credential. A fallback trigger, not a failure.
	ErrorCredentialMissing ErrorKind = iota
	// ErrorBackendInit: the backend never reached ready state; it is
	// treated as unavailable for the rest of the session.
	ErrorBackendInit
	// ErrorLoadFailed: invalid locator, missing file, or a network error
	// during resolve; the arbiter tries the next fallback backend.
	ErrorLoadFailed
	// ErrorCrossfadeSkipped: a transition was requested while one was in
	// flight; the new transition is dropped.
	ErrorCrossfadeSkipped
)

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorCredentialMissing:
		return "CredentialMissing"
	case ErrorBackendInit:
		return "BackendInitFailed"
	case ErrorLoadFailed:
		return "LoadFailed"
	case ErrorCrossfadeSkipped:
		return "CrossfadeSkipped"
	default:
		return "Unknown"
	}
}

// TrackChange is emitted when playback starts on a different track.
type TrackChange struct {
	EntityID string
	Ref      track.Ref
	Info     *backend.TrackInfo // tag metadata, Local tracks only
}

// StateChange is emitted when the active backend changes.
type StateChange struct {
	Previous track.SourceKind
	Current  track.SourceKind
}

// ErrorEvent is emitted when a playback error is handled internally.
type ErrorEvent struct {
	Kind    ErrorKind
	Backend track.SourceKind
	Locator string
	Err     error
}
