package playback

import "github.com/lvasseur/shelftunes/internal/track"

// Session is the process-wide playback state. It is owned and written
// exclusively by the Arbiter; callers and tests observe it by copy.
// Invariant: at most one backend is ever active, and the previously active
// backend is stopped before another becomes active.
type Session struct {
	ActiveBackend     track.SourceKind
	ActiveEntityID    string
	Volume            float64
	CrossfadeInFlight bool
}
