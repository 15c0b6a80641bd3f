package library

import "github.com/lvasseur/shelftunes/internal/track"

// Entry holds the per-entity track list and playback cursor.
// Entries are owned by the Registrar/Sequencer pair; other components
// read tracks and cursor but never mutate them directly.
type Entry struct {
	EntityID       string
	Tracks         []track.Ref
	Cursor         int
	ShuffleEnabled bool
}

// Current returns the track under the cursor, or nil if the entry is empty.
func (e *Entry) Current() *track.Ref {
	if len(e.Tracks) == 0 {
		return nil
	}
	if e.Cursor < 0 || e.Cursor >= len(e.Tracks) {
		return nil
	}
	return &e.Tracks[e.Cursor]
}

// Len returns the number of tracks in the entry.
func (e *Entry) Len() int {
	return len(e.Tracks)
}
