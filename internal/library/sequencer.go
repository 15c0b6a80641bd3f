package library

import (
	"math/rand/v2"

	"github.com/lvasseur/shelftunes/internal/track"
)

// Direction selects which way the sequencer advances.
type Direction int

const (
	Next Direction = iota
	Previous
)

// Sequencer computes the next track index for an entry under the
// sequential or shuffle policy.
type Sequencer struct {
	intn func(n int) int // injectable for deterministic tests
}

// NewSequencer creates a sequencer backed by the default random source.
func NewSequencer() *Sequencer {
	return &Sequencer{intn: rand.IntN}
}

// Advance moves the entry cursor one step in the given direction and
// returns the track at the new cursor. Sequential advance wraps in both
// directions; shuffle draws a uniform random index (Next and Previous
// behave identically under shuffle). Returns nil for an empty entry.
func (s *Sequencer) Advance(entry *Entry, dir Direction) *track.Ref {
	n := len(entry.Tracks)
	if n == 0 {
		return nil
	}

	if entry.ShuffleEnabled {
		entry.Cursor = s.intn(n)
		return &entry.Tracks[entry.Cursor]
	}

	step := 1
	if dir == Previous {
		step = -1
	}
	entry.Cursor = (entry.Cursor + step + n) % n
	return &entry.Tracks[entry.Cursor]
}

// ToggleShuffle flips the entry's shuffle flag without resetting the cursor.
func (s *Sequencer) ToggleShuffle(entry *Entry) bool {
	entry.ShuffleEnabled = !entry.ShuffleEnabled
	return entry.ShuffleEnabled
}
