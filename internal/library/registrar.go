// Package library builds and sequences per-entity soundtrack listings.
package library

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/lvasseur/shelftunes/internal/track"
)

// Registrar maps entity ids to their registered track entries.
type Registrar struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistrar creates an empty registrar.
func NewRegistrar() *Registrar {
	return &Registrar{
		entries: make(map[string]*Entry),
	}
}

// Register builds an entry for entityID from the candidate file locators.
// Re-registering an entity replaces its previous entry (last write wins).
// An empty candidate list registers nothing; lookups for that entity miss
// and the arbiter falls through to streaming backends.
func (r *Registrar) Register(entityID string, candidateFiles []string) *Entry {
	if len(candidateFiles) == 0 {
		return nil
	}

	tracks := make([]track.Ref, 0, len(candidateFiles))
	for _, path := range candidateFiles {
		tracks = append(tracks, track.Ref{
			Source:      track.SourceLocal,
			Locator:     path,
			DisplayName: displayName(path),
		})
	}

	entry := &Entry{
		EntityID: entityID,
		Tracks:   tracks,
		Cursor:   0,
	}

	r.mu.Lock()
	r.entries[entityID] = entry
	r.mu.Unlock()

	return entry
}

// Lookup returns the entry for entityID, or nil if none is registered.
func (r *Registrar) Lookup(entityID string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[entityID]
}

// Entities returns the ids of all registered entities.
func (r *Registrar) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Clear releases every entry.
func (r *Registrar) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()
}

// displayName strips the directory and extension from a locator.
func displayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
