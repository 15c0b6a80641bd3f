package library

import (
	"testing"

	"github.com/lvasseur/shelftunes/internal/track"
)

func TestRegistrar_Register(t *testing.T) {
	r := NewRegistrar()

	entry := r.Register("game-1", []string{
		"/music/game-1/title theme.mp3",
		"/music/game-1/battle.flac",
	})

	if entry == nil {
		t.Fatal("Register returned nil for non-empty candidates")
	}
	if entry.Len() != 2 {
		t.Errorf("Len() = %d, want 2", entry.Len())
	}
	if entry.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0", entry.Cursor)
	}
	if entry.ShuffleEnabled {
		t.Error("ShuffleEnabled should default to false")
	}
	if entry.Tracks[0].Source != track.SourceLocal {
		t.Errorf("Source = %v, want SourceLocal", entry.Tracks[0].Source)
	}
	if entry.Tracks[0].DisplayName != "title theme" {
		t.Errorf("DisplayName = %q, want %q", entry.Tracks[0].DisplayName, "title theme")
	}
	if entry.Tracks[1].DisplayName != "battle" {
		t.Errorf("DisplayName = %q, want %q", entry.Tracks[1].DisplayName, "battle")
	}
}

func TestRegistrar_Register_EmptyList(t *testing.T) {
	r := NewRegistrar()

	entry := r.Register("game-1", nil)

	if entry != nil {
		t.Error("Register with empty candidates should return nil")
	}
	if r.Lookup("game-1") != nil {
		t.Error("Lookup should miss after empty registration")
	}
}

func TestRegistrar_Register_LastWriteWins(t *testing.T) {
	r := NewRegistrar()
	r.Register("game-1", []string{"/a.mp3", "/b.mp3", "/c.mp3"})

	r.Register("game-1", []string{"/new.mp3"})

	entry := r.Lookup("game-1")
	if entry == nil {
		t.Fatal("Lookup returned nil")
	}
	if entry.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (overwrite, not append)", entry.Len())
	}
	if entry.Tracks[0].Locator != "/new.mp3" {
		t.Errorf("Locator = %q, want /new.mp3", entry.Tracks[0].Locator)
	}
}

func TestRegistrar_Clear(t *testing.T) {
	r := NewRegistrar()
	r.Register("game-1", []string{"/a.mp3"})
	r.Register("game-2", []string{"/b.mp3"})

	r.Clear()

	if r.Lookup("game-1") != nil || r.Lookup("game-2") != nil {
		t.Error("Lookup should miss after Clear")
	}
	if len(r.Entities()) != 0 {
		t.Errorf("Entities() = %v, want empty", r.Entities())
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/music/ost/Main Theme.mp3", "Main Theme"},
		{"battle.flac", "battle"},
		{"/deep/dir/no-extension", "no-extension"},
		{"/dir/dot.in.name.ogg", "dot.in.name"},
	}
	for _, tc := range cases {
		if got := displayName(tc.path); got != tc.want {
			t.Errorf("displayName(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
