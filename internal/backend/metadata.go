package backend

import (
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
)

// TrackInfo is the embedded-tag metadata of a local soundtrack file,
// used for now-playing surfaces (events, MPRIS, scrobbling).
type TrackInfo struct {
	Path   string
	Title  string
	Artist string
	Album  string
	Year   int
}

// ReadTrackInfo reads tag metadata from a local file. Files without usable
// tags fall back to the bare file name as the title.
func ReadTrackInfo(path string) *TrackInfo {
	info := &TrackInfo{
		Path:  path,
		Title: filepath.Base(path),
	}

	f, err := os.Open(path)
	if err != nil {
		return info
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return info
	}

	if m.Title() != "" {
		info.Title = m.Title()
	}
	info.Artist = m.Artist()
	info.Album = m.Album()
	info.Year = m.Year()
	return info
}
