//go:build linux

// Package mpris exposes the playback session on the desktop media-key bus.
package mpris

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/lvasseur/shelftunes/internal/playback"
	"github.com/lvasseur/shelftunes/internal/track"
)

// Adapter connects the playback arbiter to MPRIS over D-Bus.
type Adapter struct {
	arbiter *playback.Arbiter
	server  *server.Server
	sub     *playback.Subscription
	done    chan struct{}
}

// New creates and starts a new MPRIS adapter.
func New(arbiter *playback.Arbiter) (*Adapter, error) {
	a := &Adapter{
		arbiter: arbiter,
		done:    make(chan struct{}),
	}

	player := &playerAdapter{arbiter: arbiter}
	a.server = server.NewServer("shelftunes", &rootAdapter{}, player)
	a.sub = arbiter.Subscribe()

	// Mirror track changes into the player adapter for Metadata queries.
	go func() {
		for {
			select {
			case e := <-a.sub.TrackChanged:
				player.setCurrent(e)
			case <-a.sub.Done:
				return
			case <-a.done:
				return
			}
		}
	}()

	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // no window to raise
}

func (r *rootAdapter) Quit() error {
	return nil // lifecycle is managed by the daemon
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "Shelftunes", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	arbiter *playback.Arbiter

	mu      sync.Mutex
	current *playback.TrackChange
}

func (p *playerAdapter) setCurrent(e playback.TrackChange) {
	p.mu.Lock()
	p.current = &e
	p.mu.Unlock()
}

func (p *playerAdapter) Next() error {
	p.arbiter.SkipNext()
	return nil
}

func (p *playerAdapter) Previous() error {
	p.arbiter.SkipPrevious()
	return nil
}

func (p *playerAdapter) Pause() error {
	// No pause in the session model, stop is the nearest thing.
	p.arbiter.StopAll()
	return nil
}

func (p *playerAdapter) PlayPause() error {
	s := p.arbiter.Session()
	if s.ActiveBackend != track.SourceNone {
		p.arbiter.StopAll()
		return nil
	}
	return p.Play()
}

func (p *playerAdapter) Stop() error {
	p.arbiter.StopAll()
	return nil
}

func (p *playerAdapter) Play() error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current != nil {
		p.arbiter.PlayMusicFor(current.EntityID)
	}
	return nil
}

func (p *playerAdapter) Seek(_ types.Microseconds) error {
	return nil // not supported
}

func (p *playerAdapter) SetPosition(_ string, _ types.Microseconds) error {
	return nil // not supported
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	if p.arbiter.Session().ActiveBackend != track.SourceNone {
		return types.PlaybackStatusPlaying, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath("/org/shelftunes/track/current"),
		Title:   current.Ref.DisplayName,
	}
	if info := current.Info; info != nil {
		if info.Title != "" {
			meta.Title = info.Title
		}
		if info.Artist != "" {
			meta.Artist = []string{info.Artist}
		}
		meta.Album = info.Album

		if artPath := FindAlbumArt(info.Path); artPath != "" {
			meta.ArtUrl = "file://" + artPath
		}
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.arbiter.Session().Volume, nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	p.arbiter.SetVolume(v)
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return 0, nil // position is not tracked
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.arbiter.Session().ActiveBackend == track.SourceLocal, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.arbiter.Session().ActiveBackend == track.SourceLocal, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}
