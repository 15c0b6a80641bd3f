package lastfm

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lvasseur/shelftunes/internal/backend"
	"github.com/lvasseur/shelftunes/internal/playback"
	"github.com/lvasseur/shelftunes/internal/track"
)

type fakeSubmitter struct {
	mu         sync.Mutex
	nowPlaying []ScrobbleTrack
	scrobbled  []ScrobbleTrack
}

func (f *fakeSubmitter) UpdateNowPlaying(t ScrobbleTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowPlaying = append(f.nowPlaying, t)
	return nil
}

func (f *fakeSubmitter) Scrobble(t ScrobbleTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrobbled = append(f.scrobbled, t)
	return nil
}

func (f *fakeSubmitter) counts() (nowPlaying, scrobbled int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nowPlaying), len(f.scrobbled)
}

type watcherRig struct {
	submitter *fakeSubmitter
	watcher   *Watcher
	trackCh   chan playback.TrackChange
	stateCh   chan playback.StateChange
	doneCh    chan struct{}
}

func newWatcherRig() *watcherRig {
	r := &watcherRig{
		submitter: &fakeSubmitter{},
		trackCh:   make(chan playback.TrackChange),
		stateCh:   make(chan playback.StateChange),
		doneCh:    make(chan struct{}),
	}
	r.watcher = NewWatcher(r.submitter, Events{
		TrackChanged: r.trackCh,
		StateChanged: r.stateCh,
		Done:         r.doneCh,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.watcher.minPlay = 0 // every started track counts as played
	return r
}

func (r *watcherRig) finish(t *testing.T) {
	t.Helper()
	close(r.doneCh)
	select {
	case <-r.watcher.Stopped():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func localTrack(artist, title, album string) playback.TrackChange {
	return playback.TrackChange{
		EntityID: "game-1",
		Ref:      track.Ref{Source: track.SourceLocal, Locator: "/m/a.mp3"},
		Info:     &backend.TrackInfo{Artist: artist, Title: title, Album: album},
	}
}

func TestWatcher_NowPlayingAndScrobbleOnTrackChange(t *testing.T) {
	r := newWatcherRig()
	r.watcher.Start()

	r.trackCh <- localTrack("Composer", "Main Theme", "OST")
	r.trackCh <- localTrack("Composer", "Battle", "OST")
	r.finish(t)

	nowPlaying, scrobbled := r.submitter.counts()
	if nowPlaying != 2 {
		t.Fatalf("now playing updates = %d, want 2", nowPlaying)
	}
	// First track scrobbled on the change, second on shutdown.
	if scrobbled != 2 {
		t.Fatalf("scrobbles = %d, want 2", scrobbled)
	}
	if r.submitter.scrobbled[0].Track != "Main Theme" {
		t.Fatalf("first scrobble = %+v, want Main Theme", r.submitter.scrobbled[0])
	}
}

func TestWatcher_UntaggedTrackSkipped(t *testing.T) {
	r := newWatcherRig()
	r.watcher.Start()

	r.trackCh <- playback.TrackChange{
		EntityID: "game-1",
		Ref:      track.Ref{Source: track.SourceLocal, Locator: "/m/untagged.mp3"},
		Info:     &backend.TrackInfo{Title: "untagged.mp3"}, // no artist
	}
	r.finish(t)

	nowPlaying, scrobbled := r.submitter.counts()
	if nowPlaying != 0 || scrobbled != 0 {
		t.Fatalf("untagged track submitted: nowPlaying=%d scrobbled=%d", nowPlaying, scrobbled)
	}
}

func TestWatcher_StreamingTrackSkipped(t *testing.T) {
	r := newWatcherRig()
	r.watcher.Start()

	r.trackCh <- playback.TrackChange{
		EntityID: "game-1",
		Ref:      track.Ref{Source: track.SourceStreamingService, Locator: "Game Theme"},
	}
	r.finish(t)

	nowPlaying, scrobbled := r.submitter.counts()
	if nowPlaying != 0 || scrobbled != 0 {
		t.Fatalf("streaming track submitted: nowPlaying=%d scrobbled=%d", nowPlaying, scrobbled)
	}
}

func TestWatcher_SilenceFlushesPending(t *testing.T) {
	r := newWatcherRig()
	r.watcher.Start()

	r.trackCh <- localTrack("Composer", "Main Theme", "")
	r.stateCh <- playback.StateChange{
		Previous: track.SourceLocal,
		Current:  track.SourceNone,
	}
	r.finish(t)

	_, scrobbled := r.submitter.counts()
	if scrobbled != 1 {
		t.Fatalf("scrobbles = %d, want pending track flushed on silence", scrobbled)
	}
}

func TestWatcher_ShortPlayNotScrobbled(t *testing.T) {
	r := newWatcherRig()
	r.watcher.minPlay = time.Hour
	r.watcher.Start()

	r.trackCh <- localTrack("Composer", "Main Theme", "")
	r.finish(t)

	_, scrobbled := r.submitter.counts()
	if scrobbled != 0 {
		t.Fatalf("scrobbles = %d, want 0 for a short play", scrobbled)
	}
}
