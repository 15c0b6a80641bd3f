package lastfm

import (
	"log/slog"
	"time"

	"github.com/lvasseur/shelftunes/internal/playback"
	"github.com/lvasseur/shelftunes/internal/track"
)

// minScrobblePlay is how long a track must have sounded before it counts
// as played.
const minScrobblePlay = 30 * time.Second

// Submitter is the slice of the Last.fm client the watcher needs.
type Submitter interface {
	UpdateNowPlaying(ScrobbleTrack) error
	Scrobble(ScrobbleTrack) error
}

// Events are the playback event channels the watcher consumes, taken from
// a playback subscription.
type Events struct {
	TrackChanged <-chan playback.TrackChange
	StateChanged <-chan playback.StateChange
	Done         <-chan struct{}
}

// Watcher listens to playback events and scrobbles finished tracks. Only
// local tracks with tagged artist metadata are submitted; streaming
// backends expose no reliable track identity.
type Watcher struct {
	client  Submitter
	events  Events
	log     *slog.Logger
	minPlay time.Duration
	now     func() time.Time

	pending *ScrobbleTrack
	stopped chan struct{}
}

// NewWatcher creates a watcher over the given event channels.
func NewWatcher(client Submitter, events Events, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		client:  client,
		events:  events,
		log:     log,
		minPlay: minScrobblePlay,
		now:     time.Now,
		stopped: make(chan struct{}),
	}
}

// Start runs the watcher loop in a goroutine. It exits when the event
// subscription closes.
func (w *Watcher) Start() {
	go w.run()
}

// Stopped is closed when the watcher loop has exited.
func (w *Watcher) Stopped() <-chan struct{} {
	return w.stopped
}

func (w *Watcher) run() {
	defer close(w.stopped)

	for {
		select {
		case e := <-w.events.TrackChanged:
			w.flush()
			w.trackStarted(e)
		case e := <-w.events.StateChanged:
			if e.Current == track.SourceNone {
				w.flush()
			}
		case <-w.events.Done:
			w.flush()
			return
		}
	}
}

// trackStarted records the new track and sends the now-playing beacon.
func (w *Watcher) trackStarted(e playback.TrackChange) {
	w.pending = nil
	if e.Info == nil || e.Info.Artist == "" || e.Info.Title == "" {
		return
	}

	t := ScrobbleTrack{
		Artist:    e.Info.Artist,
		Track:     e.Info.Title,
		Album:     e.Info.Album,
		Timestamp: w.now(),
	}
	w.pending = &t

	if err := w.client.UpdateNowPlaying(t); err != nil {
		w.log.Debug("now playing update failed", "track", t.Track, "error", err)
	}
}

// flush scrobbles the pending track when it sounded long enough.
func (w *Watcher) flush() {
	t := w.pending
	w.pending = nil
	if t == nil {
		return
	}
	if w.now().Sub(t.Timestamp) < w.minPlay {
		return
	}

	if err := w.client.Scrobble(*t); err != nil {
		w.log.Warn("scrobble failed", "track", t.Track, "error", err)
		return
	}
	w.log.Debug("scrobbled", "artist", t.Artist, "track", t.Track)
}
