package backend

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lvasseur/shelftunes/internal/spotify"
	"github.com/lvasseur/shelftunes/internal/track"
)

const defaultPollInterval = 5 * time.Second

// StreamingClient is the slice of the Spotify Connect API the adapter
// drives. Satisfied by *spotify.Client; faked in tests.
type StreamingClient interface {
	SearchTrackURI(query string) (string, error)
	Play(deviceID string, uris []string) error
	Pause() error
	SetVolume(percent int) error
	CurrentlyPlaying() (*spotify.PlaybackState, error)
}

// Streaming plays through a Spotify Connect device. There is no SDK
// callback for track end, so a poll loop watches the player state and
// fires the registered callback when playback stops on its own.
type Streaming struct {
	mu           sync.Mutex
	client       StreamingClient // nil when no credential is configured
	deviceID     string
	level        float64
	playing      bool
	onEnded      func()
	pollStop     chan struct{}
	pollInterval time.Duration
	disposed     bool
}

var _ Adapter = (*Streaming)(nil)

// NewStreaming creates the streaming adapter. A nil client is a valid,
// expected state meaning no credential is present; every load then fails
// with ErrCredentialMissing and the arbiter falls through.
func NewStreaming(client StreamingClient, deviceID string) *Streaming {
	return &Streaming{
		client:       client,
		deviceID:     deviceID,
		level:        1,
		pollInterval: defaultPollInterval,
	}
}

func (s *Streaming) Kind() track.SourceKind {
	return track.SourceStreamingService
}

// Initialize is a no-op for the Connect API; there is no SDK to warm up.
func (s *Streaming) Initialize() error {
	return nil
}

// LoadAndPlay resolves the locator (a spotify: URI, or a bare title that
// goes through search first) and starts it on the configured device at the
// session volume.
func (s *Streaming) LoadAndPlay(locator string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	client := s.client
	deviceID := s.deviceID
	level := s.level
	s.mu.Unlock()

	if client == nil {
		return ErrCredentialMissing
	}

	uri := locator
	if !strings.HasPrefix(locator, "spotify:") {
		resolved, err := client.SearchTrackURI(locator)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", locator, err)
		}
		uri = resolved
	}

	if err := client.Play(deviceID, []string{uri}); err != nil {
		return fmt.Errorf("play %s: %w", uri, err)
	}
	if err := client.SetVolume(int(level * 100)); err != nil {
		slog.Debug("streaming volume set failed", "error", err)
	}

	s.mu.Lock()
	s.playing = true
	s.stopPollLocked()
	stop := make(chan struct{})
	s.pollStop = stop
	s.mu.Unlock()

	go s.pollUntilEnded(client, stop)
	return nil
}

// pollUntilEnded watches the remote player and fires the natural-end
// callback once when playback stops without an explicit Stop.
func (s *Streaming) pollUntilEnded(client StreamingClient, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		state, err := client.CurrentlyPlaying()
		if err != nil {
			slog.Debug("streaming state poll failed", "error", err)
			continue
		}
		if state != nil && state.IsPlaying {
			continue
		}

		s.mu.Lock()
		select {
		case <-stop:
			// Superseded while the state request was in flight; s.playing
			// and s.pollStop belong to a newer load or an explicit Stop.
			s.mu.Unlock()
			return
		default:
		}
		ended := s.playing
		s.playing = false
		fn := s.onEnded
		s.pollStop = nil
		s.mu.Unlock()

		if ended && fn != nil {
			fn()
		}
		return
	}
}

// Stop pauses the remote device and stops the poll loop. Never fires the
// ended callback.
func (s *Streaming) Stop() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	client := s.client
	wasPlaying := s.playing
	s.playing = false
	s.stopPollLocked()
	s.mu.Unlock()

	if client != nil && wasPlaying {
		if err := client.Pause(); err != nil {
			slog.Debug("streaming pause failed", "error", err)
		}
	}
}

// SetVolume stores the level and forwards it while a track is loaded.
func (s *Streaming) SetVolume(level float64) {
	level = clamp(level)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.level = level
	client := s.client
	playing := s.playing
	s.mu.Unlock()

	if client != nil && playing {
		if err := client.SetVolume(int(level * 100)); err != nil {
			slog.Debug("streaming volume set failed", "error", err)
		}
	}
}

func (s *Streaming) OnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.onEnded = fn
}

// Dispose pauses the device and permanently releases the adapter.
func (s *Streaming) Dispose() {
	s.Stop()
	s.mu.Lock()
	s.disposed = true
	s.onEnded = nil
	s.client = nil
	s.mu.Unlock()
}

func (s *Streaming) stopPollLocked() {
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
}
