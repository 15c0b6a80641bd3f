package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/lvasseur/shelftunes/internal/track"
)

const fetchTimeout = 2 * time.Minute

// videoIDPattern matches a bare 11-character platform video id.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTube plays video-platform soundtracks by resolving the locator with
// yt-dlp into a cached local audio file and sounding it through the shared
// speaker mixer. Locators may be a video id, a full URL, or a bare title
// that goes through platform search first.
type YouTube struct {
	mu          sync.Mutex
	cacheDir    string
	level       float64
	current     *LocalHandle
	onEnded     func()
	initialized bool
	disposed    bool

	// fetch resolves a target into a playable local file; injectable so
	// tests do not shell out to yt-dlp.
	fetch func(ctx context.Context, target string) (string, error)
}

var _ Adapter = (*YouTube)(nil)

// NewYouTube creates the video-platform adapter with the given audio cache
// directory.
func NewYouTube(cacheDir string) *YouTube {
	y := &YouTube{
		cacheDir: cacheDir,
		level:    1,
	}
	y.fetch = y.fetchAudio
	return y
}

func (y *YouTube) Kind() track.SourceKind {
	return track.SourceVideoPlatform
}

// Initialize ensures the yt-dlp binary and the cache directory are
// available. Idempotent; a failure marks the backend unavailable and the
// arbiter falls through.
func (y *YouTube) Initialize() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.disposed || y.initialized {
		return nil
	}

	if err := os.MkdirAll(y.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}

	y.initialized = true
	return nil
}

// LoadAndPlay fetches the locator's audio and starts it at the session
// volume. Transitions into this backend are hard switches, so the previous
// handle is stopped first.
func (y *YouTube) LoadAndPlay(locator string) error {
	y.mu.Lock()
	if y.disposed {
		y.mu.Unlock()
		return ErrDisposed
	}
	if !y.initialized {
		y.mu.Unlock()
		if err := y.Initialize(); err != nil {
			return err
		}
		y.mu.Lock()
	}
	fetch := y.fetch
	level := y.level
	y.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	path, err := fetch(ctx, resolveTarget(locator))
	if err != nil {
		return fmt.Errorf("fetch %q: %w", locator, err)
	}

	y.Stop()

	h, err := openHandle(path)
	if err != nil {
		return err
	}

	y.mu.Lock()
	y.current = h
	y.mu.Unlock()

	h.mu.Lock()
	h.onDone = func(natural bool) {
		if natural {
			y.handleEnded(h)
		}
	}
	h.mu.Unlock()

	h.SetVolume(level)
	return nil
}

func (y *YouTube) handleEnded(h *LocalHandle) {
	y.mu.Lock()
	fn := y.onEnded
	current := y.current == h
	if current {
		y.current = nil
	}
	y.mu.Unlock()

	if current && fn != nil {
		fn()
	}
}

func (y *YouTube) Stop() {
	y.mu.Lock()
	h := y.current
	y.current = nil
	disposed := y.disposed
	y.mu.Unlock()

	if disposed || h == nil {
		return
	}
	h.Stop()
}

func (y *YouTube) SetVolume(level float64) {
	level = clamp(level)

	y.mu.Lock()
	if y.disposed {
		y.mu.Unlock()
		return
	}
	y.level = level
	h := y.current
	y.mu.Unlock()

	if h != nil {
		h.SetVolume(level)
	}
}

func (y *YouTube) OnEnded(fn func()) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.disposed {
		return
	}
	y.onEnded = fn
}

func (y *YouTube) Dispose() {
	y.Stop()
	y.mu.Lock()
	y.disposed = true
	y.onEnded = nil
	y.mu.Unlock()
}

// resolveTarget turns a locator into something yt-dlp accepts: a watch URL
// for a bare video id, the locator itself for URLs, and a single-result
// platform search for bare display names.
func resolveTarget(locator string) string {
	switch {
	case videoIDPattern.MatchString(locator):
		return "https://www.youtube.com/watch?v=" + locator
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return locator
	default:
		return "ytsearch1:" + locator
	}
}

// fetchAudio downloads the target's audio track into the cache and returns
// the local file path.
func (y *YouTube) fetchAudio(ctx context.Context, target string) (string, error) {
	dl := ytdlp.New().
		NoPlaylist().
		Format("bestaudio").
		ExtractAudio().
		AudioFormat("mp3").
		Output(filepath.Join(y.cacheDir, "%(id)s.%(ext)s"))

	result, err := dl.Run(ctx, target)
	if err != nil {
		return "", err
	}

	info, err := result.GetExtractedInfo()
	if err != nil {
		return "", err
	}
	if len(info) == 0 || info[0].Filename == nil {
		return "", fmt.Errorf("no downloaded file for %s", target)
	}

	path := *info[0].Filename
	// Post-processing rewrites the extension after extraction.
	if mp3Path := strings.TrimSuffix(path, filepath.Ext(path)) + ".mp3"; mp3Path != path {
		if _, err := os.Stat(mp3Path); err == nil {
			return mp3Path, nil
		}
	}
	return path, nil
}
