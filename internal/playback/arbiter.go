// Package playback coordinates the per-entity soundtrack session: which
// backend sounds, which track it plays, and how transitions between tracks
// and backends happen.
package playback

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lvasseur/shelftunes/internal/backend"
	"github.com/lvasseur/shelftunes/internal/crossfade"
	"github.com/lvasseur/shelftunes/internal/library"
	"github.com/lvasseur/shelftunes/internal/settings"
	"github.com/lvasseur/shelftunes/internal/track"
)

// SettingsProvider supplies the persisted playback settings and per-backend
// credentials. *settings.Store satisfies it.
type SettingsProvider interface {
	Settings() (settings.Settings, error)
	Credential(provider track.SourceKind) (*settings.Credential, error)
}

// HandleLoader is implemented by backends that expose per-track handles.
// Only handle-based backends can crossfade; everything else gets hard
// stop-then-start transitions.
type HandleLoader interface {
	Load(locator string) (backend.Handle, error)
}

// fallbackOrder is the fixed order streaming backends are tried when an
// entity has no local tracks.
var fallbackOrder = []track.SourceKind{
	track.SourceVideoPlatform,
	track.SourceStreamingService,
}

// Config wires an Arbiter. Local is required; the streaming adapters and
// the entity resolver may be nil.
type Config struct {
	Local            backend.Adapter
	VideoPlatform    backend.Adapter
	StreamingService backend.Adapter
	Settings         SettingsProvider
	Logger           *slog.Logger

	// ResolveEntityName maps an entity id to a human search query for the
	// streaming fallbacks. Nil falls back to the id itself.
	ResolveEntityName func(entityID string) string

	// CurrentEntity reports the entity the user is browsing right now,
	// consulted when a track ends naturally. Nil, or a false report, keeps
	// the entity that was already playing.
	CurrentEntity func() (string, bool)
}

// Arbiter enforces the single-backend invariant: at most one backend sounds
// at any time, and the active one is stopped before another starts. All
// playback failures are absorbed here; public methods never return errors,
// they log and emit ErrorEvents instead.
type Arbiter struct {
	mu sync.Mutex

	registrar *library.Registrar
	sequencer *library.Sequencer
	engine    *crossfade.Engine

	adapters      map[track.SourceKind]backend.Adapter
	settings      SettingsProvider
	resolveName   func(entityID string) string
	currentEntity func() (string, bool)
	log           *slog.Logger

	session     Session
	current     backend.Handle // incoming/steady local handle
	fading      backend.Handle // outgoing handle while a crossfade runs
	unavailable map[track.SourceKind]bool
	destroyed   bool

	subMu sync.RWMutex
	subs  []*Subscription
}

// New creates an arbiter over the given adapters. The initial session
// volume comes from the persisted settings.
func New(cfg Config) *Arbiter {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	a := &Arbiter{
		registrar:     library.NewRegistrar(),
		sequencer:     library.NewSequencer(),
		engine:        crossfade.New(),
		adapters:      make(map[track.SourceKind]backend.Adapter),
		settings:      cfg.Settings,
		resolveName:   cfg.ResolveEntityName,
		currentEntity: cfg.CurrentEntity,
		log:           log,
		unavailable:   make(map[track.SourceKind]bool),
	}

	if cfg.Local != nil {
		a.adapters[track.SourceLocal] = cfg.Local
	}
	if cfg.VideoPlatform != nil {
		a.adapters[track.SourceVideoPlatform] = cfg.VideoPlatform
	}
	if cfg.StreamingService != nil {
		a.adapters[track.SourceStreamingService] = cfg.StreamingService
	}

	sett := a.loadSettings()
	a.session = Session{
		ActiveBackend: track.SourceNone,
		Volume:        sett.Volume,
	}

	for kind, ad := range a.adapters {
		kind := kind
		ad.OnEnded(func() { a.handleTrackEnded(kind) })
	}

	return a
}

// RegisterEntity builds the track entry for entityID from candidate file
// locators. An empty list leaves the entity unregistered so playback falls
// through to the streaming backends.
func (a *Arbiter) RegisterEntity(entityID string, candidateFiles []string) {
	entry := a.registrar.Register(entityID, candidateFiles)
	if entry == nil {
		a.log.Debug("no local tracks for entity", "entity", entityID)
		return
	}
	a.log.Info("registered entity soundtrack",
		"entity", entityID, "tracks", entry.Len())
}

// PlayMusicFor starts playback for entityID: local tracks first, then the
// enabled streaming backends in fallback order. When everything fails the
// session stays silent.
func (a *Arbiter) PlayMusicFor(entityID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}

	sett := a.loadSettings()
	if !sett.Enabled {
		a.log.Debug("playback disabled, ignoring play request", "entity", entityID)
		return
	}
	a.playLocked(entityID, sett)
}

// SkipNext advances the active entity's sequencer and plays the resulting
// track. No-op when nothing is active or the entity has no local tracks.
func (a *Arbiter) SkipNext() {
	a.skip(library.Next)
}

// SkipPrevious steps the sequencer backwards. Under shuffle it behaves
// like SkipNext.
func (a *Arbiter) SkipPrevious() {
	a.skip(library.Previous)
}

func (a *Arbiter) skip(dir library.Direction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed || a.session.ActiveEntityID == "" {
		return
	}

	entry := a.registrar.Lookup(a.session.ActiveEntityID)
	if entry == nil || entry.Len() == 0 {
		return
	}

	// The cursor tracks the audible track; a skip during a transition is
	// dropped before the cursor moves.
	if a.engine.InFlight() {
		a.emitError(ErrorCrossfadeSkipped, track.SourceLocal, "", crossfade.ErrInFlight)
		return
	}

	ref := a.sequencer.Advance(entry, dir)
	if ref == nil {
		return
	}
	a.playLocalLocked(a.session.ActiveEntityID, *ref, a.loadSettings())
}

// SwitchBackend hard-stops the active backend and starts the requested one
// for the current entity. SourceNone just silences playback.
func (a *Arbiter) SwitchBackend(kind track.SourceKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}

	entityID := a.session.ActiveEntityID
	a.stopActiveLocked()
	a.setActiveLocked(track.SourceNone, "")

	if kind == track.SourceNone || entityID == "" {
		return
	}

	sett := a.loadSettings()
	switch kind {
	case track.SourceLocal:
		entry := a.registrar.Lookup(entityID)
		if entry == nil || entry.Current() == nil {
			a.log.Info("no local tracks to switch to", "entity", entityID)
			return
		}
		a.playLocalLocked(entityID, *entry.Current(), sett)
	default:
		a.startStreamingLocked(entityID, sett, kind)
	}
}

// SetVolume sets the session volume and forwards it to the active backend.
// Levels outside [0,1] are clamped.
func (a *Arbiter) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}

	a.session.Volume = level
	if a.engine.InFlight() {
		// The running transition targets the old volume; the next one
		// picks the new level up.
		return
	}
	if h := a.current; h != nil {
		h.SetVolume(level)
		return
	}
	if ad := a.adapters[a.session.ActiveBackend]; ad != nil {
		ad.SetVolume(level)
	}
}

// ToggleShuffle flips shuffle for entityID and reports the new state.
func (a *Arbiter) ToggleShuffle(entityID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.registrar.Lookup(entityID)
	if entry == nil {
		return false
	}
	on := a.sequencer.ToggleShuffle(entry)
	a.log.Debug("shuffle toggled", "entity", entityID, "enabled", on)
	return on
}

// StopAll silences everything: the in-flight crossfade is cancelled, both
// local handles are released and every adapter is stopped.
func (a *Arbiter) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}

	a.engine.Cancel()
	a.releaseHandlesLocked()
	for _, ad := range a.adapters {
		ad.Stop()
	}
	a.setActiveLocked(track.SourceNone, "")
}

// DestroyAll permanently releases every backend and clears the library.
// Idempotent; the arbiter is unusable afterwards.
func (a *Arbiter) DestroyAll() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true

	a.engine.Cancel()
	a.releaseHandlesLocked()
	for _, ad := range a.adapters {
		ad.Stop()
		ad.Dispose()
	}
	a.registrar.Clear()
	a.session = Session{ActiveBackend: track.SourceNone, Volume: a.session.Volume}
	a.mu.Unlock()

	a.subMu.Lock()
	for _, s := range a.subs {
		s.close()
	}
	a.subs = nil
	a.subMu.Unlock()

	a.log.Info("playback destroyed")
}

// Session returns a copy of the current session state.
func (a *Arbiter) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.session
	s.CrossfadeInFlight = a.engine.InFlight()
	return s
}

// Subscribe returns a new event subscription. Closed by DestroyAll.
func (a *Arbiter) Subscribe() *Subscription {
	s := newSubscription()
	a.subMu.Lock()
	a.subs = append(a.subs, s)
	a.subMu.Unlock()
	return s
}

// playLocked resolves what should sound for entityID: the entry's current
// local track when one is registered, the streaming fallbacks otherwise.
func (a *Arbiter) playLocked(entityID string, sett settings.Settings) {
	entry := a.registrar.Lookup(entityID)
	if entry != nil {
		if ref := entry.Current(); ref != nil {
			a.playLocalLocked(entityID, *ref, sett)
			return
		}
	}
	a.startStreamingLocked(entityID, sett, fallbackOrder...)
}

// playLocalLocked starts ref on the local backend. Local-to-local
// transitions crossfade; anything else is a hard stop first.
func (a *Arbiter) playLocalLocked(entityID string, ref track.Ref, sett settings.Settings) {
	ad := a.adapters[track.SourceLocal]
	if ad == nil || a.unavailable[track.SourceLocal] {
		a.startStreamingLocked(entityID, sett, fallbackOrder...)
		return
	}

	if err := ad.Initialize(); err != nil {
		a.unavailable[track.SourceLocal] = true
		a.emitError(ErrorBackendInit, track.SourceLocal, ref.Locator, err)
		a.startStreamingLocked(entityID, sett, fallbackOrder...)
		return
	}

	if a.engine.InFlight() {
		// Drop-new policy: the running transition finishes undisturbed.
		a.emitError(ErrorCrossfadeSkipped, track.SourceLocal, ref.Locator, crossfade.ErrInFlight)
		return
	}

	loader, ok := ad.(HandleLoader)
	if !ok {
		// No handle access means no crossfade; hard switch.
		a.stopActiveLocked()
		ad.SetVolume(a.session.Volume)
		if err := ad.LoadAndPlay(ref.Locator); err != nil {
			a.emitError(ErrorLoadFailed, track.SourceLocal, ref.Locator, err)
			a.startStreamingLocked(entityID, sett, fallbackOrder...)
			return
		}
		a.setActiveLocked(track.SourceLocal, entityID)
		a.emitTrack(entityID, ref)
		return
	}

	// Stop any non-local backend before the local handle starts.
	if prev := a.session.ActiveBackend; prev != track.SourceNone && prev != track.SourceLocal {
		if prevAd := a.adapters[prev]; prevAd != nil {
			prevAd.Stop()
		}
	}

	incoming, err := loader.Load(ref.Locator)
	if err != nil {
		a.emitError(ErrorLoadFailed, track.SourceLocal, ref.Locator, err)
		a.startStreamingLocked(entityID, sett, fallbackOrder...)
		return
	}

	outgoing := a.current
	duration := time.Duration(sett.CrossfadeDurationMs) * time.Millisecond

	var op *crossfade.Operation
	if a.session.ActiveBackend == track.SourceLocal && outgoing != nil {
		op, err = a.engine.Crossfade(outgoing, incoming, a.session.Volume, duration, crossfade.DefaultSteps)
	} else {
		op, err = a.engine.FadeIn(incoming, a.session.Volume, duration, crossfade.DefaultSteps)
	}
	if err != nil {
		if errors.Is(err, crossfade.ErrInFlight) {
			incoming.Stop()
			a.emitError(ErrorCrossfadeSkipped, track.SourceLocal, ref.Locator, err)
			return
		}
		incoming.Stop()
		a.emitError(ErrorLoadFailed, track.SourceLocal, ref.Locator, err)
		return
	}

	a.current = incoming
	if outgoing != nil && outgoing != incoming {
		a.fading = outgoing
		go a.reapFaded(op, outgoing)
	}

	a.setActiveLocked(track.SourceLocal, entityID)
	a.emitTrack(entityID, ref)
}

// reapFaded clears the fading reference once the transition releases the
// outgoing handle.
func (a *Arbiter) reapFaded(op *crossfade.Operation, outgoing backend.Handle) {
	<-op.Done()
	a.mu.Lock()
	if a.fading == outgoing {
		a.fading = nil
	}
	a.mu.Unlock()
}

// startStreamingLocked tries the given streaming backends in order. Each
// candidate needs its settings flag on, an available adapter and a stored
// credential; the first one that loads wins. When none succeed the session
// goes silent, which is not an error.
func (a *Arbiter) startStreamingLocked(entityID string, sett settings.Settings, kinds ...track.SourceKind) {
	locator := a.entityName(entityID)

	for _, kind := range kinds {
		if !streamingEnabled(sett, kind) {
			continue
		}
		ad := a.adapters[kind]
		if ad == nil || a.unavailable[kind] {
			continue
		}

		cred, err := a.settings.Credential(kind)
		if err != nil {
			a.emitError(ErrorCredentialMissing, kind, locator, err)
			continue
		}
		if cred == nil {
			a.log.Info("no credential, skipping backend", "backend", kind)
			a.emitError(ErrorCredentialMissing, kind, locator, backend.ErrCredentialMissing)
			continue
		}

		if err := ad.Initialize(); err != nil {
			a.unavailable[kind] = true
			a.emitError(ErrorBackendInit, kind, locator, err)
			continue
		}

		a.stopActiveLocked()
		ad.SetVolume(a.session.Volume)
		if err := ad.LoadAndPlay(locator); err != nil {
			ad.Stop()
			a.emitError(ErrorLoadFailed, kind, locator, err)
			continue
		}

		a.setActiveLocked(kind, entityID)
		a.emitTrack(entityID, track.Ref{
			Source:      kind,
			Locator:     locator,
			DisplayName: locator,
		})
		return
	}

	a.stopActiveLocked()
	a.setActiveLocked(track.SourceNone, entityID)
	a.log.Info("no backend available, staying silent", "entity", entityID)
}

func streamingEnabled(sett settings.Settings, kind track.SourceKind) bool {
	switch kind {
	case track.SourceVideoPlatform:
		return sett.VideoPlatformEnabled
	case track.SourceStreamingService:
		return sett.StreamingServiceEnabled
	default:
		return false
	}
}

// handleTrackEnded reacts to a natural track end on kind. Stale callbacks
// from a backend that is no longer active are dropped.
func (a *Arbiter) handleTrackEnded(kind track.SourceKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed || a.session.ActiveBackend != kind {
		return
	}

	entityID := a.session.ActiveEntityID
	if a.currentEntity != nil {
		if id, ok := a.currentEntity(); ok && id != "" {
			entityID = id
		}
	}
	a.log.Debug("track ended", "backend", kind, "entity", entityID)

	if kind == track.SourceLocal {
		// The handle already drained; nothing is left to fade out.
		a.current = nil
	}

	// The user moved on to another entity; follow it instead of advancing
	// the one that just finished.
	if entityID != a.session.ActiveEntityID {
		a.playLocked(entityID, a.loadSettings())
		return
	}

	if kind == track.SourceLocal {
		entry := a.registrar.Lookup(entityID)
		if entry != nil && entry.Len() > 0 {
			if ref := a.sequencer.Advance(entry, library.Next); ref != nil {
				a.playLocalLocked(entityID, *ref, a.loadSettings())
				return
			}
		}
	}
	// Streaming backends loop on the same query.
	a.playLocked(entityID, a.loadSettings())
}

// stopActiveLocked silences whatever is sounding, including the handles of
// a cancelled crossfade.
func (a *Arbiter) stopActiveLocked() {
	a.engine.Cancel()
	a.releaseHandlesLocked()

	kind := a.session.ActiveBackend
	if kind == track.SourceNone {
		return
	}
	if ad := a.adapters[kind]; ad != nil {
		ad.Stop()
	}
}

func (a *Arbiter) releaseHandlesLocked() {
	if a.fading != nil {
		a.fading.Stop()
		a.fading = nil
	}
	if a.current != nil {
		a.current.Stop()
		a.current = nil
	}
}

func (a *Arbiter) setActiveLocked(kind track.SourceKind, entityID string) {
	prev := a.session.ActiveBackend
	a.session.ActiveBackend = kind
	a.session.ActiveEntityID = entityID
	if prev != kind {
		a.emitState(StateChange{Previous: prev, Current: kind})
	}
}

// entityName resolves the streaming search query for an entity.
func (a *Arbiter) entityName(entityID string) string {
	if a.resolveName != nil {
		if name := a.resolveName(entityID); name != "" {
			return name
		}
	}
	return entityID
}

func (a *Arbiter) loadSettings() settings.Settings {
	if a.settings == nil {
		return settings.Defaults()
	}
	sett, err := a.settings.Settings()
	if err != nil {
		a.log.Warn("loading settings failed, using defaults", "error", err)
		return settings.Defaults()
	}
	return sett
}

func (a *Arbiter) emitTrack(entityID string, ref track.Ref) {
	e := TrackChange{EntityID: entityID, Ref: ref}
	if ref.Source == track.SourceLocal {
		e.Info = backend.ReadTrackInfo(ref.Locator)
	}
	a.log.Info("track changed",
		"entity", entityID, "backend", ref.Source, "track", ref.DisplayName)

	a.subMu.RLock()
	for _, s := range a.subs {
		s.sendTrack(e)
	}
	a.subMu.RUnlock()
}

func (a *Arbiter) emitState(e StateChange) {
	a.log.Info("backend changed", "from", e.Previous, "to", e.Current)
	a.subMu.RLock()
	for _, s := range a.subs {
		s.sendState(e)
	}
	a.subMu.RUnlock()
}

func (a *Arbiter) emitError(kind ErrorKind, src track.SourceKind, locator string, err error) {
	a.log.Warn("playback error handled",
		"kind", kind, "backend", src, "locator", locator, "error", err)
	a.subMu.RLock()
	for _, s := range a.subs {
		s.sendError(ErrorEvent{Kind: kind, Backend: src, Locator: locator, Err: err})
	}
	a.subMu.RUnlock()
}
