package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"

	"github.com/lvasseur/shelftunes/internal/backend"
	"github.com/lvasseur/shelftunes/internal/config"
	"github.com/lvasseur/shelftunes/internal/lastfm"
	"github.com/lvasseur/shelftunes/internal/mpris"
	"github.com/lvasseur/shelftunes/internal/playback"
	"github.com/lvasseur/shelftunes/internal/scanner"
	"github.com/lvasseur/shelftunes/internal/server"
	"github.com/lvasseur/shelftunes/internal/settings"
	"github.com/lvasseur/shelftunes/internal/spotify"
	"github.com/lvasseur/shelftunes/internal/track"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := settings.Open()
	if err != nil {
		return err
	}
	defer store.Close()

	cacheDir := cfg.CacheFolder
	if cacheDir == "" {
		cacheDir = filepath.Join(xdg.CacheHome, "shelftunes", "videoplatform")
	}

	// The streaming backend only gets a live client when a credential is
	// stored; without one every load fails over to the next backend.
	var streamClient backend.StreamingClient
	deviceID := ""
	if cred, err := store.Credential(track.SourceStreamingService); err == nil && cred != nil {
		streamClient = spotify.NewClient(cfg.Spotify.BaseURL, cred.Token)
		deviceID = cred.DeviceID
	}

	// Scan the library roots and register every discovered entity.
	entities := scanner.New(cfg.LibraryRoots, cfg.MusicSubdirs, log).Scan()
	names := make(map[string]string, len(entities))
	for _, e := range entities {
		names[e.ID] = e.Name
	}

	arbiter := playback.New(playback.Config{
		Local:             backend.NewLocal(),
		VideoPlatform:     backend.NewYouTube(cacheDir),
		StreamingService:  backend.NewStreaming(streamClient, deviceID),
		Settings:          store,
		Logger:            log,
		ResolveEntityName: func(id string) string { return names[id] },
	})
	defer arbiter.DestroyAll()

	for _, e := range entities {
		arbiter.RegisterEntity(e.ID, e.Files)
	}

	mprisAdapter, err := mpris.New(arbiter)
	if err != nil {
		log.Warn("mpris unavailable", "error", err)
	} else {
		defer mprisAdapter.Close()
	}

	var lfm *lastfm.Client
	var lfmAuth server.LastfmAuthenticator
	if cfg.HasLastfmConfig() {
		lfm = lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
		lfmAuth = lfm
	}
	startScrobbler(lfm, store, arbiter, log)

	sett, err := store.Settings()
	if err != nil {
		return err
	}
	if sett.Enabled && sett.AutoPlay && len(entities) > 0 {
		arbiter.PlayMusicFor(entities[0].ID)
	}

	api := server.NewAPI(arbiter, store, lfmAuth, log)
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.SetupRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("control api listening", "addr", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// startScrobbler wires the Last.fm watcher when API keys are configured and
// a session key has been stored. The session key comes from the settings,
// obtained through the /lastfm auth endpoints.
func startScrobbler(client *lastfm.Client, store *settings.Store, arbiter *playback.Arbiter, log *slog.Logger) {
	if client == nil {
		return
	}
	sett, err := store.Settings()
	if err != nil || sett.APIKey == "" {
		log.Info("last.fm configured but not authenticated, scrobbling disabled")
		return
	}
	client.SetSessionKey(sett.APIKey)

	sub := arbiter.Subscribe()
	lastfm.NewWatcher(client, lastfm.Events{
		TrackChanged: sub.TrackChanged,
		StateChanged: sub.StateChanged,
		Done:         sub.Done,
	}, log).Start()
	log.Info("last.fm scrobbling enabled")
}
