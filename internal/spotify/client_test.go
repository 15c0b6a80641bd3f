package spotify

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchTrackURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("path = %s, want /v1/search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "game theme" {
			t.Errorf("query = %q, want %q", got, "game theme")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":{"items":[{"uri":"spotify:track:abc","name":"Theme"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	uri, err := c.SearchTrackURI("game theme")
	if err != nil {
		t.Fatalf("SearchTrackURI() error = %v", err)
	}
	if uri != "spotify:track:abc" {
		t.Errorf("uri = %q, want spotify:track:abc", uri)
	}
}

func TestSearchTrackURI_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tracks":{"items":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.SearchTrackURI("nothing"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("error = %v, want ErrNoMatch", err)
	}
}

func TestPlay_TargetsDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/v1/me/player/play" {
			t.Errorf("path = %s, want /v1/me/player/play", r.URL.Path)
		}
		if got := r.URL.Query().Get("device_id"); got != "dev-1" {
			t.Errorf("device_id = %q, want dev-1", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.Play("dev-1", []string{"spotify:track:abc"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
}

func TestPause_RestrictionTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() on an idle player should not error, got %v", err)
	}
}

func TestSetVolume_Clamped(t *testing.T) {
	var gotPercent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPercent = r.URL.Query().Get("volume_percent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if err := c.SetVolume(150); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if gotPercent != "100" {
		t.Errorf("volume_percent = %q, want clamped to 100", gotPercent)
	}
}

func TestCurrentlyPlaying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"is_playing":true,"progress_ms":1234,"item":{"uri":"spotify:track:abc","name":"Theme","duration_ms":90000}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	state, err := c.CurrentlyPlaying()
	if err != nil {
		t.Fatalf("CurrentlyPlaying() error = %v", err)
	}
	if state == nil || !state.IsPlaying || state.Item == nil || state.Item.Name != "Theme" {
		t.Fatalf("state = %+v, want playing Theme", state)
	}
}

func TestCurrentlyPlaying_NothingLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	state, err := c.CurrentlyPlaying()
	if err != nil {
		t.Fatalf("CurrentlyPlaying() error = %v", err)
	}
	if state != nil {
		t.Fatalf("state = %+v, want nil for an idle player", state)
	}
}
