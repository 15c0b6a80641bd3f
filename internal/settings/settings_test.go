package settings

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvasseur/shelftunes/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SettingsDefaults(t *testing.T) {
	store := openTestStore(t)

	cfg, err := store.Settings()
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0.5, cfg.Volume)
	assert.Equal(t, 3000, cfg.CrossfadeDurationMs)
	assert.True(t, cfg.AutoPlay)
	assert.False(t, cfg.VideoPlatformEnabled)
	assert.False(t, cfg.StreamingServiceEnabled)
}

func TestStore_SettingsRoundTrip(t *testing.T) {
	store := openTestStore(t)

	saved := Settings{
		Enabled:                 true,
		Volume:                  0.75,
		CrossfadeDurationMs:     1500,
		AutoPlay:                false,
		VideoPlatformEnabled:    true,
		StreamingServiceEnabled: true,
		APIKey:                  "key-123",
	}
	require.NoError(t, store.SaveSettings(saved))

	loaded, err := store.Settings()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	// The persisted payload serializes byte-for-byte identically.
	a, err := json.Marshal(saved)
	require.NoError(t, err)
	b, err := json.Marshal(loaded)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStore_SettingsOverwrite(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveSettings(Settings{Volume: 0.2}))
	require.NoError(t, store.SaveSettings(Settings{Volume: 0.9}))

	cfg, err := store.Settings()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Volume)
}

func TestStore_CredentialAbsent(t *testing.T) {
	store := openTestStore(t)

	cred, err := store.Credential(track.SourceStreamingService)
	require.NoError(t, err)
	assert.Nil(t, cred, "absent credential is a valid state, not an error")
}

func TestStore_CredentialRoundTrip(t *testing.T) {
	store := openTestStore(t)

	saved := Credential{
		Provider: track.SourceStreamingService,
		Token:    "tok",
		DeviceID: "device-1",
	}
	require.NoError(t, store.SaveCredential(saved))

	loaded, err := store.Credential(track.SourceStreamingService)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved, *loaded)

	// Other providers stay absent.
	other, err := store.Credential(track.SourceVideoPlatform)
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.DeleteCredential(track.SourceStreamingService))
	gone, err := store.Credential(track.SourceStreamingService)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_CloseIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
