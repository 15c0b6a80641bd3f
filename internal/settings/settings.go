// Package settings persists user playback settings and streaming
// credentials in a small SQLite database under the XDG data directory.
package settings

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lvasseur/shelftunes/internal/track"
)

const (
	appName    = "shelftunes"
	dbFileName = "shelftunes.db"
)

// Settings is the persisted user-settings schema. It round-trips through
// JSON byte-for-byte; every field is a string, number or boolean.
type Settings struct {
	Enabled                 bool    `json:"enabled"`
	Volume                  float64 `json:"volume"`
	CrossfadeDurationMs     int     `json:"crossfadeDurationMs"`
	AutoPlay                bool    `json:"autoPlay"`
	VideoPlatformEnabled    bool    `json:"videoPlatformEnabled"`
	StreamingServiceEnabled bool    `json:"streamingServiceEnabled"`
	APIKey                  string  `json:"apiKey,omitempty"`
}

// Defaults returns the settings used before the user saves anything.
func Defaults() Settings {
	return Settings{
		Enabled:             true,
		Volume:              0.5,
		CrossfadeDurationMs: 3000,
		AutoPlay:            true,
	}
}

// Credential is a streaming-provider credential. Absence is a valid,
// expected state, never an error.
type Credential struct {
	Provider track.SourceKind
	Token    string
	APIKey   string
	DeviceID string
}

// Store wraps the settings database.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens the store at the default XDG data path.
func Open() (*Store, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the store at an explicit path. Used by tests.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS credentials (
			provider TEXT PRIMARY KEY,
			token TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			device_id TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

// Settings returns the saved settings, or the defaults when none exist.
func (s *Store) Settings() (Settings, error) {
	var payload string
	row := s.db.QueryRow(`SELECT payload FROM settings WHERE id = 1`)
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	var cfg Settings
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// SaveSettings persists the settings as a JSON payload.
func (s *Store) SaveSettings(cfg Settings) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, string(payload))
	return err
}

// Credential returns the credential for a provider, or nil when absent.
func (s *Store) Credential(provider track.SourceKind) (*Credential, error) {
	var token, apiKey, deviceID string
	row := s.db.QueryRow(
		`SELECT token, api_key, device_id FROM credentials WHERE provider = ?`,
		provider.String(),
	)
	err := row.Scan(&token, &apiKey, &deviceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Credential{
		Provider: provider,
		Token:    token,
		APIKey:   apiKey,
		DeviceID: deviceID,
	}, nil
}

// SaveCredential upserts a provider credential.
func (s *Store) SaveCredential(cred Credential) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (provider, token, api_key, device_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			token = excluded.token,
			api_key = excluded.api_key,
			device_id = excluded.device_id
	`, cred.Provider.String(), cred.Token, cred.APIKey, cred.DeviceID)
	return err
}

// DeleteCredential removes a provider credential if present.
func (s *Store) DeleteCredential(provider track.SourceKind) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE provider = ?`, provider.String())
	return err
}
