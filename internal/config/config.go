package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	LibraryRoots []string `koanf:"library_roots"` // entity install directories scanned for soundtracks
	MusicSubdirs []string `koanf:"music_subdirs"` // subdirectory names probed inside each entity directory
	CacheFolder  string   `koanf:"cache_folder"`  // where fetched video platform audio lands

	// Control API settings
	Server ServerConfig `koanf:"server"`

	// Last.fm scrobbling (enables scrobbling when configured)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Streaming service connection overrides
	Spotify SpotifyConfig `koanf:"spotify"`
}

// ServerConfig holds the HTTP control API configuration.
type ServerConfig struct {
	Listen string `koanf:"listen"` // bind address, e.g. "127.0.0.1:8633"
}

// LastfmConfig holds Last.fm scrobbling configuration.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// SpotifyConfig holds Spotify Connect configuration.
type SpotifyConfig struct {
	BaseURL string `koanf:"base_url"` // override for tests and proxies
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	for i, root := range cfg.LibraryRoots {
		cfg.LibraryRoots[i] = expandPath(root)
	}
	cfg.CacheFolder = expandPath(cfg.CacheFolder)

	if len(cfg.MusicSubdirs) == 0 {
		cfg.MusicSubdirs = defaultMusicSubdirs()
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "127.0.0.1:8633"
	}
	cfg.Spotify.BaseURL = strings.TrimSuffix(cfg.Spotify.BaseURL, "/")

	return cfg, nil
}

// defaultMusicSubdirs lists the subdirectory names entities commonly keep
// their soundtrack files under.
func defaultMusicSubdirs() []string {
	return []string{"soundtrack", "soundtracks", "music", "ost", "audio"}
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/shelftunes/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "shelftunes", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm scrobbling is configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}
