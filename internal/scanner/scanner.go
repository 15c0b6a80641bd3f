// Package scanner discovers entity directories and their soundtrack files
// under the configured library roots.
package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// audioExtensions lists the file types the local backend can decode.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
}

// IsAudioFile reports whether path has a playable audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Entity is one discovered library entry: a directory under a root plus
// the audio files found in its soundtrack subdirectories.
type Entity struct {
	ID    string // directory name, stable across scans
	Name  string // display name used as the streaming search query
	Files []string
}

// Scanner walks library roots. Each immediate subdirectory of a root is an
// entity; its soundtrack files are collected from the configured music
// subdirectories, falling back to loose audio files in the entity directory.
type Scanner struct {
	roots   []string
	subdirs []string
	log     *slog.Logger
}

// New creates a scanner over the given roots and music subdirectory names.
func New(roots, subdirs []string, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{roots: roots, subdirs: subdirs, log: log}
}

// Scan walks every root and returns the discovered entities in a stable
// order. Unreadable directories are skipped, not fatal.
func (s *Scanner) Scan() []Entity {
	var entities []Entity

	for _, root := range s.roots {
		dirs, err := os.ReadDir(root)
		if err != nil {
			s.log.Warn("skipping unreadable library root", "root", root, "error", err)
			continue
		}
		for _, d := range dirs {
			if !d.IsDir() {
				continue
			}
			dir := filepath.Join(root, d.Name())
			entities = append(entities, Entity{
				ID:    d.Name(),
				Name:  displayName(d.Name()),
				Files: s.collectFiles(dir),
			})
		}
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	s.log.Info("library scan finished", "roots", len(s.roots), "entities", len(entities))
	return entities
}

// collectFiles gathers audio files for one entity directory. Matching music
// subdirectories are walked recursively; without one, loose audio files at
// the top level count.
func (s *Scanner) collectFiles(dir string) []string {
	var files []string

	for _, sub := range s.matchSubdirs(dir) {
		_ = filepath.WalkDir(sub, func(path string, d os.DirEntry, walkErr error) error {
			// Skip walk errors, keep scanning the rest
			if walkErr != nil || d.IsDir() {
				return nil
			}
			if IsAudioFile(path) {
				files = append(files, path)
			}
			return nil
		})
	}

	if len(files) == 0 {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		for _, e := range entries {
			if !e.IsDir() && IsAudioFile(e.Name()) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}

	sort.Strings(files)
	return files
}

// matchSubdirs returns the entity's subdirectories whose names match a
// configured music folder name, case-insensitively.
func (s *Scanner) matchSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var matched []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, want := range s.subdirs {
			if strings.EqualFold(e.Name(), want) {
				matched = append(matched, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	return matched
}

// displayName turns a directory name into a human search query.
func displayName(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(name)
}
