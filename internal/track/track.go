// Package track defines the track reference model shared by the library,
// the playback arbiter and the backend adapters.
package track

import "strings"

// SourceKind identifies the playback technology a track belongs to.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceLocal
	SourceVideoPlatform
	SourceStreamingService
)

// String returns the source name.
func (k SourceKind) String() string {
	switch k {
	case SourceNone:
		return "None"
	case SourceLocal:
		return "Local"
	case SourceVideoPlatform:
		return "VideoPlatform"
	case SourceStreamingService:
		return "StreamingService"
	default:
		return "Unknown"
	}
}

// ParseSource maps a source name to its kind, case-insensitively.
// Unknown names report false.
func ParseSource(s string) (SourceKind, bool) {
	switch strings.ToLower(s) {
	case "none":
		return SourceNone, true
	case "local":
		return SourceLocal, true
	case "videoplatform":
		return SourceVideoPlatform, true
	case "streamingservice":
		return SourceStreamingService, true
	default:
		return SourceNone, false
	}
}

// Ref is an immutable reference to a playable track.
// Locator is a file path, a platform video id, or a streaming URI,
// depending on Source.
type Ref struct {
	Source      SourceKind
	Locator     string
	DisplayName string
}
