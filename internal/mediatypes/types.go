package mediatypes

import (
	"path/filepath"
	"strings"
)

// TargetExtension is the extension given to every converted file.
const TargetExtension = ".mp4"

// VideoExtensions is the allow-list of source video extensions picked up by
// the scanner. Keys are lowercase and include the leading dot.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".3gp":  true,
}

// CompatibleContainers are the extensions whose files can already be played
// on the target device when the video codec is H.264.
var CompatibleContainers = map[string]bool{
	".mp4": true,
	".m4v": true,
}

// Ext returns the lowercase extension of path, including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsVideo reports whether path has an extension on the video allow-list.
// Matching is case-insensitive.
func IsVideo(path string) bool {
	return VideoExtensions[Ext(path)]
}

// IsCompatibleContainer reports whether path uses a container extension the
// target device plays natively.
func IsCompatibleContainer(path string) bool {
	return CompatibleContainers[Ext(path)]
}

// WithTargetExtension replaces the extension of path with TargetExtension.
func WithTargetExtension(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + TargetExtension
}
