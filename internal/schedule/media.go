package schedule

import (
	"mime"
	"path"
	"strings"
)

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".m4v":  "video/mp4",
}

// GuessKind sniffs a media kind from a URL's file extension.
//
// This is a last-resort heuristic for rows with no declared kind: the
// dispatch fallback chain still runs if the guess turns out wrong. Telegram
// file_ids carry no extension, so they come back as MediaNone.
func GuessKind(ref string) MediaKind {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return MediaNone
	}
	// Strip query/fragment before looking at the extension.
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ext := strings.ToLower(path.Ext(ref))
	if ext == "" {
		return MediaNone
	}
	if ext == ".gif" {
		return MediaAnimation
	}
	// The runtime's builtin extension table skips most video containers, so
	// resolve the common ones here instead of trusting the host's mime files.
	mt := videoTypes[ext]
	if mt == "" {
		mt = mime.TypeByExtension(ext)
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaPhoto
	case strings.HasPrefix(mt, "video/"):
		return MediaVideo
	case mt == "":
		return MediaNone
	default:
		return MediaDocument
	}
}
