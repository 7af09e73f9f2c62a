package domain

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MediaClass is the coarse category used to pick the chat upload method
// and caption icon. Anything unrecognized is sent as a plain document.
type MediaClass string

const (
	MediaVideo    MediaClass = "video"
	MediaImage    MediaClass = "image"
	MediaAudio    MediaClass = "audio"
	MediaDocument MediaClass = "document"
)

var mediaByExtension = map[string]MediaClass{}

func init() {
	register := func(class MediaClass, exts ...string) {
		for _, ext := range exts {
			mediaByExtension[ext] = class
		}
	}
	register(MediaVideo, ".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm", ".m4v", ".mpg", ".mpeg", ".3gp", ".ogv")
	register(MediaImage, ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tiff", ".svg", ".ico")
	register(MediaAudio, ".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac", ".wma", ".opus")
}

// ClassifyName maps a filename to its media class using the extension only.
func ClassifyName(name string) MediaClass {
	ext := strings.ToLower(filepath.Ext(name))
	if class, ok := mediaByExtension[ext]; ok {
		return class
	}
	return MediaDocument
}

// ClassifyFile is ClassifyName with a content-sniffing fallback: when the
// extension says nothing, the first bytes of the local file decide.
// Sniffing errors degrade to MediaDocument, never fail the caller.
func ClassifyFile(localPath, name string) MediaClass {
	if class := ClassifyName(name); class != MediaDocument {
		return class
	}

	detected, err := mimetype.DetectFile(localPath)
	if err != nil {
		return MediaDocument
	}

	switch {
	case strings.HasPrefix(detected.String(), "video/"):
		return MediaVideo
	case strings.HasPrefix(detected.String(), "image/"):
		return MediaImage
	case strings.HasPrefix(detected.String(), "audio/"):
		return MediaAudio
	default:
		return MediaDocument
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

const maxFilenameLength = 200

// SanitizeFilename makes a remote name safe to use as a local file name.
func SanitizeFilename(name string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(name, "_")
	sanitized = strings.TrimSpace(sanitized)
	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
	}
	return sanitized
}
