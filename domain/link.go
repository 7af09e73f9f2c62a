package domain

import (
	"regexp"
	"strings"

	"mega-relay/errors"
)

type LinkKind string

const (
	LinkFile   LinkKind = "file"
	LinkFolder LinkKind = "folder"
)

// RemoteLink is a normalized MEGA share link.
// Key is the decryption key fragment after '#', possibly empty.
type RemoteLink struct {
	Raw    string
	Kind   LinkKind
	Handle string
	Key    string
}

var (
	whitespace  = regexp.MustCompile(`\s+`)
	linkPattern = regexp.MustCompile(`mega\.nz/(file|folder)/([A-Za-z0-9_-]+)(?:#([A-Za-z0-9_-]+))?`)
)

// CleanLink normalizes a candidate link found in a chat message.
// It strips whitespace and angle brackets and forces an https scheme.
// Returns false when the text contains no recognizable link at all.
func CleanLink(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	cleaned := strings.TrimSpace(text)
	cleaned = whitespace.ReplaceAllString(cleaned, "")
	cleaned = strings.NewReplacer("<", "", ">", "").Replace(cleaned)

	if !strings.Contains(cleaned, "mega.nz") {
		return "", false
	}

	if !strings.HasPrefix(cleaned, "http") {
		cleaned = "https://" + cleaned
	}

	return cleaned, true
}

// ParseLink cleans the text and extracts kind, handle and key.
// ErrInvalidLink is returned when the host pattern does not match.
func ParseLink(text string) (RemoteLink, error) {
	cleaned, ok := CleanLink(text)
	if !ok {
		return RemoteLink{}, errors.ErrInvalidLink
	}

	match := linkPattern.FindStringSubmatch(cleaned)
	if match == nil {
		return RemoteLink{}, errors.ErrInvalidLink
	}

	return RemoteLink{
		Raw:    cleaned,
		Kind:   LinkKind(match[1]),
		Handle: match[2],
		Key:    match[3],
	}, nil
}

func (l RemoteLink) String() string {
	s := "https://mega.nz/" + string(l.Kind) + "/" + l.Handle
	if l.Key != "" {
		s += "#" + l.Key
	}
	return s
}

// Redacted returns a loggable form of the link with the key fragment hidden.
// The full link only ever goes to the operator channel.
func (l RemoteLink) Redacted() string {
	s := "https://mega.nz/" + string(l.Kind) + "/" + l.Handle
	if l.Key != "" {
		s += "#[redacted]"
	}
	return s
}
