package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mega-relay/errors"
)

func TestCleanLink(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		found bool
	}{
		{"bare link", "https://mega.nz/file/ABC#key", "https://mega.nz/file/ABC#key", true},
		{"missing scheme", "mega.nz/file/ABC#key", "https://mega.nz/file/ABC#key", true},
		{"angle brackets", "<https://mega.nz/file/ABC#key>", "https://mega.nz/file/ABC#key", true},
		{"inner whitespace", "https://mega.nz/file/AB C#key", "https://mega.nz/file/ABC#key", true},
		{"surrounding text", "grab this mega.nz/folder/DEF#k now", "https://grabthismega.nz/folder/DEF#know", true},
		{"no link", "hello there", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, found := CleanLink(tt.in)
			req.Equal(tt.found, found)
			req.Equal(tt.want, got)
		})
	}
}

func TestParseLink(t *testing.T) {
	req := require.New(t)

	link, err := ParseLink("https://mega.nz/file/AbC12_-#kEy34")
	req.NoError(err)
	req.Equal(LinkFile, link.Kind)
	req.Equal("AbC12_-", link.Handle)
	req.Equal("kEy34", link.Key)

	link, err = ParseLink("mega.nz/folder/XYZ")
	req.NoError(err)
	req.Equal(LinkFolder, link.Kind)
	req.Empty(link.Key)
}

func TestParseLink_Invalid(t *testing.T) {
	req := require.New(t)

	for _, in := range []string{
		"",
		"https://example.com/file/ABC#key",
		"https://mega.nz/#!ABC!key",
		"https://mega.nz/download/ABC#key",
	} {
		_, err := ParseLink(in)
		req.ErrorIs(err, errors.ErrInvalidLink, in)
	}
}

func TestRemoteLink_Redacted(t *testing.T) {
	req := require.New(t)

	link, err := ParseLink("https://mega.nz/file/ABC#secret")
	req.NoError(err)
	req.Equal("https://mega.nz/file/ABC#secret", link.String())
	req.Equal("https://mega.nz/file/ABC#[redacted]", link.Redacted())

	// No key, nothing to hide
	link, err = ParseLink("https://mega.nz/folder/DEF")
	req.NoError(err)
	req.Equal("https://mega.nz/folder/DEF", link.Redacted())
}
