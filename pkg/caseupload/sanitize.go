package caseupload

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// SanitizeFileName repairs a file name whose bytes arrived mis-encoded
// (browsers occasionally submit Latin-1 bytes in what should be UTF-8
// fields) and trims surrounding whitespace. It must be applied
// identically on the write path and on every comparison path, or
// duplicate names are silently missed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.ValidString(name) {
		return name
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().String(name)
	if err != nil {
		return strings.ToValidUTF8(name, "_")
	}
	return decoded
}
