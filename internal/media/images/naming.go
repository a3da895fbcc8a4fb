package images

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	maxBaseLength = 40
	fallbackBase  = "image"
	suffixLength  = 8

	// CanonicalExt is the extension of every stored image.
	CanonicalExt = ".jpg"
)

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// SanitizeBase reduces a client filename to a safe, lower-case base name.
// Directory components and the extension are discarded, whitespace becomes
// '_' and anything outside [a-z0-9_-] is dropped.
func SanitizeBase(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if b.Len() >= maxBaseLength {
			break
		}
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return fallbackBase
	}
	return b.String()
}

// NewName builds a unique blob name for an upload:
// base_unixmillis_suffix.jpg.
func NewName(filename string, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(suffixAlphabet, suffixLength)
	if err != nil {
		return "", err
	}

	return SanitizeBase(filename) + "_" +
		strconv.FormatInt(now.UnixMilli(), 10) + "_" +
		suffix + CanonicalExt, nil
}
