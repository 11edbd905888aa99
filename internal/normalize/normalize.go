// Package normalize derives the content-based identity keys used by the
// upsert engine: folded person names and stable event title hashes.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctRe = regexp.MustCompile(`[.,()\[\]{}\-_/]+`)
	spaceRe = regexp.MustCompile(`\s+`)

	// NFKD decomposition followed by removal of combining marks folds
	// accented characters to their base letters ("José" -> "Jose").
	accentFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// SHA256Hex returns the hex-encoded SHA-256 digest of text.
func SHA256Hex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PersonName folds a display name into its identity form: accents stripped,
// lowercased, punctuation collapsed to spaces, whitespace normalized.
// Two sightings of the same real-world person should fold to the same value.
func PersonName(name string) string {
	if name == "" {
		return ""
	}
	folded, _, err := transform.String(accentFold, name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(strings.TrimSpace(folded))
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TitleHash returns the stable short hash of an event title: SHA-256 of the
// lowercased trimmed title, truncated to 16 hex characters. Part of the
// event natural key.
func TitleHash(title string) string {
	return SHA256Hex(strings.ToLower(strings.TrimSpace(title)))[:16]
}

// Domain reduces a website URL or bare host to its registrable-ish domain
// form: scheme and www prefix stripped, lowercased, path dropped.
func Domain(website string) string {
	d := strings.ToLower(strings.TrimSpace(website))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}
