package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// Text returns the hex SHA256 of a string. Used for name checksums stored on
// board mappings.
func Text(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// Fields creates a deterministic fingerprint for a set of column values by
// sorting keys into a canonical representation before hashing.
func Fields(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
	}
	return Text(b.String())
}

var (
	uuidPattern    = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	hexPattern     = regexp.MustCompile(`\b[0-9a-fA-F]{16,}\b`)
	lineRefPattern = regexp.MustCompile(`(\.go|\.sql):\d+`)
	numberPattern  = regexp.MustCompile(`\b\d+\b`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Normalize strips volatile substrings (run ids, long hashes, line numbers,
// counters) so that materially identical messages collapse to one
// fingerprint.
func Normalize(message string) string {
	s := uuidPattern.ReplaceAllString(message, "<id>")
	s = hexPattern.ReplaceAllString(s, "<hash>")
	s = lineRefPattern.ReplaceAllString(s, "${1}:<line>")
	s = numberPattern.ReplaceAllString(s, "<n>")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.ToLower(s))
}

// Event returns the dedup fingerprint for an alertable event: the hash of
// category, normalized message and source.
func Event(category, message, source string) string {
	return Text(category + "|" + Normalize(message) + "|" + source)
}
