package device

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	invalidRe    = regexp.MustCompile(`[^a-z0-9_-]`)
)

// idSuffixLen is how many trailing characters of the device ID are appended
// to the sanitized alias to keep topic names unique.
const idSuffixLen = 8

// SanitizeAlias converts a device alias into a topic-safe slug: lower-cased,
// whitespace collapsed to underscores, every other character outside
// [a-z0-9_-] stripped. The result may be empty.
func SanitizeAlias(alias string) string {
	s := strings.ToLower(alias)
	s = whitespaceRe.ReplaceAllString(s, "_")
	return invalidRe.ReplaceAllString(s, "")
}

// TopicName derives the stable MQTT topic segment for a device from its alias
// and identity. The ID suffix guarantees uniqueness even when two aliases
// collide or sanitize to the empty string.
//
// Topic names are assigned once at registration and never recomputed, so a
// device renamed after discovery keeps its original topic for the process
// lifetime.
func TopicName(alias, deviceID string) string {
	suffix := deviceID
	if len(suffix) > idSuffixLen {
		suffix = suffix[len(suffix)-idSuffixLen:]
	}
	return SanitizeAlias(alias) + "_" + suffix
}
