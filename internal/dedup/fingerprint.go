package dedup

import (
	"fmt"
	"strings"
	"unicode"
)

// Segment sizes for fingerprinting very long message bodies. Hashing the
// head, tail, and length is enough to distinguish real messages while
// bounding cost for multi-kilobyte pastes.
const (
	longContentThreshold = 200
	segmentLen           = 80
)

// Fingerprint derives the duplicate-cache key for a message. Two
// fingerprints are equal iff channel, author label, and
// whitespace-stripped content are all equal.
func Fingerprint(content, authorLabel, channelID string) string {
	stripped := stripWhitespace(content)
	if len(stripped) > longContentThreshold {
		stripped = fmt.Sprintf("%s~%s~%d",
			stripped[:segmentLen],
			stripped[len(stripped)-segmentLen:],
			len(stripped),
		)
	}
	return channelID + "|" + authorLabel + "|" + stripped
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
