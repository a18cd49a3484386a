package router

import (
	"strings"
	"unicode"

	"github.com/tzurot/tzurot/internal/personality"
)

// Mention is a parsed explicit personality mention.
type Mention struct {
	Personality personality.Personality
	Alias       string // alias text as it appeared
	Rest        string // content with the mention removed
}

// ParseMention scans content for an "@alias" style mention. Multi-word
// aliases are supported and the longest registered alias wins at each
// candidate position; the leftmost candidate wins overall. An "@" inside
// a word (email addresses) is not a mention.
func ParseMention(content string, reg *personality.Registry) (Mention, bool) {
	for i := 0; i < len(content); i++ {
		if content[i] != '@' {
			continue
		}
		if i > 0 && !isSpaceByte(content[i-1]) {
			continue
		}
		p, alias, ok := reg.MatchPrefix(content[i+1:])
		if !ok {
			continue
		}
		before := strings.TrimRight(content[:i], " ")
		after := strings.TrimLeft(content[i+1+len(alias):], " ")
		rest := strings.TrimSpace(before + " " + after)
		return Mention{Personality: p, Alias: alias, Rest: rest}, true
	}
	return Mention{}, false
}

func isSpaceByte(b byte) bool {
	return b < 0x80 && unicode.IsSpace(rune(b))
}
