package intent

import (
	"sort"
	"strings"
)

// connectives separate independently classifiable sub-utterances. Each
// is matched with surrounding whitespace so it only splits between words.
var connectives = []string{" and then ", " and also ", " after that "}

// Splitter segments a transcript into sub-utterances that each carry
// one intent. A split happens only at a connective whose two sides both
// contain a recognized intent keyword, so entity-bearing text is never
// dropped.
type Splitter struct{}

// NewSplitter creates a multi-intent splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Split returns the transcript's segments in source order. A transcript
// with no qualifying split point yields exactly one segment.
func (s *Splitter) Split(transcript string) []string {
	segments := []string{}
	rest := strings.TrimSpace(transcript)
	for {
		left, right, found := splitOnce(rest)
		if !found {
			segments = append(segments, rest)
			return segments
		}
		segments = append(segments, left)
		rest = right
	}
}

type splitPoint struct {
	pos  int
	conn string
}

// lowerASCII folds A-Z only. Unicode-aware folding can change byte
// length, and byte offsets found in the folded text must map one to
// one onto the original.
func lowerASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// splitOnce finds the leftmost qualifying connective and splits there.
func splitOnce(text string) (left, right string, found bool) {
	lowered := lowerASCII(text)

	var points []splitPoint
	for _, conn := range connectives {
		idx := 0
		for {
			pos := strings.Index(lowered[idx:], conn)
			if pos < 0 {
				break
			}
			pos += idx
			points = append(points, splitPoint{pos: pos, conn: conn})
			idx = pos + len(conn)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].pos < points[j].pos })

	for _, p := range points {
		l := strings.TrimSpace(text[:p.pos])
		r := strings.TrimSpace(text[p.pos+len(p.conn):])
		if hasIntentKeyword(l) && hasIntentKeyword(r) {
			return l, r, true
		}
	}
	return "", "", false
}
