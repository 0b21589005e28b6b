// Package regexutil provides a lazily-compiled regex pattern that can be
// matched against either a decoded string corpus or a raw byte corpus,
// exposing a single capture abstraction regardless of which path matched.
//
// The reference engine compiles two distinct regex flavors per pattern (a
// look-ahead-capable text engine and a byte engine) because body content is
// sometimes not valid UTF-8. Go's regexp.Regexp natively supports both
// FindStringSubmatch and FindSubmatch on one compiled program, so a single
// compile serves both call sites here; the dual-path shape is kept because
// callers (matcher/extractor evaluation) still want "try text, then bytes"
// semantics and a result type that is independent of which path matched.
package regexutil

import (
	"regexp"
	"strings"
	"sync"
)

// Pattern is a single regex pattern, compiled once and reused across every
// evaluation. Compile failures are recorded and surfaced through Err(),
// never panicked -- the caller skips the individual pattern and keeps
// evaluating the rest of the matcher/extractor.
type Pattern struct {
	source string

	once sync.Once
	re   *regexp.Regexp
	err  error
}

// NewPattern returns a Pattern that lazily compiles source on first use.
func NewPattern(source string) *Pattern {
	return &Pattern{source: source}
}

func (p *Pattern) compile() {
	p.once.Do(func() {
		p.re, p.err = regexp.Compile(p.source)
	})
}

// Err returns the compile error, if compilation has already been attempted
// and failed. Returns nil before the first match attempt.
func (p *Pattern) Err() error {
	return p.err
}

// Captures holds one successful match's capture groups, normalized the same
// way regardless of whether the match came from the string or byte path:
// byte-path capture text has its whitespace stripped after a best-effort
// UTF-8 decode, matching the original's fallback-to-escaped-ASCII handling.
type Captures struct {
	groups []string
	found  []bool
}

// Get returns the i'th capture group's text. ok is false if the group did
// not participate in the match or the index is out of range.
func (c Captures) Get(i int) (string, bool) {
	if i < 0 || i >= len(c.groups) || !c.found[i] {
		return "", false
	}
	return c.groups[i], true
}

// MatchString attempts a match against a decoded text corpus.
func (p *Pattern) MatchString(corpus string) (Captures, bool) {
	p.compile()
	if p.re == nil {
		return Captures{}, false
	}
	m := p.re.FindStringSubmatchIndex(corpus)
	if m == nil {
		return Captures{}, false
	}
	return capturesFromStringIndex(corpus, m), true
}

// MatchBytes attempts a match against a raw byte corpus. Capture text is
// decoded as UTF-8, with each invalid byte replaced by U+FFFD, then
// whitespace is stripped.
func (p *Pattern) MatchBytes(corpus []byte) (Captures, bool) {
	p.compile()
	if p.re == nil {
		return Captures{}, false
	}
	m := p.re.FindSubmatchIndex(corpus)
	if m == nil {
		return Captures{}, false
	}
	return capturesFromBytesIndex(corpus, m), true
}

// MatchStringThenBytes tries the text path first and falls back to the byte
// path, mirroring the reference engine's Regexp::captures.
func (p *Pattern) MatchStringThenBytes(text string, raw []byte) (Captures, bool) {
	if c, ok := p.MatchString(text); ok {
		return c, true
	}
	return p.MatchBytes(raw)
}

func capturesFromStringIndex(corpus string, m []int) Captures {
	n := len(m) / 2
	groups := make([]string, n)
	found := make([]bool, n)
	for i := 0; i < n; i++ {
		start, end := m[2*i], m[2*i+1]
		if start < 0 || end < 0 {
			continue
		}
		groups[i] = corpus[start:end]
		found[i] = true
	}
	return Captures{groups: groups, found: found}
}

func capturesFromBytesIndex(corpus []byte, m []int) Captures {
	n := len(m) / 2
	groups := make([]string, n)
	found := make([]bool, n)
	for i := 0; i < n; i++ {
		start, end := m[2*i], m[2*i+1]
		if start < 0 || end < 0 {
			continue
		}
		groups[i] = stripWhitespace(string(corpus[start:end]))
		found[i] = true
	}
	return Captures{groups: groups, found: found}
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

// Pair bundles multiple alternative patterns behind one name, used by
// matchers/extractors that carry a pattern list rather than a single
// pattern.
type Pair struct {
	Patterns []*Pattern
}

// NewPair compiles (lazily) every pattern in sources.
func NewPair(sources []string) *Pair {
	patterns := make([]*Pattern, 0, len(sources))
	for _, s := range sources {
		patterns = append(patterns, NewPattern(s))
	}
	return &Pair{Patterns: patterns}
}
