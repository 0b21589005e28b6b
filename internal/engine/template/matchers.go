package template

import (
	"strconv"
	"strings"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/regexutil"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/target"
)

// Condition is the boolean relation between a matcher's (or extractor's)
// multiple values: any one is enough (Or), or every one must hit (And).
type Condition int

const (
	ConditionOr Condition = iota
	ConditionAnd
)

func (c Condition) MarshalYAML() (any, error) {
	if c == ConditionAnd {
		return "and", nil
	}
	return "or", nil
}

func (c *Condition) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*c = conditionFromString(s)
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	v, _ := c.MarshalYAML()
	return []byte(strconv.Quote(v.(string))), nil
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	*c = conditionFromString(s)
	return nil
}

// conditionFromString parses a matchers-condition scalar; anything other
// than "and" (case-insensitive) is treated as the default, "or".
func conditionFromString(s string) Condition {
	if strings.EqualFold(s, "and") {
		return ConditionAnd
	}
	return ConditionOr
}

// Word matches when one or more literal substrings appear in the target
// part.
type Word struct {
	Words []string `yaml:"words" json:"words"`
}

// Favicon matches when the target's favicon hash set intersects Hash
// (either the md5 or mmh3 form).
type Favicon struct {
	Hash []string `yaml:"hash" json:"hash"`
}

// Status matches on HTTP response status code.
type Status struct {
	Status []int `yaml:"status" json:"status"`
}

// MRegex is a regex matcher/extractor pattern list with an optional
// capture-group index (0 = whole match).
type MRegex struct {
	Regex []string `yaml:"regex" json:"regex"`
	Group *int     `yaml:"group,omitempty" json:"group,omitempty"`
}

// Binary holds hex-encoded byte sequences. It is decoded but not
// evaluated: Match treats its check as failing.
type Binary struct {
	Binary []string `yaml:"binary" json:"binary"`
}

// DSL holds boolean expression strings. It is decoded but not evaluated:
// Match treats its check as failing.
type DSL struct {
	DSL []string `yaml:"dsl" json:"dsl"`
}

// MatcherXPath holds XPath queries and an optional attribute name. It is
// decoded but not evaluated: Match treats its check as failing.
type MatcherXPath struct {
	XPath     []string `yaml:"xpath" json:"xpath"`
	Attribute string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
}

// MatcherType is the tagged union of everything a Matcher can check.
type MatcherType interface {
	isMatcherType()
}

func (Word) isMatcherType()         {}
func (Favicon) isMatcherType()      {}
func (Status) isMatcherType()       {}
func (MRegex) isMatcherType()       {}
func (Binary) isMatcherType()       {}
func (DSL) isMatcherType()          {}
func (MatcherXPath) isMatcherType() {}

// Matcher is a single pattern-matching rule evaluated against some Part
// of a response or request.
type Matcher struct {
	MatcherType     MatcherType
	Name            string
	Part            target.Part
	Condition       Condition
	MatchAll        bool
	Internal        bool
	CaseInsensitive bool
	Negative        bool

	regex *regexutil.Pair
}

func (m *Matcher) compile() {
	if re, ok := m.MatcherType.(MRegex); ok {
		m.regex = regexutil.NewPair(re.Regex)
	}
	if w, ok := m.MatcherType.(Word); ok && m.CaseInsensitive {
		lowered := make([]string, len(w.Words))
		for i, word := range w.Words {
			lowered[i] = strings.ToLower(word)
		}
		m.MatcherType = Word{Words: lowered}
	}
}

func (m *Matcher) negate(matched bool) bool {
	if m.Negative {
		return !matched
	}
	return matched
}

func (m *Matcher) matchWord(w Word, corpus string) (bool, []string) {
	if m.CaseInsensitive {
		corpus = strings.ToLower(corpus)
	}
	var matched []string
	for i, word := range w.Words {
		if !strings.Contains(corpus, word) {
			if m.Condition == ConditionAnd {
				return false, matched
			}
			continue
		}
		matched = append(matched, word)
		if m.Condition == ConditionOr && !m.MatchAll {
			return true, matched
		}
		if i == len(w.Words)-1 && !m.MatchAll {
			return true, matched
		}
	}
	if len(matched) > 0 && m.MatchAll {
		return true, matched
	}
	return false, matched
}

func (m *Matcher) matchFavicon(fav Favicon, hashes map[string][]string) (bool, []string) {
	for uri, hs := range hashes {
		for _, h := range fav.Hash {
			for _, have := range hs {
				if have == h {
					return true, []string{h, uri}
				}
			}
		}
	}
	return false, nil
}

func (m *Matcher) matchStatus(st Status, code int) bool {
	for _, s := range st.Status {
		if s == code {
			return true
		}
	}
	return false
}

func (m *Matcher) matchRegex(re MRegex, text string, body []byte) (bool, []string) {
	group := 0
	if re.Group != nil {
		group = *re.Group
	}
	var matched []string
	for _, p := range m.regex.Patterns {
		c, ok := p.MatchStringThenBytes(text, body)
		if !ok {
			if m.Condition == ConditionAnd {
				return false, matched
			}
			continue
		}
		if g, found := c.Get(group); found {
			matched = append(matched, g)
		}
		if m.Condition == ConditionOr && !m.MatchAll {
			return true, matched
		}
	}
	if len(matched) > 0 && !m.MatchAll {
		return true, matched
	}
	return false, matched
}

