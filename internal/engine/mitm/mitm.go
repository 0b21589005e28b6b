// Package mitm evaluates declarative interception rules against traffic
// flowing through the passive MITM proxy: which requests/responses a rule
// applies to, what action to take (allow/block/modify), and how to
// rewrite a matched message's fields.
package mitm

import (
	"regexp"
	"strings"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// Target names which field of a request or response a Matcher or
// Replacement reads or rewrites.
type Target int

const (
	TargetDomain Target = iota
	TargetIP
	TargetProtocol
	TargetURL
	TargetPath
	TargetExtension
	TargetMethod
	TargetRequestHeader
	TargetResponseHeader
	TargetRequestBody
	TargetResponseBody
	TargetStatusCode
	TargetHeader
)

var targetNames = map[string]Target{
	"domain":          TargetDomain,
	"ip":              TargetIP,
	"protocol":        TargetProtocol,
	"url":             TargetURL,
	"path":            TargetPath,
	"extension":       TargetExtension,
	"method":          TargetMethod,
	"request-header":  TargetRequestHeader,
	"response-header": TargetResponseHeader,
	"request-body":    TargetRequestBody,
	"response-body":   TargetResponseBody,
	"status-code":     TargetStatusCode,
}

// MatchType is the tagged union of ways a Matcher can compare its
// target's value.
type MatchType int

const (
	MatchNone MatchType = iota
	MatchWord
	MatchRegex
	MatchExact
	MatchStatus
)

// Matcher is a single rule condition: a target field, how to compare it,
// and the AND/OR/negate/case-folding modifiers that shape the
// comparison.
type Matcher struct {
	Name            string
	Target          Target
	HeaderName      string
	MatchType       MatchType
	Words           []string
	Regex           []string
	Exact           []string
	Status          []int
	Condition       template.Condition
	Negative        bool
	CaseInsensitive bool

	compiled []*regexp.Regexp
}

// Compile precompiles every regex pattern this matcher carries. A pattern
// that fails to compile is dropped silently -- it renders that one
// pattern inert without breaking the rest of the matcher.
func (m *Matcher) Compile() {
	if m.MatchType != MatchRegex {
		return
	}
	m.compiled = make([]*regexp.Regexp, 0, len(m.Regex))
	for _, pattern := range m.Regex {
		if re, err := regexp.Compile(pattern); err == nil {
			m.compiled = append(m.compiled, re)
		} else {
			m.compiled = append(m.compiled, nil)
		}
	}
}

// Matches evaluates this matcher's string-valued comparison against
// value.
func (m *Matcher) Matches(value string) bool {
	var result bool
	switch m.MatchType {
	case MatchNone:
		result = true
	case MatchWord:
		result = m.matchWords(value)
	case MatchRegex:
		result = m.matchRegex(value)
	case MatchExact:
		result = m.matchExact(value)
	case MatchStatus:
		result = false
	}
	if m.Negative {
		return !result
	}
	return result
}

// MatchesStatus evaluates this matcher's status-code comparison.
func (m *Matcher) MatchesStatus(code int) bool {
	var result bool
	if m.MatchType == MatchStatus {
		for _, s := range m.Status {
			if s == code {
				result = true
				break
			}
		}
	}
	if m.Negative {
		return !result
	}
	return result
}

func (m *Matcher) matchWords(value string) bool {
	v := value
	if m.CaseInsensitive {
		v = strings.ToLower(v)
	}
	test := func(word string) bool {
		if m.CaseInsensitive {
			word = strings.ToLower(word)
		}
		return strings.Contains(v, word)
	}
	if m.Condition == template.ConditionAnd {
		for _, w := range m.Words {
			if !test(w) {
				return false
			}
		}
		return true
	}
	for _, w := range m.Words {
		if test(w) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchRegex(value string) bool {
	if m.Condition == template.ConditionAnd {
		usable := 0
		for _, re := range m.compiled {
			if re == nil {
				continue
			}
			if !re.MatchString(value) {
				return false
			}
			usable++
		}
		return usable > 0
	}
	for _, re := range m.compiled {
		if re != nil && re.MatchString(value) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchExact(value string) bool {
	v := value
	if m.CaseInsensitive {
		v = strings.ToLower(v)
	}
	test := func(want string) bool {
		if m.CaseInsensitive {
			want = strings.ToLower(want)
		}
		return v == want
	}
	if m.Condition == template.ConditionAnd {
		for _, w := range m.Exact {
			if !test(w) {
				return false
			}
		}
		return true
	}
	for _, w := range m.Exact {
		if test(w) {
			return true
		}
	}
	return false
}

// Action is what a matched rule tells the proxy to do with the message.
type Action int

const (
	ActionAllow Action = iota
	ActionBlock
	ActionModify
)

// Request is one declarative interception rule: a set of matchers, how
// they combine, the action to take, and (for Modify) the replacements to
// apply.
type Request struct {
	ID           string
	Name         string
	Matchers     []*Matcher
	Condition    template.Condition
	Action       Action
	Replacements []Replacement
}

// Compile precompiles every matcher and replacement regex this rule
// carries.
func (r *Request) Compile() {
	for _, m := range r.Matchers {
		m.Compile()
	}
	for i := range r.Replacements {
		r.Replacements[i].compile()
	}
}
