package template

import (
	"strconv"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/target"
)

// Operators is the matcher/extractor bag attached to a single request.
type Operators struct {
	StopAtFirstMatch  bool
	MatchersCondition Condition
	Matchers          []*Matcher
	Extractors        []*Extractor
}

func (o *Operators) compile() {
	for _, m := range o.Matchers {
		m.compile()
	}
	for _, e := range o.Extractors {
		e.compile()
	}
}

// IsEmpty reports whether this Operators has nothing to evaluate, used to
// drop templates whose only useful matchers got pulled out as favicon
// probes.
func (o *Operators) IsEmpty() bool {
	return len(o.Matchers) == 0 && len(o.Extractors) == 0
}

// OperatorResult accumulates what matched/extracted for one evaluation of
// an Operators against a target.
type OperatorResult struct {
	Matched      bool
	Names        map[string]struct{}
	MatcherWords []string
	ExtractResult map[string]map[string]struct{}
}

func NewOperatorResult() *OperatorResult {
	return &OperatorResult{
		Names:         make(map[string]struct{}),
		ExtractResult: make(map[string]map[string]struct{}),
	}
}

func (r *OperatorResult) IsMatched() bool  { return r.Matched }
func (r *OperatorResult) IsExtracted() bool { return len(r.ExtractResult) > 0 }

// MatcherWord returns the matched words plus every matcher name that hit,
// the same composite the reference engine prints for operators output.
func (r *OperatorResult) MatcherWord() []string {
	out := append([]string{}, r.MatcherWords...)
	for name := range r.Names {
		out = append(out, name)
	}
	return out
}

func (r *OperatorResult) mergeExtract(key string, values map[string]struct{}) {
	if len(values) == 0 {
		return
	}
	existing, ok := r.ExtractResult[key]
	if !ok {
		existing = make(map[string]struct{})
		r.ExtractResult[key] = existing
	}
	for v := range values {
		existing[v] = struct{}{}
	}
}

// FaviconHashes is how the caller plugs in an already-discovered favicon
// hash set keyed by source URI, standing in for the response extension
// the reference engine stashes on slinger::Response.
type FaviconHashes map[string][]string

// Extract runs every extractor in o against target using the optional
// version template to fold capture groups into named fields.
func Extract[T target.OperatorTarget](o *Operators, version *Version, t T, result *OperatorResult) {
	for i, e := range o.Extractors {
		text, body, err := target.Content(e.Part, t)
		if err != nil {
			continue
		}
		var extracted map[string]struct{}
		var versionFields map[string]string
		switch et := e.ExtractorType.(type) {
		case MRegex:
			extracted, versionFields = e.extractRegex(et, text, body, version)
		case JSONPathQuery:
			extracted = e.extractJSON(et, text)
		case KVal, XPath, ExtractorDSL:
			// data model only: parsed but never evaluated, so these always
			// produce an empty extraction.
		}
		if len(extracted) > 0 {
			key := e.Name
			if key == "" {
				key = strconv.Itoa(i)
			}
			result.mergeExtract(key, extracted)
		}
		for k, v := range versionFields {
			result.mergeExtract(k, map[string]struct{}{v: {}})
		}
	}
}

// Match runs every matcher in o against target, combining matcher-level
// matches with MatchersCondition. statusCode and favicons are optional
// extension data only available when matching a real HTTP response.
func Match[T target.OperatorTarget](o *Operators, t T, statusCode *int, favicons FaviconHashes, result *OperatorResult) {
	if len(o.Matchers) == 0 {
		return
	}
	var allMatched = true
	for _, m := range o.Matchers {
		text, body, err := target.Content(m.Part, t)
		if err != nil {
			text, body = "", nil
		}
		var isMatch bool
		var words []string
		switch mt := m.MatcherType.(type) {
		case Word:
			isMatch, words = m.matchWord(mt, text)
		case Favicon:
			if favicons != nil {
				isMatch, words = m.matchFavicon(mt, favicons)
			}
		case Status:
			if statusCode != nil {
				isMatch = m.matchStatus(mt, *statusCode)
				words = []string{strconv.Itoa(*statusCode)}
			}
		case MRegex:
			isMatch, words = m.matchRegex(mt, text, body)
		case Binary, DSL, MatcherXPath:
			// data model only: the reference engine never evaluates these,
			// so they always fail to match.
			isMatch, words = false, nil
		}
		isMatch = m.negate(isMatch)
		if !isMatch {
			allMatched = false
			if o.MatchersCondition == ConditionAnd {
				result.Matched = false
				return
			}
			continue
		}
		if m.Name != "" {
			result.Names[m.Name] = struct{}{}
		}
		result.MatcherWords = append(result.MatcherWords, words...)
		if o.MatchersCondition == ConditionOr {
			result.Matched = true
			if o.StopAtFirstMatch {
				return
			}
		}
	}
	if o.MatchersCondition == ConditionAnd && allMatched {
		result.Matched = true
	}
}
