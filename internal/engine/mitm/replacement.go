package mitm

import (
	"regexp"
	"strings"
)

// ReplacementTarget names which field of a matched message a Replacement
// rewrites.
type ReplacementTarget int

const (
	ReplaceURL ReplacementTarget = iota
	ReplacePath
	ReplaceQuery
	ReplaceMethod
	ReplaceRequestHeader
	ReplaceResponseHeader
	ReplaceRequestBody
	ReplaceResponseBody
	ReplaceStatusCode
)

// ReplacementType is the tagged union of ways a Replacement can rewrite a
// value.
type ReplacementType int

const (
	ReplaceTypeString ReplacementType = iota
	ReplaceTypeRegex
	ReplaceTypeSet
	ReplaceTypeAppend
	ReplaceTypePrepend
	ReplaceTypeRemove
)

// Replacement rewrites one field of a matched message. Find/ReplaceWith (and
// Pattern/ReplaceWith for the regex form) hold the old/new pair; All controls
// whether every occurrence is rewritten or only the first.
type Replacement struct {
	Target         ReplacementTarget
	HeaderName     string
	Type           ReplacementType
	Find           string
	ReplaceWith    string
	Pattern        string
	All            bool

	compiledRegex *regexp.Regexp
}

func (r *Replacement) compile() {
	if r.Type == ReplaceTypeRegex {
		r.compiledRegex, _ = regexp.Compile(r.Pattern)
	}
}

// Apply rewrites value according to this replacement's type. A regex
// replacement whose pattern failed to compile passes value through
// unchanged.
func (r *Replacement) Apply(value string) string {
	switch r.Type {
	case ReplaceTypeString:
		return applyStringReplace(value, r.Find, r.ReplaceWith, r.All)
	case ReplaceTypeRegex:
		if r.compiledRegex == nil {
			return value
		}
		if r.All {
			return r.compiledRegex.ReplaceAllString(value, r.ReplaceWith)
		}
		return replaceFirstRegex(r.compiledRegex, value, r.ReplaceWith)
	case ReplaceTypeSet:
		return r.ReplaceWith
	case ReplaceTypeAppend:
		return value + r.ReplaceWith
	case ReplaceTypePrepend:
		return r.ReplaceWith + value
	case ReplaceTypeRemove:
		return ""
	default:
		return value
	}
}

func applyStringReplace(value, find, replace string, all bool) string {
	if all {
		return strings.ReplaceAll(value, find, replace)
	}
	return strings.Replace(value, find, replace, 1)
}

func replaceFirstRegex(re *regexp.Regexp, value, replace string) string {
	loc := re.FindStringIndex(value)
	if loc == nil {
		return value
	}
	rewritten := re.ReplaceAllString(value[loc[0]:loc[1]], replace)
	return value[:loc[0]] + rewritten + value[loc[1]:]
}
