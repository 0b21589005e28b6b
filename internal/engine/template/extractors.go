package template

import (
	"github.com/emo-crab/observer-ward-sub000/internal/engine/regexutil"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/target"
	"github.com/tidwall/gjson"
)

// KVal lists header/cookie keys to extract by. It is decoded but not
// evaluated: Extract yields no values for it.
type KVal struct {
	KVal []string `yaml:"kval" json:"kval"`
}

// JSONPathQuery extracts fields from a JSON body using gjson path
// expressions.
type JSONPathQuery struct {
	JSON []string `yaml:"json" json:"json"`
}

// XPath holds HTML node queries and an optional attribute name. It is
// decoded but not evaluated: Extract yields no values for it.
type XPath struct {
	XPath     []string `yaml:"xpath" json:"xpath"`
	Attribute string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
}

// ExtractorDSL holds expression strings. It is decoded but not evaluated:
// Extract yields no values for it.
type ExtractorDSL struct {
	DSL []string `yaml:"dsl" json:"dsl"`
}

// ExtractorType is the tagged union of everything an Extractor can pull
// out of a response.
type ExtractorType interface {
	isExtractorType()
}

func (MRegex) isExtractorType()        {}
func (KVal) isExtractorType()          {}
func (XPath) isExtractorType()         {}
func (JSONPathQuery) isExtractorType() {}
func (ExtractorDSL) isExtractorType()  {}

// Extractor pulls a piece of data out of some Part of a response, and
// optionally feeds it into the template's Version for substitution.
type Extractor struct {
	Name            string
	Part            target.Part
	ExtractorType   ExtractorType
	Internal        bool
	CaseInsensitive bool

	regex *regexutil.Pair
}

func (e *Extractor) compile() {
	if re, ok := e.ExtractorType.(MRegex); ok {
		e.regex = regexutil.NewPair(re.Regex)
	}
}

// extractRegex runs every pattern in re against (text, body), collecting
// the chosen capture group from each match and feeding every match's full
// capture set through version (if present) to build substituted fields.
func (e *Extractor) extractRegex(re MRegex, text string, body []byte, version *Version) (map[string]struct{}, map[string]string) {
	group := 0
	if re.Group != nil {
		group = *re.Group
	}
	result := make(map[string]struct{})
	versionFields := make(map[string]string)
	for _, p := range e.regex.Patterns {
		c, ok := p.MatchStringThenBytes(text, body)
		if !ok {
			continue
		}
		if g, found := c.Get(group); found {
			result[g] = struct{}{}
		}
		if version != nil {
			for k, v := range version.Captures(c.Get) {
				versionFields[k] = v
			}
		}
	}
	return result, versionFields
}

// extractJSON evaluates every gjson path against corpus, a JSON document.
func (e *Extractor) extractJSON(q JSONPathQuery, corpus string) map[string]struct{} {
	result := make(map[string]struct{})
	if !gjson.Valid(corpus) {
		return result
	}
	for _, path := range q.JSON {
		for _, r := range gjson.Get(corpus, path).Array() {
			result[r.String()] = struct{}{}
		}
		if single := gjson.Get(corpus, path); single.Exists() && len(single.Array()) == 0 {
			result[single.String()] = struct{}{}
		}
	}
	return result
}

