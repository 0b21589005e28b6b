package mitm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
	"gopkg.in/yaml.v3"
)

// rawMatcher is the on-disk shape of a Matcher: a flat struct carrying
// every match-type's fields, disambiguated by the type string.
type rawMatcher struct {
	Name            string   `yaml:"name"`
	Target          string   `yaml:"target"`
	Header          string   `yaml:"header,omitempty"`
	Type            string   `yaml:"type"`
	Words           []string `yaml:"words,omitempty"`
	Regex           []string `yaml:"regex,omitempty"`
	Exact           []string `yaml:"exact,omitempty"`
	Status          []int    `yaml:"status,omitempty"`
	Condition       string   `yaml:"condition,omitempty"`
	Negative        bool     `yaml:"negative,omitempty"`
	CaseInsensitive bool     `yaml:"case-insensitive,omitempty"`
}

// rawReplacement is the on-disk shape of a Replacement.
type rawReplacement struct {
	Target      string `yaml:"target"`
	Header      string `yaml:"header,omitempty"`
	ReplaceType string `yaml:"replace-type"`
	Find        string `yaml:"find,omitempty"`
	Replace     string `yaml:"replace,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
	All         bool   `yaml:"all,omitempty"`
}

// rawRequest is the on-disk shape of a MITM rule.
type rawRequest struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Matchers     []rawMatcher     `yaml:"matchers"`
	Condition    string           `yaml:"condition,omitempty"`
	Action       string           `yaml:"action"`
	Replacements []rawReplacement `yaml:"replacements,omitempty"`
}

// LoadFile parses a YAML document of interception rules from path.
func LoadFile(path string) ([]*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mitm: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadDir walks root recursively, loading every ".yaml"/".yml" rule file it
// finds. A file that fails to parse is recorded in the returned error slice
// and otherwise skipped, so one malformed rule file doesn't take down the
// rest of the rule set.
func LoadDir(root string) ([]*Request, []error) {
	var rules []*Request
	var errs []error

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		loaded, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		rules = append(rules, loaded...)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("mitm: walk %s: %w", root, walkErr))
	}
	return rules, errs
}

// Parse decodes a YAML document of interception rules.
func Parse(data []byte) ([]*Request, error) {
	var raw []rawRequest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("mitm: decode rules: %w", err)
	}
	rules := make([]*Request, 0, len(raw))
	for _, r := range raw {
		rule, err := r.toRequest()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r rawRequest) toRequest() (*Request, error) {
	matchers := make([]*Matcher, 0, len(r.Matchers))
	for _, rm := range r.Matchers {
		m, err := rm.toMatcher()
		if err != nil {
			return nil, fmt.Errorf("mitm: rule %q: %w", r.ID, err)
		}
		matchers = append(matchers, m)
	}
	replacements := make([]Replacement, 0, len(r.Replacements))
	for _, rr := range r.Replacements {
		rep, err := rr.toReplacement()
		if err != nil {
			return nil, fmt.Errorf("mitm: rule %q: %w", r.ID, err)
		}
		replacements = append(replacements, rep)
	}
	return &Request{
		ID:           r.ID,
		Name:         r.Name,
		Matchers:     matchers,
		Condition:    parseCondition(r.Condition),
		Action:       parseAction(r.Action),
		Replacements: replacements,
	}, nil
}

func (rm rawMatcher) toMatcher() (*Matcher, error) {
	target, headerName, err := parseTarget(rm.Target, rm.Header)
	if err != nil {
		return nil, err
	}
	matchType, err := parseMatchType(rm.Type)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		Name:            rm.Name,
		Target:          target,
		HeaderName:      headerName,
		MatchType:       matchType,
		Words:           rm.Words,
		Regex:           rm.Regex,
		Exact:           rm.Exact,
		Status:          rm.Status,
		Condition:       parseCondition(rm.Condition),
		Negative:        rm.Negative,
		CaseInsensitive: rm.CaseInsensitive,
	}, nil
}

func (rr rawReplacement) toReplacement() (Replacement, error) {
	target, headerName, err := parseReplacementTarget(rr.Target, rr.Header)
	if err != nil {
		return Replacement{}, err
	}
	replaceType, err := parseReplacementType(rr.ReplaceType)
	if err != nil {
		return Replacement{}, err
	}
	return Replacement{
		Target:      target,
		HeaderName:  headerName,
		Type:        replaceType,
		Find:        rr.Find,
		ReplaceWith: rr.Replace,
		Pattern:     rr.Pattern,
		All:         rr.All,
	}, nil
}

func parseTarget(s, header string) (Target, string, error) {
	lower := strings.ToLower(s)
	if t, ok := targetNames[lower]; ok {
		return t, "", nil
	}
	if lower == "header" {
		return TargetHeader, header, nil
	}
	return 0, "", fmt.Errorf("mitm: unknown matcher target %q", s)
}

func parseReplacementTarget(s, header string) (ReplacementTarget, string, error) {
	switch strings.ToLower(s) {
	case "url":
		return ReplaceURL, "", nil
	case "path":
		return ReplacePath, "", nil
	case "query":
		return ReplaceQuery, "", nil
	case "method":
		return ReplaceMethod, "", nil
	case "request-header":
		return ReplaceRequestHeader, header, nil
	case "response-header":
		return ReplaceResponseHeader, header, nil
	case "request-body":
		return ReplaceRequestBody, "", nil
	case "response-body":
		return ReplaceResponseBody, "", nil
	case "status-code":
		return ReplaceStatusCode, "", nil
	default:
		return 0, "", fmt.Errorf("mitm: unknown replacement target %q", s)
	}
}

func parseMatchType(s string) (MatchType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return MatchNone, nil
	case "word":
		return MatchWord, nil
	case "regex":
		return MatchRegex, nil
	case "exact":
		return MatchExact, nil
	case "status":
		return MatchStatus, nil
	default:
		return 0, fmt.Errorf("mitm: unknown match type %q", s)
	}
}

func parseReplacementType(s string) (ReplacementType, error) {
	switch strings.ToLower(s) {
	case "string":
		return ReplaceTypeString, nil
	case "regex":
		return ReplaceTypeRegex, nil
	case "set":
		return ReplaceTypeSet, nil
	case "append":
		return ReplaceTypeAppend, nil
	case "prepend":
		return ReplaceTypePrepend, nil
	case "remove":
		return ReplaceTypeRemove, nil
	default:
		return 0, fmt.Errorf("mitm: unknown replacement type %q", s)
	}
}

func parseCondition(s string) template.Condition {
	if strings.EqualFold(s, "and") {
		return template.ConditionAnd
	}
	return template.ConditionOr
}

func parseAction(s string) Action {
	switch strings.ToLower(s) {
	case "block":
		return ActionBlock
	case "modify":
		return ActionModify
	default:
		return ActionAllow
	}
}
