package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/target"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/value"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a single template document in its source YAML form.
func ParseYAML(data []byte) (Template, error) {
	var raw rawTemplate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Template{}, fmt.Errorf("template: decode yaml: %w", err)
	}
	return raw.toTemplate()
}

// ParseJSON decodes a single template document in the aggregated
// fingerprint-library JSON form.
func ParseJSON(data []byte) (Template, error) {
	var raw rawTemplate
	if err := json.Unmarshal(data, &raw); err != nil {
		return Template{}, fmt.Errorf("template: decode json: %w", err)
	}
	return raw.toTemplate()
}

// ParseJSONList decodes a JSON array of templates, the shape an aggregated
// fingerprint library ships as a single file.
func ParseJSONList(data []byte) ([]Template, error) {
	var raws []rawTemplate
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("template: decode json list: %w", err)
	}
	out := make([]Template, 0, len(raws))
	for i, raw := range raws {
		t, err := raw.toTemplate()
		if err != nil {
			return nil, fmt.Errorf("template: entry %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// rawTemplate mirrors a template document's on-disk shape: the "http"/"tcp"
// lists may appear either directly at the top level (the common shorthand)
// or nested under a "requests" block (the older, more explicit alias); both
// are folded into the same Requests.
type rawTemplate struct {
	ID               string             `yaml:"id" json:"id"`
	Info             Info               `yaml:"info" json:"info"`
	Flow             string             `yaml:"flow,omitempty" json:"flow,omitempty"`
	HTTP             []HTTPRequest      `yaml:"http,omitempty" json:"http,omitempty"`
	TCP              []TCPRequest       `yaml:"tcp,omitempty" json:"tcp,omitempty"`
	Requests         *rawRequestsBlock  `yaml:"requests,omitempty" json:"requests,omitempty"`
	SelfContained    bool               `yaml:"self-contained,omitempty" json:"self-contained,omitempty"`
	StopAtFirstMatch bool               `yaml:"stop-at-first-match,omitempty" json:"stop-at-first-match,omitempty"`
	Variables        map[string]string  `yaml:"variables,omitempty" json:"variables,omitempty"`
}

type rawRequestsBlock struct {
	HTTP []HTTPRequest `yaml:"http,omitempty" json:"http,omitempty"`
	TCP  []TCPRequest  `yaml:"tcp,omitempty" json:"tcp,omitempty"`
}

func (rt rawTemplate) toTemplate() (Template, error) {
	if rt.ID == "" {
		return Template{}, fmt.Errorf("template: id is required")
	}
	t := Template{
		ID:               rt.ID,
		Info:             rt.Info,
		Flow:             rt.Flow,
		SelfContained:    rt.SelfContained,
		StopAtFirstMatch: rt.StopAtFirstMatch,
		Variables:        rt.Variables,
	}
	t.Requests.HTTP = append(t.Requests.HTTP, rt.HTTP...)
	t.Requests.TCP = append(t.Requests.TCP, rt.TCP...)
	if rt.Requests != nil {
		t.Requests.HTTP = append(t.Requests.HTTP, rt.Requests.HTTP...)
		t.Requests.TCP = append(t.Requests.TCP, rt.Requests.TCP...)
	}
	if len(t.Requests.HTTP) == 0 && len(t.Requests.TCP) == 0 {
		return Template{}, fmt.Errorf("template %q: no http or tcp requests", t.ID)
	}
	return t, nil
}

func (t *Template) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawTemplate
	if err := unmarshal(&raw); err != nil {
		return err
	}
	built, err := raw.toTemplate()
	if err != nil {
		return err
	}
	*t = built
	return nil
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var raw rawTemplate
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := raw.toTemplate()
	if err != nil {
		return err
	}
	*t = built
	return nil
}

// rawHTTPRequest is the flattened on-disk shape of one requests.http entry:
// the path-form and raw-form fields sit side by side with every
// HttpOption/matcher/extractor field, exactly as a template author writes
// them, and toHTTPRequest disambiguates which request form was populated.
type rawHTTPRequest struct {
	ID     string                  `yaml:"id,omitempty" json:"id,omitempty"`
	Name   string                  `yaml:"name,omitempty" json:"name,omitempty"`
	Method string                  `yaml:"method,omitempty" json:"method,omitempty"`
	Path   []string                `yaml:"path,omitempty" json:"path,omitempty"`
	Body   string                  `yaml:"body,omitempty" json:"body,omitempty"`
	Headers map[string]value.Value `yaml:"headers,omitempty" json:"headers,omitempty"`
	Raw    []string                `yaml:"raw,omitempty" json:"raw,omitempty"`
	Unsafe bool                    `yaml:"unsafe,omitempty" json:"unsafe,omitempty"`

	HostRedirects bool `yaml:"host-redirects,omitempty" json:"host-redirects,omitempty"`
	Redirects     bool `yaml:"redirects,omitempty" json:"redirects,omitempty"`
	RaceCount     int  `yaml:"race-count,omitempty" json:"race-count,omitempty"`
	MaxRedirects  int  `yaml:"max-redirects,omitempty" json:"max-redirects,omitempty"`
	Threads       int  `yaml:"threads,omitempty" json:"threads,omitempty"`
	MaxSize       int  `yaml:"max-size,omitempty" json:"max-size,omitempty"`
	CookieReuse   bool `yaml:"cookie-reuse,omitempty" json:"cookie-reuse,omitempty"`
	ReadAll       bool `yaml:"read-all,omitempty" json:"read-all,omitempty"`
	DisableCookie bool `yaml:"disable-cookie,omitempty" json:"disable-cookie,omitempty"`

	Attack   string                  `yaml:"attack,omitempty" json:"attack,omitempty"`
	Payloads map[string]value.Value `yaml:"payloads,omitempty" json:"payloads,omitempty"`

	SkipVariablesCheck bool `yaml:"skip-variables-check,omitempty" json:"skip-variables-check,omitempty"`
	StopAtFirstMatch   bool `yaml:"stop-at-first-match,omitempty" json:"stop-at-first-match,omitempty"`

	MatchersCondition string       `yaml:"matchers-condition,omitempty" json:"matchers-condition,omitempty"`
	Matchers          []*Matcher   `yaml:"matchers,omitempty" json:"matchers,omitempty"`
	Extractors        []*Extractor `yaml:"extractors,omitempty" json:"extractors,omitempty"`
}

func (r rawHTTPRequest) toHTTPRequest() HTTPRequest {
	req := HTTPRequest{
		ID:                 r.ID,
		Name:                r.Name,
		SkipVariablesCheck:  r.SkipVariablesCheck,
		StopAtFirstMatch:    r.StopAtFirstMatch,
		HttpOption: HttpOption{
			HostRedirects: r.HostRedirects,
			Redirects:     r.Redirects,
			RaceCount:     r.RaceCount,
			MaxRedirects:  r.MaxRedirects,
			Threads:       r.Threads,
			MaxSize:       r.MaxSize,
			CookieReuse:   r.CookieReuse,
			ReadAll:       r.ReadAll,
			DisableCookie: r.DisableCookie,
		},
		Operators: Operators{
			StopAtFirstMatch:  r.StopAtFirstMatch,
			MatchersCondition: conditionFromString(r.MatchersCondition),
			Matchers:          r.Matchers,
			Extractors:        r.Extractors,
		},
	}
	if len(r.Raw) > 0 {
		req.HttpRaw.Raw = &Raw{Raw: r.Raw, Unsafe: r.Unsafe}
	} else {
		req.HttpRaw.Path = &Http{Method: r.Method, Path: r.Path, Body: r.Body, Headers: r.Headers}
	}
	if r.Attack != "" || len(r.Payloads) > 0 {
		req.PayloadAttack = &PayloadAttack{Attack: attackTypeFromString(r.Attack), Payloads: r.Payloads}
	}
	return req
}

func (h *HTTPRequest) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawHTTPRequest
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*h = raw.toHTTPRequest()
	return nil
}

func (h *HTTPRequest) UnmarshalJSON(data []byte) error {
	var raw rawHTTPRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = raw.toHTTPRequest()
	return nil
}

// rawTCPRequest is the flattened on-disk shape of one requests.tcp entry.
type rawTCPRequest struct {
	ID           string     `yaml:"id,omitempty" json:"id,omitempty"`
	Name         string     `yaml:"name,omitempty" json:"name,omitempty"`
	Inputs       []Input    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Host         []string   `yaml:"host,omitempty" json:"host,omitempty"`
	Port         *PortRange `yaml:"port,omitempty" json:"port,omitempty"`
	ExcludePorts string     `yaml:"exclude-ports,omitempty" json:"exclude-ports,omitempty"`
	ReadSize     int        `yaml:"read-size,omitempty" json:"read-size,omitempty"`
	ReadAll      bool       `yaml:"read-all,omitempty" json:"read-all,omitempty"`
	Threads      int        `yaml:"threads,omitempty" json:"threads,omitempty"`

	Attack   string                  `yaml:"attack,omitempty" json:"attack,omitempty"`
	Payloads map[string]value.Value `yaml:"payloads,omitempty" json:"payloads,omitempty"`

	MatchersCondition string       `yaml:"matchers-condition,omitempty" json:"matchers-condition,omitempty"`
	Matchers          []*Matcher   `yaml:"matchers,omitempty" json:"matchers,omitempty"`
	Extractors        []*Extractor `yaml:"extractors,omitempty" json:"extractors,omitempty"`
	StopAtFirstMatch  bool         `yaml:"stop-at-first-match,omitempty" json:"stop-at-first-match,omitempty"`
}

func (r rawTCPRequest) toTCPRequest() TCPRequest {
	req := TCPRequest{
		ID:           r.ID,
		Name:         r.Name,
		Inputs:       r.Inputs,
		Host:         r.Host,
		Port:         r.Port,
		ExcludePorts: r.ExcludePorts,
		ReadSize:     r.ReadSize,
		ReadAll:      r.ReadAll,
		Threads:      r.Threads,
		Operators: Operators{
			StopAtFirstMatch:  r.StopAtFirstMatch,
			MatchersCondition: conditionFromString(r.MatchersCondition),
			Matchers:          r.Matchers,
			Extractors:        r.Extractors,
		},
	}
	if r.Attack != "" || len(r.Payloads) > 0 {
		req.PayloadAttack = &PayloadAttack{Attack: attackTypeFromString(r.Attack), Payloads: r.Payloads}
	}
	return req
}

func (r *TCPRequest) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawTCPRequest
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*r = raw.toTCPRequest()
	return nil
}

func (r *TCPRequest) UnmarshalJSON(data []byte) error {
	var raw rawTCPRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = raw.toTCPRequest()
	return nil
}

// rawMatcher is the flattened on-disk shape of one matcher: every
// type-specific field sits alongside the common ones, with "type"
// selecting which of them toMatcher reads.
type rawMatcher struct {
	Type            string `yaml:"type" json:"type"`
	Name            string `yaml:"name,omitempty" json:"name,omitempty"`
	Part            string `yaml:"part,omitempty" json:"part,omitempty"`
	Condition       string `yaml:"condition,omitempty" json:"condition,omitempty"`
	MatchAll        bool   `yaml:"match-all,omitempty" json:"match-all,omitempty"`
	Internal        bool   `yaml:"internal,omitempty" json:"internal,omitempty"`
	CaseInsensitive bool   `yaml:"case-insensitive,omitempty" json:"case-insensitive,omitempty"`
	Negative        bool   `yaml:"negative,omitempty" json:"negative,omitempty"`

	Words     []string `yaml:"words,omitempty" json:"words,omitempty"`
	Regex     []string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Group     *int     `yaml:"group,omitempty" json:"group,omitempty"`
	Status    []int    `yaml:"status,omitempty" json:"status,omitempty"`
	Hash      []string `yaml:"hash,omitempty" json:"hash,omitempty"`
	Binary    []string `yaml:"binary,omitempty" json:"binary,omitempty"`
	DSL       []string `yaml:"dsl,omitempty" json:"dsl,omitempty"`
	XPath     []string `yaml:"xpath,omitempty" json:"xpath,omitempty"`
	Attribute string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
}

func (r rawMatcher) toMatcher() (Matcher, error) {
	m := Matcher{
		Name:            r.Name,
		Part:            target.ParsePart(r.Part),
		Condition:       conditionFromString(r.Condition),
		MatchAll:        r.MatchAll,
		Internal:        r.Internal,
		CaseInsensitive: r.CaseInsensitive,
		Negative:        r.Negative,
	}
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "word":
		m.MatcherType = Word{Words: r.Words}
	case "status":
		m.MatcherType = Status{Status: r.Status}
	case "favicon":
		m.MatcherType = Favicon{Hash: r.Hash}
	case "regex":
		m.MatcherType = MRegex{Regex: r.Regex, Group: r.Group}
	case "binary":
		m.MatcherType = Binary{Binary: r.Binary}
	case "dsl":
		m.MatcherType = DSL{DSL: r.DSL}
	case "xpath":
		m.MatcherType = MatcherXPath{XPath: r.XPath, Attribute: r.Attribute}
	default:
		return Matcher{}, fmt.Errorf("template: unknown matcher type %q", r.Type)
	}
	return m, nil
}

func matcherToRaw(m Matcher) rawMatcher {
	condStr, _ := m.Condition.MarshalYAML()
	raw := rawMatcher{
		Name:            m.Name,
		Part:            m.Part.String(),
		Condition:       condStr.(string),
		MatchAll:        m.MatchAll,
		Internal:        m.Internal,
		CaseInsensitive: m.CaseInsensitive,
		Negative:        m.Negative,
	}
	switch mt := m.MatcherType.(type) {
	case Word:
		raw.Type, raw.Words = "word", mt.Words
	case Status:
		raw.Type, raw.Status = "status", mt.Status
	case Favicon:
		raw.Type, raw.Hash = "favicon", mt.Hash
	case MRegex:
		raw.Type, raw.Regex, raw.Group = "regex", mt.Regex, mt.Group
	case Binary:
		raw.Type, raw.Binary = "binary", mt.Binary
	case DSL:
		raw.Type, raw.DSL = "dsl", mt.DSL
	case MatcherXPath:
		raw.Type, raw.XPath, raw.Attribute = "xpath", mt.XPath, mt.Attribute
	}
	return raw
}

func (m *Matcher) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawMatcher
	if err := unmarshal(&raw); err != nil {
		return err
	}
	built, err := raw.toMatcher()
	if err != nil {
		return err
	}
	*m = built
	return nil
}

func (m *Matcher) UnmarshalJSON(data []byte) error {
	var raw rawMatcher
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := raw.toMatcher()
	if err != nil {
		return err
	}
	*m = built
	return nil
}

func (m Matcher) MarshalYAML() (any, error) { return matcherToRaw(m), nil }

func (m Matcher) MarshalJSON() ([]byte, error) { return json.Marshal(matcherToRaw(m)) }

// rawExtractor is the flattened on-disk shape of one extractor.
type rawExtractor struct {
	Name            string   `yaml:"name,omitempty" json:"name,omitempty"`
	Type            string   `yaml:"type" json:"type"`
	Part            string   `yaml:"part,omitempty" json:"part,omitempty"`
	Internal        bool     `yaml:"internal,omitempty" json:"internal,omitempty"`
	CaseInsensitive bool     `yaml:"case-insensitive,omitempty" json:"case-insensitive,omitempty"`
	Regex           []string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Group           *int     `yaml:"group,omitempty" json:"group,omitempty"`
	KVal            []string `yaml:"kval,omitempty" json:"kval,omitempty"`
	JSON            []string `yaml:"json,omitempty" json:"json,omitempty"`
	XPath           []string `yaml:"xpath,omitempty" json:"xpath,omitempty"`
	Attribute       string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	DSL             []string `yaml:"dsl,omitempty" json:"dsl,omitempty"`
}

func (r rawExtractor) toExtractor() (Extractor, error) {
	e := Extractor{
		Name:            r.Name,
		Part:            target.ParsePart(r.Part),
		Internal:        r.Internal,
		CaseInsensitive: r.CaseInsensitive,
	}
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "regex":
		e.ExtractorType = MRegex{Regex: r.Regex, Group: r.Group}
	case "kval":
		e.ExtractorType = KVal{KVal: r.KVal}
	case "json":
		e.ExtractorType = JSONPathQuery{JSON: r.JSON}
	case "xpath":
		e.ExtractorType = XPath{XPath: r.XPath, Attribute: r.Attribute}
	case "dsl":
		e.ExtractorType = ExtractorDSL{DSL: r.DSL}
	default:
		return Extractor{}, fmt.Errorf("template: unknown extractor type %q", r.Type)
	}
	return e, nil
}

func extractorToRaw(e Extractor) rawExtractor {
	raw := rawExtractor{
		Name:            e.Name,
		Part:            e.Part.String(),
		Internal:        e.Internal,
		CaseInsensitive: e.CaseInsensitive,
	}
	switch et := e.ExtractorType.(type) {
	case MRegex:
		raw.Type, raw.Regex, raw.Group = "regex", et.Regex, et.Group
	case KVal:
		raw.Type, raw.KVal = "kval", et.KVal
	case JSONPathQuery:
		raw.Type, raw.JSON = "json", et.JSON
	case XPath:
		raw.Type, raw.XPath, raw.Attribute = "xpath", et.XPath, et.Attribute
	case ExtractorDSL:
		raw.Type, raw.DSL = "dsl", et.DSL
	}
	return raw
}

func (e *Extractor) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawExtractor
	if err := unmarshal(&raw); err != nil {
		return err
	}
	built, err := raw.toExtractor()
	if err != nil {
		return err
	}
	*e = built
	return nil
}

func (e *Extractor) UnmarshalJSON(data []byte) error {
	var raw rawExtractor
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := raw.toExtractor()
	if err != nil {
		return err
	}
	*e = built
	return nil
}

func (e Extractor) MarshalYAML() (any, error) { return extractorToRaw(e), nil }

func (e Extractor) MarshalJSON() ([]byte, error) { return json.Marshal(extractorToRaw(e)) }
