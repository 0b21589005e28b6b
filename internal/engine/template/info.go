package template

import (
	"sort"
	"strconv"
	"strings"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/value"
)

// Severity ranks how interesting a matched template is, following the
// same five-step scale as the rest of the fingerprinting ecosystem.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityInfo
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityUnknown:  "unknown",
	SeverityInfo:     "info",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParseSeverity(s string) Severity {
	for sev, name := range severityNames {
		if name == strings.ToLower(s) {
			return sev
		}
	}
	return SeverityUnknown
}

func (s Severity) MarshalYAML() (any, error) { return s.String(), nil }

func (s *Severity) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// Classification carries CVE/CWE/CPE bookkeeping for a template, mirroring
// the "classification" metadata block nuclei-style templates attach to
// vulnerability findings.
type Classification struct {
	CVEID    value.StringList `yaml:"cve-id,omitempty" json:"cve-id,omitempty"`
	CWEID    value.StringList `yaml:"cwe-id,omitempty" json:"cwe-id,omitempty"`
	CPE      string           `yaml:"cpe,omitempty" json:"cpe,omitempty"`
	EPSSScore float64         `yaml:"epss-score,omitempty" json:"epss-score,omitempty"`
}

// VPF names a piece of software: vendor, product, optional framework, and
// whether the identification has been hand-verified.
type VPF struct {
	Vendor    string
	Product   string
	Framework string
	Verified  bool
}

// unknownVPF is the sentinel written into a fresh VPF's vendor/product
// fields before normalization fills them in.
const unknownVPF = "00_unknown"

// Name renders "vendor:product", the CPE-style identity string used to key
// clustering and reporting.
func (v VPF) Name() string {
	return v.Vendor + ":" + v.Product
}

func normalizeVPFPart(s string) string {
	for i := 0; i < 10 && strings.Contains(s, `\`); i++ {
		s = strings.Replace(s, `\`, "", 1)
	}
	for i := 0; i < 10 && strings.Contains(s, "/"); i++ {
		s = strings.Replace(s, "/", "-", 1)
	}
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// Version is the product/version/CPE identification a template can emit,
// with $N placeholders substituted from a matcher/extractor's capture
// groups before being folded into a result.
type Version struct {
	ProductName     string
	Version         string
	Info            string
	Hostname        string
	OperatingSystem string
	DeviceType      string
	CPE             []string
}

// extractParameters scans s for "$" followed by digits and returns a map
// from the numeric index to the literal "$N" token, so Captures can
// substitute each occurrence via a plain string replace.
func extractParameters(s string) map[int]string {
	out := make(map[int]string)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
			j++
		}
		if j == i+1 {
			continue
		}
		token := string(runes[i:j])
		n, err := strconv.Atoi(string(runes[i+1 : j]))
		if err != nil {
			continue
		}
		out[n] = token
	}
	return out
}

func substitute(template string, get func(int) (string, bool)) string {
	result := template
	for n, token := range extractParameters(template) {
		v, ok := get(n)
		if !ok {
			continue
		}
		result = strings.ReplaceAll(result, token, v)
	}
	return result
}

// Captures renders this Version's fields against a capture-group lookup,
// returning only the fields that ended up non-empty. cpe entries are
// substituted independently then joined with commas.
func (v Version) Captures(get func(int) (string, bool)) map[string]string {
	out := make(map[string]string)
	set := func(key, tmpl string) {
		if tmpl == "" {
			return
		}
		if rendered := substitute(tmpl, get); rendered != "" {
			out[key] = rendered
		}
	}
	set("product_name", v.ProductName)
	set("version", v.Version)
	set("info", v.Info)
	set("hostname", v.Hostname)
	set("operating_system", v.OperatingSystem)
	set("device_type", v.DeviceType)
	if len(v.CPE) > 0 {
		parts := make([]string, 0, len(v.CPE))
		for _, c := range v.CPE {
			if rendered := substitute(c, get); rendered != "" {
				parts = append(parts, rendered)
			}
		}
		if len(parts) > 0 {
			out["cpe"] = strings.Join(parts, ",")
		}
	}
	return out
}

// CSE bundles the cyberspace-search-engine query strings a template can
// carry for the handful of engines observer-ward knows about.
type CSE struct {
	Zoomeye value.StringList
	Hunter  value.StringList
	Shodan  value.StringList
	Fofa    value.StringList
	Google  value.StringList
}

// orAndSplit splits a query string on doubled "&&"/"||" boundaries only --
// a single stray "&" or "|" inside a term is left alone -- and trims
// whitespace from each resulting clause.
func orAndSplit(query string) []string {
	replaced := strings.NewReplacer("&&", "\x00", "||", "\x00").Replace(query)
	parts := strings.Split(replaced, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeKeyword(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.ToLower(s)
}

// ToMatchers synthesizes up to three Matchers from a CSE's query strings:
// a Word matcher from shodan "k:v"/fofa "k=v" keyword pairs, a Favicon
// matcher from any hash-looking values, and a Regex matcher matching page
// titles for title-routed clauses that weren't already captured as
// keywords.
func (c CSE) ToMatchers() []Matcher {
	keywords := make(map[string]struct{})
	favicons := make(map[string]struct{})
	titles := make(map[string]struct{})

	collectKV := func(queries []string, sep string) {
		for _, q := range queries {
			for _, clause := range orAndSplit(q) {
				k, v, ok := strings.Cut(clause, sep)
				if !ok {
					continue
				}
				k = strings.ToLower(strings.TrimSpace(k))
				v = normalizeKeyword(v)
				switch k {
				case "icon_hash", "iconhash":
					favicons[v] = struct{}{}
				case "title":
					titles[v] = struct{}{}
				default:
					if v != "" {
						keywords[v] = struct{}{}
					}
				}
			}
		}
	}
	collectKV(c.Shodan, ":")
	collectKV(c.Fofa, "=")
	collectKV(c.Zoomeye, "=")
	collectKV(c.Hunter, "=")

	var matchers []Matcher
	if len(keywords) > 0 {
		words := sortedKeys(keywords)
		matchers = append(matchers, Matcher{
			MatcherType: Word{Words: words},
			Condition:   ConditionOr,
		})
	}
	if len(favicons) > 0 {
		hashes := sortedKeys(favicons)
		matchers = append(matchers, Matcher{
			MatcherType: Favicon{Hash: hashes},
			Condition:   ConditionOr,
		})
	}
	var titlePatterns []string
	for t := range titles {
		if _, already := keywords[t]; already {
			continue
		}
		titlePatterns = append(titlePatterns, t)
	}
	sort.Strings(titlePatterns)
	if len(titlePatterns) > 0 {
		regexes := make([]string, 0, len(titlePatterns))
		for _, t := range titlePatterns {
			regexes = append(regexes, `(?i)<title[^>]*>`+t+`.*?</title>`)
		}
		matchers = append(matchers, Matcher{
			MatcherType: MRegex{Regex: regexes},
			Condition:   ConditionOr,
		})
	}
	return matchers
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Info is the per-template metadata block: free-form key/value pairs plus
// the accessors that know how to assemble a Version, VPF, CSE, rarity, or
// severity out of the conventional keys.
type Info struct {
	Name           string
	Author         value.StringList
	Tags           value.StringList
	Description    string
	Reference      value.StringList
	Severity       Severity
	Classification *Classification
	Metadata       map[string]value.Value
}

func (info *Info) ensureMetadata() map[string]value.Value {
	if info.Metadata == nil {
		info.Metadata = make(map[string]value.Value)
	}
	return info.Metadata
}

func (info Info) metaString(key string) (string, bool) {
	v, ok := info.Metadata[key]
	if !ok {
		return "", false
	}
	s := v.String()
	return s, s != ""
}

// GetVersion builds a Version from whichever of the conventional metadata
// keys are present. ok is false if none of them were set.
func (info Info) GetVersion() (Version, bool) {
	var v Version
	var found bool
	if s, ok := info.metaString("product_name"); ok {
		v.ProductName = s
		found = true
	}
	if s, ok := info.metaString("version"); ok {
		v.Version = s
		found = true
	}
	if s, ok := info.metaString("info"); ok {
		v.Info = s
		found = true
	}
	if s, ok := info.metaString("hostname"); ok {
		v.Hostname = s
		found = true
	}
	if s, ok := info.metaString("operating_system"); ok {
		v.OperatingSystem = s
		found = true
	}
	if s, ok := info.metaString("device_type"); ok {
		v.DeviceType = s
		found = true
	}
	if s, ok := info.metaString("cpe"); ok {
		v.CPE = []string{s}
		found = true
	}
	return v, found
}

// GetVPF requires both "product" and "vendor" metadata keys; framework is
// optional and verified reflects a boolean "verified" metadata value.
func (info Info) GetVPF() (VPF, bool) {
	product, okP := info.metaString("product")
	vendor, okV := info.metaString("vendor")
	if !okP || !okV {
		return VPF{}, false
	}
	vpf := VPF{
		Product: normalizeVPFPart(product),
		Vendor:  normalizeVPFPart(vendor),
	}
	if framework, ok := info.metaString("framework"); ok {
		vpf.Framework = normalizeVPFPart(framework)
	}
	if verified, ok := info.Metadata["verified"]; ok {
		vpf.Verified = verified.Kind() == value.KindBool && verified.String() == "true"
	}
	return vpf, true
}

// SetVPF writes vpf back into metadata. The written "verified" flag is
// derived from whether the vendor resolved away from the unknown
// sentinel, not from vpf.Verified -- this matches the behavior of the
// engine this was ported from.
func (info *Info) SetVPF(vpf VPF) {
	m := info.ensureMetadata()
	m["product"] = value.String(vpf.Product)
	m["vendor"] = value.String(vpf.Vendor)
	if vpf.Framework != "" {
		m["framework"] = value.String(vpf.Framework)
	}
	m["verified"] = value.Bool(vpf.Vendor != unknownVPF)
}

// GetRarity reads the "rarity" metadata key, used to prioritize which
// clustered probe to try first.
func (info Info) GetRarity() (uint8, bool) {
	v, ok := info.Metadata["rarity"]
	if !ok || v.Kind() != value.KindNum {
		return 0, false
	}
	n, err := strconv.ParseUint(v.String(), 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(n), true
}

// GetCSE builds a CSE from whichever of the five *-query metadata keys
// are present.
func (info Info) GetCSE() (CSE, bool) {
	var cse CSE
	var found bool
	get := func(key string) value.StringList {
		v, ok := info.Metadata[key]
		if !ok {
			return nil
		}
		found = true
		return value.StringList(v.ToSlice())
	}
	cse.Zoomeye = get("zoomeye-query")
	cse.Fofa = get("fofa-query")
	cse.Hunter = get("hunter-query")
	cse.Shodan = get("shodan-query")
	cse.Google = get("google-query")
	return cse, found
}

// SetCSE writes cse's non-empty query lists back into metadata.
func (info *Info) SetCSE(cse CSE) {
	m := info.ensureMetadata()
	write := func(key string, list value.StringList) {
		if len(list) == 0 {
			return
		}
		items := make([]value.Value, len(list))
		for i, s := range list {
			items[i] = value.String(s)
		}
		m[key] = value.List(items)
	}
	write("zoomeye-query", cse.Zoomeye)
	write("fofa-query", cse.Fofa)
	write("hunter-query", cse.Hunter)
	write("shodan-query", cse.Shodan)
	write("google-query", cse.Google)
}
