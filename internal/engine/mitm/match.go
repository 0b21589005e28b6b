package mitm

import (
	"net"
	"net/url"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// MatchResult is the outcome of evaluating a RuleMatcher against one
// message: either nothing matched, or the first rule (in declaration
// order) that did, along with the action and replacements to apply.
type MatchResult struct {
	Matched      bool
	RuleName     string
	Action       Action
	Replacements []Replacement
}

// RuleMatcher evaluates an ordered list of interception rules against
// request and response contexts, returning the first rule whose matcher
// set is satisfied.
type RuleMatcher struct {
	rules []*Request
}

// NewRuleMatcher compiles rules (precompiling every regex they carry) and
// returns a matcher ready to evaluate traffic.
func NewRuleMatcher(rules []*Request) *RuleMatcher {
	for _, r := range rules {
		r.Compile()
	}
	return &RuleMatcher{rules: rules}
}

// MatchRequest evaluates every rule against ctx, in declaration order,
// returning the first one whose matcher set is satisfied.
func (rm *RuleMatcher) MatchRequest(ctx *RequestContext) MatchResult {
	for _, rule := range rm.rules {
		if ruleMatchesRequest(rule, ctx) {
			return MatchResult{Matched: true, RuleName: rule.Name, Action: rule.Action, Replacements: rule.Replacements}
		}
	}
	return MatchResult{}
}

// MatchResponse evaluates every rule against ctx, in declaration order,
// returning the first one whose matcher set is satisfied.
func (rm *RuleMatcher) MatchResponse(ctx *ResponseContext) MatchResult {
	for _, rule := range rm.rules {
		if ruleMatchesResponse(rule, ctx) {
			return MatchResult{Matched: true, RuleName: rule.Name, Action: rule.Action, Replacements: rule.Replacements}
		}
	}
	return MatchResult{}
}

func ruleMatchesRequest(rule *Request, ctx *RequestContext) bool {
	return foldMatchers(rule.Matchers, rule.Condition, func(m *Matcher) bool {
		return evalRequestMatcher(m, ctx)
	})
}

func ruleMatchesResponse(rule *Request, ctx *ResponseContext) bool {
	return foldMatchers(rule.Matchers, rule.Condition, func(m *Matcher) bool {
		return evalResponseMatcher(m, ctx)
	})
}

func foldMatchers(matchers []*Matcher, cond template.Condition, eval func(*Matcher) bool) bool {
	if len(matchers) == 0 {
		return false
	}
	if cond == template.ConditionAnd {
		for _, m := range matchers {
			if !eval(m) {
				return false
			}
		}
		return true
	}
	for _, m := range matchers {
		if eval(m) {
			return true
		}
	}
	return false
}

// evalRequestMatcher dispatches a matcher's target to the corresponding
// request field and applies the matcher's comparison to it. A target that
// makes no sense for a request (a response-only field) never matches.
func evalRequestMatcher(m *Matcher, ctx *RequestContext) bool {
	if m.Target == TargetStatusCode {
		return false
	}
	value, ok := requestFieldValue(m, ctx)
	if !ok {
		return false
	}
	return m.Matches(value)
}

// evalResponseMatcher dispatches a matcher's target to the corresponding
// response field, falling back to the originating request's fields for
// targets that describe the request side of the exchange (domain, path,
// method, and so on), matching the proxy's convention that response rules
// can still filter on how the request got there.
func evalResponseMatcher(m *Matcher, ctx *ResponseContext) bool {
	if m.Target == TargetStatusCode {
		return m.MatchesStatus(ctx.StatusCode)
	}
	if m.Target == TargetResponseHeader {
		v, ok := ctx.Headers.Get(m.HeaderName)
		if !ok {
			return false
		}
		return m.Matches(v)
	}
	if m.Target == TargetResponseBody {
		return m.Matches(string(ctx.Body))
	}
	if m.Target == TargetHeader {
		if v, ok := ctx.Headers.Get(m.HeaderName); ok {
			return m.Matches(v)
		}
		if ctx.Request != nil {
			if v, ok := ctx.Request.Headers.Get(m.HeaderName); ok {
				return m.Matches(v)
			}
		}
		return false
	}
	if ctx.Request == nil {
		return false
	}
	value, ok := requestFieldValue(m, ctx.Request)
	if !ok {
		return false
	}
	return m.Matches(value)
}

func requestFieldValue(m *Matcher, ctx *RequestContext) (string, bool) {
	switch m.Target {
	case TargetDomain:
		return hostOf(ctx.Destination), true
	case TargetIP:
		return ipOf(ctx.Destination), true
	case TargetProtocol:
		return ctx.Protocol, true
	case TargetURL:
		return ctx.URL, true
	case TargetPath:
		return ctx.Path, true
	case TargetExtension:
		return ctx.Extension, true
	case TargetMethod:
		return ctx.Method, true
	case TargetRequestHeader:
		return ctx.Headers.Get(m.HeaderName)
	case TargetRequestBody:
		return string(ctx.Body), true
	case TargetHeader:
		return ctx.Headers.Get(m.HeaderName)
	default:
		return "", false
	}
}

func hostOf(destination string) string {
	if host, _, err := net.SplitHostPort(destination); err == nil {
		return host
	}
	if u, err := url.Parse(destination); err == nil && u.Host != "" {
		if host, _, err := net.SplitHostPort(u.Hostname()); err == nil {
			return host
		}
		return u.Hostname()
	}
	return destination
}

func ipOf(destination string) string {
	host := hostOf(destination)
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}
