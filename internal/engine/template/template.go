package template

// Template is a single fingerprint rule: an identity probe (or several)
// plus the matchers/extractors that decide whether a response confirms
// it.
type Template struct {
	ID               string
	Info             Info
	Flow             string
	Requests         Requests
	SelfContained    bool
	StopAtFirstMatch bool
	Variables        map[string]string
}

// Compile precompiles every request's operators (regex patterns, word
// case-folding) once, up front, so matching never pays compile cost per
// target.
func (t *Template) Compile() {
	for i := range t.Requests.HTTP {
		t.Requests.HTTP[i].Operators.compile()
	}
	for i := range t.Requests.TCP {
		t.Requests.TCP[i].Operators.compile()
	}
}

// ExtractFavicon pulls every favicon.ico path and Favicon matcher out of
// this template into a standalone clone, leaving the original template
// with only its non-favicon probes and matchers. Returns ok=false if the
// template carried no favicon matchers.
func (t *Template) ExtractFavicon() (Template, bool) {
	clone := *t
	clone.Requests.HTTP = append([]HTTPRequest(nil), t.Requests.HTTP...)
	found := false

	for i := range t.Requests.HTTP {
		req := &t.Requests.HTTP[i]
		cloneReq := clone.Requests.HTTP[i]

		if req.HttpRaw.Path != nil {
			var keptPaths, faviconPaths []string
			for _, p := range req.HttpRaw.Path.Path {
				if hasSuffixFold(p, "favicon.ico") {
					faviconPaths = append(faviconPaths, p)
				} else {
					keptPaths = append(keptPaths, p)
				}
			}
			if len(faviconPaths) > 0 {
				clonedPath := *req.HttpRaw.Path
				clonedPath.Path = faviconPaths
				cloneReq.HttpRaw.Path = &clonedPath
				req.HttpRaw.Path.Path = keptPaths
			}
		}

		var keptMatchers, faviconMatchers []*Matcher
		for _, m := range req.Operators.Matchers {
			if _, isFavicon := m.MatcherType.(Favicon); isFavicon {
				faviconMatchers = append(faviconMatchers, m)
			} else {
				keptMatchers = append(keptMatchers, m)
			}
		}
		if len(faviconMatchers) > 0 {
			found = true
			req.Operators.Matchers = keptMatchers
			cloneReq.Operators = Operators{Matchers: faviconMatchers}
		}
		clone.Requests.HTTP[i] = cloneReq
	}

	if !found {
		return Template{}, false
	}
	return clone, true
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return s[len(s)-len(suffix):] == suffix
}
