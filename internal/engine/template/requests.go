package template

// Requests is the disjoint union of request types a template can carry.
// Only http and tcp are implemented; the reference engine's headless/code
// request types are data-model stubs with no runtime behavior in an
// offline fingerprinting engine and are intentionally not ported.
type Requests struct {
	HTTP []HTTPRequest
	TCP  []TCPRequest
}

// CanCluster reports whether other's single request can be folded into
// the same probe bucket as this Requests' single request: either they
// share an explicit name, or (for HTTP) they have no name, identical
// HttpOption, no payload attack, and an identical path-form request body.
func (r Requests) CanCluster(other Requests) bool {
	if len(r.HTTP) == 1 && len(other.HTTP) == 1 {
		self, o := r.HTTP[0], other.HTTP[0]
		if self.Name != "" && o.Name != "" {
			return self.Name == o.Name
		}
		if self.Name != "" || o.Name != "" {
			return false
		}
		if self.HttpOption != o.HttpOption {
			return false
		}
		if self.PayloadAttack != nil || o.PayloadAttack != nil {
			return false
		}
		if self.HttpRaw.Path != nil && o.HttpRaw.Path != nil {
			return httpPathEqual(*self.HttpRaw.Path, *o.HttpRaw.Path)
		}
	}
	if len(r.TCP) == 1 && len(other.TCP) == 1 {
		self, o := r.TCP[0], other.TCP[0]
		if self.Name != "" && o.Name != "" {
			return self.Name == o.Name
		}
	}
	return false
}

func httpPathEqual(a, b Http) bool {
	if a.Method != b.Method || a.Body != b.Body || len(a.Path) != len(b.Path) {
		return false
	}
	for i := range a.Path {
		if a.Path[i] != b.Path[i] {
			return false
		}
	}
	return true
}

// IsWebDefault reports whether this Requests is the canonical home-page
// probe: a single GET-like request to "{{BaseURL}}/".
func (r Requests) IsWebDefault() bool {
	if len(r.HTTP) != 1 || r.HTTP[0].HttpRaw.Path == nil {
		return false
	}
	p := r.HTTP[0].HttpRaw.Path
	method := p.Method
	isSafe := method == "" || method == "GET" || method == "HEAD"
	return len(p.Path) == 1 && isSafe && p.Path[0] == "{{BaseURL}}/"
}

// IsWeb reports whether this Requests carries at least one HTTP request.
func (r Requests) IsWeb() (HTTPRequest, bool) {
	if len(r.HTTP) == 0 {
		return HTTPRequest{}, false
	}
	return r.HTTP[0], true
}

// IsTCP reports whether this Requests carries at least one TCP request.
func (r Requests) IsTCP() (TCPRequest, bool) {
	if len(r.TCP) == 0 {
		return TCPRequest{}, false
	}
	return r.TCP[0], true
}

// IsTCPDefault reports whether this Requests is the canonical banner-grab
// probe: a single TCP request explicitly named "null".
func (r Requests) IsTCPDefault() bool {
	return len(r.TCP) == 1 && r.TCP[0].Name == "null"
}

// Operators returns every request's Operators, in http-then-tcp order,
// the unit clustering groups and evaluates together.
func (r Requests) Operators() []*Operators {
	all := make([]*Operators, 0, len(r.HTTP)+len(r.TCP))
	for i := range r.HTTP {
		all = append(all, &r.HTTP[i].Operators)
	}
	for i := range r.TCP {
		all = append(all, &r.TCP[i].Operators)
	}
	return all
}

// DefaultWebIndex is the synthesized home-page request used when a
// favicon-only template has no other probe to piggyback on.
func DefaultWebIndex() Requests {
	return Requests{
		HTTP: []HTTPRequest{{
			HttpRaw: HttpRaw{Path: &Http{Path: []string{"{{BaseURL}}/"}}},
		}},
	}
}
