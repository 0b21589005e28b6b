// Package cluster groups compiled templates that issue the same probe
// into a single ClusterExecute so the scan loop sends one request and
// evaluates every template's operators against its single response,
// instead of re-requesting the same URL or port once per template.
package cluster

import (
	"sort"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// ClusteredOperator pairs one template's id/info with the operator bags
// every one of its requests carries, already stripped down to the single
// shared probe the owning ClusterExecute issues.
type ClusteredOperator struct {
	TemplateID string
	Info       template.Info
	Operators  []*template.Operators
}

func newClusteredOperator(t *template.Template) *ClusteredOperator {
	return &ClusteredOperator{
		TemplateID: templateName(t.ID),
		Info:       t.Info,
		Operators:  t.Requests.Operators(),
	}
}

// templateName strips the ":<hash>" suffix some corpus ids carry, the
// same split the reference engine uses before using an id as a result
// key.
func templateName(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			return id[:i]
		}
	}
	return id
}

// Execute is one probe and the set of clustered templates evaluated
// against its response.
type Execute struct {
	Requests  template.Requests
	Rarity    uint8
	Operators []*ClusteredOperator
}

// Type buckets every cluster by the kind of round trip it needs: the web
// home page, the dedicated favicon sweep, every other HTTP path, the
// default TCP banner grab, and every other named TCP probe (keyed by
// name, alongside its optional port restriction).
type Type struct {
	WebDefault []*Execute
	WebFavicon []*Execute
	WebOther   []*Execute
	TCPDefault *Execute
	TCPOther   map[string]*Execute
	PortRange  map[string]*template.PortRange
}

// Count returns the total number of distinct probes this Type will issue.
func (t *Type) Count() int {
	n := len(t.WebDefault) + len(t.WebOther) + len(t.WebFavicon) + len(t.TCPOther)
	if t.TCPDefault != nil {
		n++
	}
	return n
}

// Build compiles every template and groups them into a Type, the probe
// plan a target's scan loop walks bucket by bucket. Templates with an
// invalid regex are kept: the bad pattern simply never matches when it is
// lazily compiled at evaluation time. Templates whose only matchers
// are Favicon matchers are pulled out of the ordinary buckets entirely
// and folded into a single WebFavicon cluster evaluated against whatever
// favicon hashes the scan loop discovers.
func Build(templates []template.Template) *Type {
	var compiled []*template.Template
	var faviconOps []*ClusteredOperator

	for i := range templates {
		t := templates[i]
		t.Compile()
		fav, hadFavicon := t.ExtractFavicon()
		if !allOperatorsEmpty(t.Requests) {
			compiled = append(compiled, &t)
		}
		if hadFavicon {
			faviconOps = append(faviconOps, newClusteredOperator(&fav))
		}
	}

	result := &Type{
		TCPOther:  make(map[string]*Execute),
		PortRange: make(map[string]*template.PortRange),
	}

	for _, group := range group(compiled) {
		if len(group) == 0 {
			continue
		}
		requests := group[0].Requests
		info := group[0].Info
		ops := make([]*ClusteredOperator, 0, len(group))
		for _, t := range group {
			ops = append(ops, newClusteredOperator(t))
		}
		rarity, _ := info.GetRarity()
		execute := &Execute{Requests: requests, Rarity: rarity, Operators: ops}

		switch {
		case requests.IsWebDefault():
			result.WebDefault = append(result.WebDefault, execute)
		case len(requests.HTTP) > 0:
			result.WebOther = append(result.WebOther, execute)
		case requests.IsTCPDefault():
			result.TCPDefault = execute
		case len(requests.TCP) > 0:
			tcp := requests.TCP[0]
			result.TCPOther[tcp.Name] = execute
			result.PortRange[tcp.Name] = tcp.Port
		}
	}

	if len(faviconOps) > 0 {
		result.WebFavicon = append(result.WebFavicon, &Execute{Operators: faviconOps})
	}
	if len(result.WebDefault) == 0 && len(result.WebFavicon) > 0 {
		result.WebDefault = append(result.WebDefault, &Execute{Requests: template.DefaultWebIndex()})
	}

	sortByRarity(result.WebDefault)
	sortByRarity(result.WebOther)

	return result
}

func allOperatorsEmpty(r template.Requests) bool {
	for _, op := range r.Operators() {
		if !op.IsEmpty() {
			return false
		}
	}
	return true
}

// group clusters single-request templates with CanCluster-compatible
// neighbors into one bucket, and puts every multi-request template in a
// bucket of its own; it never merges two templates that each carry more
// than one probe, since there is no single shared request to cluster on.
func group(list []*template.Template) [][]*template.Template {
	var all [][]*template.Template
	skip := make(map[string]struct{})

	for _, t := range list {
		if _, already := skip[t.ID]; already {
			continue
		}
		skip[t.ID] = struct{}{}

		if len(t.Requests.HTTP) != 1 && len(t.Requests.TCP) != 1 {
			all = append(all, []*template.Template{t})
			continue
		}

		var bucket []*template.Template
		for _, other := range list {
			if _, already := skip[other.ID]; already {
				continue
			}
			if t.Requests.CanCluster(other.Requests) {
				skip[other.ID] = struct{}{}
				bucket = append(bucket, other)
			}
		}
		if len(bucket) == 0 {
			all = append(all, []*template.Template{t})
			continue
		}
		bucket = append(bucket, t)
		all = append(all, bucket)
	}
	return all
}

func sortByRarity(executes []*Execute) {
	sort.SliceStable(executes, func(i, j int) bool {
		return executes[i].Rarity > executes[j].Rarity
	})
}
