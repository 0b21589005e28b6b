package fingerprint

import (
	"context"
	"net/url"

	httpclient "github.com/emo-crab/observer-ward-sub000/internal/pkg/httpclient"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/favicon"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/probe"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/webmeta"
)

// maxHostRedirectHops bounds how many meta/JS redirect hops host_redirects
// follows, matching the reference engine's js_redirect client policy --
// a hard stop well short of a redirect loop rather than a per-template
// configurable count.
const maxHostRedirectHops = 10

// httpRecord is the per-target state accumulated across every HTTP
// cluster: the canonical index response (the first response observed at
// the target's root path), every favicon hash discovered so far, and
// which favicon URLs have already been fetched so a later cluster never
// re-fetches one.
type httpRecord struct {
	index   *probe.Response
	favicons map[string]favicon.Hash
	fetched  map[string]struct{}
}

func newHTTPRecord() *httpRecord {
	return &httpRecord{favicons: make(map[string]favicon.Hash), fetched: make(map[string]struct{})}
}

// toOperatorFaviconHashes renders the accumulated favicon map into the
// (md5, mmh3)-pair form a Favicon matcher checks against.
func toOperatorFaviconHashes(hashes map[string]favicon.Hash) template.FaviconHashes {
	out := make(template.FaviconHashes, len(hashes))
	for uri, h := range hashes {
		out[uri] = []string{h.MD5, h.MMH3}
	}
	return out
}

// canonicalOrigin keys a MatchedResult by scheme+host+path, dropping the
// query string so two requests to the same page with different query
// parameters fold into a single result.
func canonicalOrigin(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	clean.Fragment = ""
	return clean.String()
}

func resultFor(results map[string]*MatchedResult, key string) *MatchedResult {
	r, ok := results[key]
	if !ok {
		r = NewMatchedResult()
		results[key] = r
	}
	return r
}

func isIndexPath(u, base *url.URL) bool {
	if u == nil || base == nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return p == "/" || p == base.Path
}

// runHTTP executes the HTTP flow: web_default then web_other clusters in
// definition order, then web_favicon matched against whatever favicon
// hashes were accumulated along the way. Network failure on the very
// first request of the very first cluster aborts the whole flow -- the
// target is treated as unreachable.
func (s *Scanner) runHTTP(ctx context.Context, base *url.URL, clusters *cluster.Type) (map[string]*MatchedResult, error) {
	record := newHTTPRecord()
	results := make(map[string]*MatchedResult)

	buckets := make([]*cluster.Execute, 0, len(clusters.WebDefault)+len(clusters.WebOther))
	buckets = append(buckets, clusters.WebDefault...)
	buckets = append(buckets, clusters.WebOther...)

	for i, execute := range buckets {
		if err := s.runHTTPCluster(ctx, base, execute, record, results); err != nil {
			if i == 0 {
				return nil, err
			}
			continue
		}
	}

	if len(clusters.WebFavicon) > 0 && record.index != nil {
		originKey := canonicalOrigin(record.index.URL)
		result := resultFor(results, originKey)
		status := record.index.StatusCode
		hashes := toOperatorFaviconHashes(record.favicons)
		for _, op := range clusters.WebFavicon[0].Operators {
			for _, opSet := range op.Operators {
				event := NewMatchEvent(originKey, record.index)
				opResult := template.NewOperatorResult()
				template.Match(opSet, record.index, &status, hashes, opResult)
				event.Push(op.TemplateID, op.Info, opResult)
				result.Fold(event, "", status)
			}
		}
	}

	return results, nil
}

// runHTTPCluster issues every HTTP request in execute's prototype against
// base and evaluates each clustered template's corresponding operator set
// against the response it produced.
func (s *Scanner) runHTTPCluster(ctx context.Context, base *url.URL, execute *cluster.Execute, record *httpRecord, results map[string]*MatchedResult) error {
	for reqIdx, req := range execute.Requests.HTTP {
		if req.HttpRaw.Path == nil {
			continue
		}
		client := probe.NewClient(req.HttpOption, s.options.Timeout, s.options.UserAgent, s.options.ProxyURL)
		resp, err := probe.HTTP(ctx, client, base, *req.HttpRaw.Path, s.options.MaxBodySize)
		if err != nil {
			return err
		}

		s.enrichResponse(ctx, client, base, resp, record)
		matched := s.evaluateHTTPResponse(resp, execute, reqIdx, record, results)

		if req.HttpOption.Redirects && req.HttpOption.HostRedirects {
			if s.followHostRedirects(ctx, client, resp, execute, reqIdx, record, results) {
				matched = true
			}
		}

		if matched && req.StopAtFirstMatch {
			break
		}
	}
	return nil
}

// evaluateHTTPResponse runs execute's operator set for reqIdx against resp
// and folds the outcome into results under resp.URL's canonical origin.
func (s *Scanner) evaluateHTTPResponse(resp *probe.Response, execute *cluster.Execute, reqIdx int, record *httpRecord, results map[string]*MatchedResult) bool {
	title := webmeta.ExtractTitle(string(resp.Body))
	originKey := canonicalOrigin(resp.URL)
	result := resultFor(results, originKey)
	hashes := toOperatorFaviconHashes(record.favicons)
	matched := false

	for _, op := range execute.Operators {
		if reqIdx >= len(op.Operators) {
			continue
		}
		opSet := op.Operators[reqIdx]
		event := NewMatchEvent(originKey, resp)
		opResult := template.NewOperatorResult()
		status := resp.StatusCode
		template.Match(opSet, resp, &status, hashes, opResult)
		version, _ := op.Info.GetVersion()
		template.Extract(opSet, &version, resp, opResult)
		event.Push(op.TemplateID, op.Info, opResult)
		if !event.IsEmpty() {
			matched = true
		}
		result.Fold(event, title, resp.StatusCode)
	}
	return matched
}

// followHostRedirects walks the meta-refresh/JS redirect chain webmeta
// detects in resp's body, re-fetching and re-evaluating each destination
// in turn and folding it into its own canonical-origin result. This is
// the host_redirects behavior: the reference engine installs a custom
// js_redirect client policy that transparently follows these
// client-side redirects the same way it follows a Location header; a Go
// http.Client has no hook for a non-HTTP redirect, so the chain is
// walked explicitly here instead. Stops at the first already-visited URL
// or once maxHostRedirectHops hops have run.
func (s *Scanner) followHostRedirects(ctx context.Context, client *httpclient.Client, resp *probe.Response, execute *cluster.Execute, reqIdx int, record *httpRecord, results map[string]*MatchedResult) bool {
	visited := map[string]struct{}{canonicalOrigin(resp.URL): {}}
	matched := false
	current := resp

	for i := 0; i < maxHostRedirectHops; i++ {
		dest := webmeta.ExtractRedirect(string(current.Body), current.URL)
		if dest == "" {
			break
		}
		if _, seen := visited[dest]; seen {
			break
		}
		visited[dest] = struct{}{}

		destURL, err := url.Parse(dest)
		if err != nil {
			break
		}
		next, err := probe.HTTP(ctx, client, destURL, template.Http{Method: "GET", Path: []string{dest}}, s.options.MaxBodySize)
		if err != nil {
			break
		}

		s.enrichResponse(ctx, client, destURL, next, record)
		if s.evaluateHTTPResponse(next, execute, reqIdx, record, results) {
			matched = true
		}
		current = next
	}
	return matched
}

// enrichResponse records resp as the canonical index (if none is recorded
// yet and resp was fetched from the target's root path) and, for an
// index-like response, discovers and fetches every favicon candidate not
// already seen this scan.
func (s *Scanner) enrichResponse(ctx context.Context, client favicon.Fetcher, base *url.URL, resp *probe.Response, record *httpRecord) {
	indexLike := isIndexPath(resp.URL, base)
	if indexLike && record.index == nil {
		record.index = resp
	}
	if !indexLike {
		return
	}
	for _, link := range favicon.Links(bodyAsString(resp.Body), resp.URL) {
		if _, seen := record.fetched[link]; seen {
			continue
		}
		record.fetched[link] = struct{}{}
		if hash, ok := favicon.Fetch(ctx, client, link); ok {
			record.favicons[link] = hash
		}
	}
}

func bodyAsString(b []byte) string {
	if b == nil {
		return ""
	}
	return string(b)
}
