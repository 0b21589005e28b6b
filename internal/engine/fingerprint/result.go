// Package fingerprint is the scan orchestrator: for one target, it walks a
// clustered template set in bucket order, issues probes, evaluates
// operators against each response, and folds the outcome into a
// per-matched-at-URI MatchedResult.
package fingerprint

import (
	"github.com/emo-crab/observer-ward-sub000/internal/engine/probe"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// MatcherResult is one matched or extracting template's contribution to a
// MatchEvent.
type MatcherResult struct {
	Template    string
	Info        template.Info
	MatcherName []string
	Extractor   map[string]map[string]struct{}
}

// MatchEvent accumulates every MatcherResult produced while evaluating one
// response's cluster against a target, alongside the URI that produced it
// and (unless later stripped) the request/response record.
type MatchEvent struct {
	MatchedAt      string
	MatcherResults []MatcherResult
	Response       *probe.Response
}

// NewMatchEvent starts an accumulator for a response observed at
// matchedAt.
func NewMatchEvent(matchedAt string, response *probe.Response) *MatchEvent {
	return &MatchEvent{MatchedAt: matchedAt, Response: response}
}

// Push folds one template's operator outcome into this event; outcomes
// that neither matched nor extracted anything are dropped.
func (e *MatchEvent) Push(templateID string, info template.Info, result *template.OperatorResult) {
	if !result.IsMatched() && !result.IsExtracted() {
		return
	}
	e.MatcherResults = append(e.MatcherResults, MatcherResult{
		Template:    templateID,
		Info:        info,
		MatcherName: result.MatcherWord(),
		Extractor:   result.ExtractResult,
	})
}

// IsEmpty reports whether anything was ever pushed into this event.
func (e *MatchEvent) IsEmpty() bool { return len(e.MatcherResults) == 0 }

// FingerprintResult is a MatchEvent once folded into a target's
// MatchedResult.
type FingerprintResult = MatchEvent

// MatchedResult is everything observed at one matched-at origin URL: page
// titles seen, the last-known status code, discovered favicon hashes, an
// opportunistic TLS certificate view, and every fingerprint that matched
// there.
type MatchedResult struct {
	Title        map[string]struct{}
	Status       int
	Favicon      map[string]FaviconHash
	Certificate  *probe.X509Certificate
	Fingerprints []FingerprintResult
}

// FaviconHash is the (md5, mmh3) pair recorded per favicon source URL.
type FaviconHash struct {
	MD5  string
	MMH3 string
}

// NewMatchedResult returns an empty MatchedResult ready to be folded into.
func NewMatchedResult() *MatchedResult {
	return &MatchedResult{
		Title:   make(map[string]struct{}),
		Favicon: make(map[string]FaviconHash),
	}
}

// Fold merges event into this MatchedResult. status is overwritten on
// every fold until a title has been recorded, so it holds the status of
// the fold that first produced a title (titles tend to arrive after a
// redirect the first response didn't carry), or of the latest fold if none
// has.
// Templates that carry no explicit title extractor but whose extractor
// key equals their own template id are treated as emitting a title value,
// matching the title-less-HTML fallback convention.
func (r *MatchedResult) Fold(event *MatchEvent, title string, status int) {
	if len(r.Title) == 0 {
		r.Status = status
	}
	if title != "" {
		r.Title[title] = struct{}{}
	}
	if len(r.Title) == 0 {
		for _, mr := range event.MatcherResults {
			if values, ok := mr.Extractor[mr.Template]; ok {
				for v := range values {
					r.Title[v] = struct{}{}
				}
			}
		}
	}
	if event.IsEmpty() {
		return
	}
	r.Fingerprints = append(r.Fingerprints, *event)
}

// PostProcess applies the result-shaping config switches the orchestrator
// runs after a target's scan completes.
func PostProcess(results map[string]*MatchedResult, omitCertificate, omitRaw bool) {
	for _, r := range results {
		if omitCertificate {
			r.Certificate = nil
		}
		if omitRaw {
			for i := range r.Fingerprints {
				r.Fingerprints[i].Response = nil
			}
		}
	}
}
