package fingerprint

import (
	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/probe"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// EvaluatePassive runs the restricted cluster subset -- web_default,
// web_other, web_favicon -- against one already-captured response instead
// of issuing the probe itself. This is the path the passive MITM proxy
// uses for traffic it did not generate: there is exactly one response per
// call, so only each cluster's first prototype request's operator set is
// evaluated, matching the index-page semantics those clusters are built
// around.
func EvaluatePassive(clusters *cluster.Type, resp *probe.Response, title string, hashes template.FaviconHashes) *MatchedResult {
	result := NewMatchedResult()
	originKey := canonicalOrigin(resp.URL)
	status := resp.StatusCode

	evalBucket := func(execute *cluster.Execute) {
		for _, op := range execute.Operators {
			if len(op.Operators) == 0 {
				continue
			}
			opSet := op.Operators[0]
			event := NewMatchEvent(originKey, resp)
			opResult := template.NewOperatorResult()
			template.Match(opSet, resp, &status, hashes, opResult)
			version, _ := op.Info.GetVersion()
			template.Extract(opSet, &version, resp, opResult)
			event.Push(op.TemplateID, op.Info, opResult)
			result.Fold(event, title, resp.StatusCode)
		}
	}

	for _, e := range clusters.WebDefault {
		evalBucket(e)
	}
	for _, e := range clusters.WebOther {
		evalBucket(e)
	}
	for _, e := range clusters.WebFavicon {
		evalBucket(e)
	}

	return result
}
