// Package proxy wires the declarative MITM rule engine and the clustered
// fingerprint matcher into a passive intercepting proxy: traffic it never
// originated still gets rewritten per rule and matched per template,
// without ever blocking the proxy's own data path.
//
// There is no forward-proxy/MITM library inside the teacher repo itself,
// so this package is grounded on github.com/elazarl/goproxy, the library
// the wider example pack's dependency manifests already pull in for this
// exact job.
package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/elazarl/goproxy"

	"github.com/emo-crab/observer-ward-sub000/internal/config"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/fingerprint"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/mitm"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/probe"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/progress"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/stream"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/webmeta"
)

// requestState is the goproxy.ProxyCtx.UserData value holding the
// mitm.RequestContext built for the current exchange, so the response
// interceptor can fall back to request-scoped matcher targets.
type requestState struct {
	ctx *mitm.RequestContext
}

// Server is the passive MITM proxy: a goproxy instance fronting the
// declarative rule engine and the restricted cluster evaluation path.
type Server struct {
	underlying *goproxy.ProxyHttpServer
	rules      *mitm.RuleMatcher
	clusters   *cluster.Type
	logger     *slog.Logger
	addr       string
}

// New builds a Server from the loaded MITM configuration, rule set, and
// clustered template set. The CA certificate/key pair is used to sign
// per-host leaf certificates for MITM'd TLS connections, following the
// same PEM-file convention the rest of the engine's config loading uses.
func New(cfg config.MITMConfig, rules []*mitm.Request, clusters *cluster.Type, logger *slog.Logger) (*Server, error) {
	ca, err := tls.LoadX509KeyPair(cfg.CAFile, cfg.CAKeyFile)
	if err != nil {
		return nil, err
	}
	goproxy.GoproxyCa = ca

	underlying := goproxy.NewProxyHttpServer()
	underlying.Verbose = false

	s := &Server{
		underlying: underlying,
		rules:      mitm.NewRuleMatcher(rules),
		clusters:   clusters,
		logger:     logger,
		addr:       cfg.ListenAddr,
	}

	underlying.OnRequest().HandleConnect(goproxy.AlwaysMitm)
	underlying.OnRequest().DoFunc(s.interceptRequest)
	underlying.OnResponse().DoFunc(s.interceptResponse)

	return s, nil
}

// ListenAndServe runs the proxy until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.underlying}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// interceptRequest applies the rule engine's request-side matchers:
// block short-circuits with a synthetic response, modify rewrites the
// request in place, allow (and no-match) pass the request through
// untouched. The request context built here is stashed for the response
// interceptor via ctx.UserData.
func (s *Server) interceptRequest(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	body, _ := readAndRestore(&req.Body)
	rc := mitm.NewRequestContext(req.Host, remoteAddr(req), schemeOf(req), req.Method, req.URL.String(), req.Header, body)
	ctx.UserData = &requestState{ctx: rc}

	result := s.rules.MatchRequest(rc)
	if !result.Matched {
		return req, nil
	}

	switch result.Action {
	case mitm.ActionBlock:
		return req, goproxy.NewResponse(req, goproxy.ContentTypeText, http.StatusForbidden, "blocked")
	case mitm.ActionModify:
		applyRequestReplacements(req, result.Replacements)
	}
	return req, nil
}

// interceptResponse applies the rule engine's response-side matchers,
// then spawns a detached goroutine to run the restricted cluster
// evaluation against a cloned copy of the body -- the proxy's own data
// path returns immediately with the (possibly rewritten) original
// response. A response rule with the block action instead returns a
// synthetic 403 and starts no background evaluation.
func (s *Server) interceptResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	if resp == nil {
		return resp
	}
	body, restored := readAndRestore(&resp.Body)
	resp.Body = restored

	var reqCtx *mitm.RequestContext
	if state, ok := ctx.UserData.(*requestState); ok {
		reqCtx = state.ctx
	}
	rc := mitm.NewResponseContext(reqCtx, resp.StatusCode, resp.Header, body)

	result := s.rules.MatchResponse(rc)
	if result.Matched {
		switch result.Action {
		case mitm.ActionBlock:
			return goproxy.NewResponse(resp.Request, goproxy.ContentTypeText, http.StatusForbidden, "blocked")
		case mitm.ActionModify:
			applyResponseReplacements(resp, result.Replacements)
		}
	}

	s.matchInBackground(ctx.Req.Context(), resp, append([]byte(nil), body...))
	return resp
}

// matchInBackground runs the restricted web_default/web_other/web_favicon
// evaluation against one intercepted response on its own goroutine and
// pushes the outcome onto whatever stream.Emitter and progress.Publisher
// are attached to ctx, mirroring the active scanner's reporting path.
func (s *Server) matchInBackground(ctx context.Context, resp *http.Response, body []byte) {
	go func() {
		probeResp := probe.FromHTTPResponse(resp, body)
		title := webmeta.ExtractTitle(string(body))
		result := fingerprint.EvaluatePassive(s.clusters, probeResp, title, template.FaviconHashes{})
		if result == nil || len(result.Fingerprints) == 0 {
			return
		}
		origin := ""
		if probeResp.URL != nil {
			origin = probeResp.URL.String()
		}
		progress.ReportMessage(ctx, progress.StageMatch, "passive match: "+origin)
		if err := stream.Emit(ctx, fingerprint.TargetResult{
			Target:  origin,
			Results: map[string]*fingerprint.MatchedResult{origin: result},
		}); err != nil && s.logger != nil {
			s.logger.Warn("passive match emit failed", "error", err)
		}
	}()
}

func readAndRestore(body *io.ReadCloser) ([]byte, io.ReadCloser) {
	if *body == nil {
		return nil, http.NoBody
	}
	data, _ := io.ReadAll(*body)
	_ = (*body).Close()
	return data, io.NopCloser(bytes.NewReader(data))
}

func remoteAddr(req *http.Request) string {
	if req.RemoteAddr != "" {
		return req.RemoteAddr
	}
	return req.Host
}

func schemeOf(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	if req.URL.Scheme != "" {
		return req.URL.Scheme
	}
	return "http"
}

func applyRequestReplacements(req *http.Request, replacements []mitm.Replacement) {
	for _, r := range replacements {
		switch r.Target {
		case mitm.ReplaceURL:
			if u, err := req.URL.Parse(r.Apply(req.URL.String())); err == nil {
				req.URL = u
			}
		case mitm.ReplacePath:
			req.URL.Path = r.Apply(req.URL.Path)
		case mitm.ReplaceQuery:
			req.URL.RawQuery = r.Apply(req.URL.RawQuery)
		case mitm.ReplaceMethod:
			req.Method = r.Apply(req.Method)
		case mitm.ReplaceRequestHeader:
			req.Header.Set(r.HeaderName, r.Apply(req.Header.Get(r.HeaderName)))
		case mitm.ReplaceRequestBody:
			body, restored := readAndRestore(&req.Body)
			rewritten := r.Apply(string(body))
			req.Body = restored
			req.Body = io.NopCloser(bytes.NewReader([]byte(rewritten)))
			req.ContentLength = int64(len(rewritten))
		}
	}
}

func applyResponseReplacements(resp *http.Response, replacements []mitm.Replacement) {
	for _, r := range replacements {
		switch r.Target {
		case mitm.ReplaceResponseHeader:
			resp.Header.Set(r.HeaderName, r.Apply(resp.Header.Get(r.HeaderName)))
		case mitm.ReplaceStatusCode:
			if code, err := strconv.Atoi(r.Apply(strconv.Itoa(resp.StatusCode))); err == nil {
				resp.StatusCode = code
			}
		case mitm.ReplaceResponseBody:
			body, _ := readAndRestore(&resp.Body)
			rewritten := r.Apply(string(body))
			resp.Body = io.NopCloser(bytes.NewReader([]byte(rewritten)))
			resp.ContentLength = int64(len(rewritten))
			resp.Header.Set("Content-Length", strconv.Itoa(len(rewritten)))
		}
	}
}
