package probe

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	httpclient "github.com/emo-crab/observer-ward-sub000/internal/pkg/httpclient"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// defaultAccept is the Accept header every path-form HTTP probe carries
// unless the template overrides it, matching a browser's baseline so
// content negotiation on the target behaves the way it would for a real
// visitor.
const defaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"

// HTTP executes one template.HTTPRequest's path-form request against base,
// returning a populated Response. raw-form requests (HttpRaw.Raw) are not
// executed here: {{Hostname}} placeholder resolution they rely on is out
// of scope, so callers skip requests that only carry a Raw form.
func HTTP(ctx context.Context, client *httpclient.Client, base *url.URL, req template.Http, maxSize int) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	path := "{{BaseURL}}/"
	if len(req.Path) > 0 {
		path = req.Path[0]
	}
	target := template.JoinPath(base, path)

	var body io.Reader
	if req.Body != "" {
		body = bytes.NewReader([]byte(req.Body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", defaultAccept)
	for name, v := range req.Headers {
		httpReq.Header.Set(name, unescapeHeaderValue(v.String()))
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := int64(maxSize)
	if limit <= 0 {
		limit = 10 << 20
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil && len(raw) == 0 {
		return nil, err
	}

	return &Response{
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        raw,
		TLS:         resp.TLS != nil,
		Certificate: certificateFrom(resp),
	}, nil
}

// NewClient builds the httpclient.Client a single HTTPRequest's HttpOption
// runs with. Each template invocation gets its own client so a
// disable_cookie or cookie-reuse setting never leaks across templates or
// targets, matching the cookie-jar lifetime the engine documents.
func NewClient(opt template.HttpOption, timeout time.Duration, userAgent string, proxyURL *url.URL) *httpclient.Client {
	options := opt.ClientOptions(timeout, userAgent)
	options.ProxyURL = proxyURL
	return httpclient.New(options)
}
