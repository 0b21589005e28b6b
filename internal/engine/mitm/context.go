package mitm

import (
	"net/http"
	"path"
	"strings"
)

// Headers is a case-insensitive view over a message's header set, backed
// by the canonical net/http representation so lookups stay O(1) without
// a second map.
type Headers struct {
	http.Header
}

// NewHeaders wraps h for case-insensitive Get/Set/Remove.
func NewHeaders(h http.Header) Headers {
	if h == nil {
		h = http.Header{}
	}
	return Headers{h}
}

// Get returns name's first value, case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	v := h.Header.Get(name)
	return v, v != ""
}

// Set overwrites name's value, case-insensitively.
func (h Headers) Set(name, value string) { h.Header.Set(name, value) }

// Remove deletes name, case-insensitively.
func (h Headers) Remove(name string) { h.Header.Del(name) }

// RequestContext is the pre-extracted view of an intercepted request that
// a RuleMatcher evaluates matchers against.
type RequestContext struct {
	Destination string
	Source      string
	Protocol    string
	Method      string
	URL         string
	Path        string
	Extension   string
	Headers     Headers
	Body        []byte
}

// NewRequestContext builds a RequestContext from an intercepted request's
// fields, deriving Path and Extension from the URL the way the proxy's
// own request line carries them.
func NewRequestContext(destination, source, protocol, method, rawURL string, headers http.Header, body []byte) *RequestContext {
	ctx := &RequestContext{
		Destination: destination,
		Source:      source,
		Protocol:    protocol,
		Method:      method,
		URL:         rawURL,
		Headers:     NewHeaders(headers),
		Body:        body,
	}
	ctx.Path = pathOf(rawURL)
	ctx.Extension = strings.TrimPrefix(path.Ext(ctx.Path), ".")
	return ctx
}

func pathOf(rawURL string) string {
	p := rawURL
	if idx := strings.Index(p, "://"); idx >= 0 {
		p = p[idx+3:]
		if slash := strings.Index(p, "/"); slash >= 0 {
			p = p[slash:]
		} else {
			p = "/"
		}
	}
	if q := strings.IndexByte(p, '?'); q >= 0 {
		p = p[:q]
	}
	return p
}

// ResponseContext is the pre-extracted view of an intercepted response
// that a RuleMatcher evaluates matchers against.
type ResponseContext struct {
	Request    *RequestContext
	StatusCode int
	Headers    Headers
	Body       []byte
}

// NewResponseContext builds a ResponseContext, carrying the originating
// request context forward so matchers that target request-scoped fields
// (domain, path, method) work on response rules too.
func NewResponseContext(req *RequestContext, statusCode int, headers http.Header, body []byte) *ResponseContext {
	return &ResponseContext{Request: req, StatusCode: statusCode, Headers: NewHeaders(headers), Body: body}
}
