package probe

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Response is the outcome of one HTTP probe, carrying everything a
// matcher/extractor/cluster walk needs: the decoded body, every response
// header, and the handful of transport-level facts (status, TLS presence,
// final URL after redirects) templates key off.
type Response struct {
	URL        *url.URL
	StatusCode int
	Headers    http.Header
	Body       []byte
	TLS        bool
	Title      string
	Certificate *X509Certificate
}

// HeaderBlock renders an "HTTP/1.1 <status>" line followed by every header
// as CRLF-joined "Name: value" lines, the same shape a matcher written
// against a raw response dump expects.
func (r *Response) HeaderBlock() string {
	var sb strings.Builder
	sb.WriteString("HTTP/1.1 ")
	sb.WriteString(strconv.Itoa(r.StatusCode))
	sb.WriteString("\r\n")
	for name, values := range r.Headers {
		for _, v := range values {
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\r\n")
		}
	}
	return sb.String()
}

func (r *Response) RawBody() []byte { return r.Body }

func (r *Response) HeaderValue(name string) (string, bool) {
	v := r.Headers.Get(name)
	if v == "" {
		if _, ok := r.Headers[http.CanonicalHeaderKey(name)]; !ok {
			return "", false
		}
	}
	return v, true
}

// X509Certificate is the small opportunistic view of the TLS peer
// certificate a template can match against (issuer/subject CN, SAN list).
// Populated on a best-effort basis; never required for a match to run.
type X509Certificate struct {
	Subject  string
	Issuer   string
	DNSNames []string
}

// certificateFrom extracts the leaf peer certificate from an HTTP
// response's TLS connection state, when present. A plaintext response or
// one whose handshake carried no peer certificate yields nil.
func certificateFrom(resp *http.Response) *X509Certificate {
	if resp.TLS == nil || len(resp.TLS.PeerCertificates) == 0 {
		return nil
	}
	leaf := resp.TLS.PeerCertificates[0]
	return &X509Certificate{
		Subject:  leaf.Subject.CommonName,
		Issuer:   leaf.Issuer.CommonName,
		DNSNames: leaf.DNSNames,
	}
}

// FromHTTPResponse adapts an already-read *http.Response (body already
// drained into body) into a probe Response, the shape a passive MITM
// interceptor uses since it never issues the request itself.
func FromHTTPResponse(resp *http.Response, body []byte) *Response {
	r := &Response{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        body,
		TLS:         resp.TLS != nil,
		Certificate: certificateFrom(resp),
	}
	if resp.Request != nil {
		r.URL = resp.Request.URL
	}
	return r
}

// TCPResponse is the outcome of a TCP probe: the bytes read back from the
// conversation's final input step.
type TCPResponse struct {
	Data []byte
}

func (r *TCPResponse) HeaderBlock() string { return "" }
func (r *TCPResponse) RawBody() []byte     { return r.Data }
func (r *TCPResponse) HeaderValue(string) (string, bool) { return "", false }
