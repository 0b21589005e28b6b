package template

import (
	"net/url"
	"path"
	"strings"
	"time"

	httpclient "github.com/emo-crab/observer-ward-sub000/internal/pkg/httpclient"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/value"
)

// HttpOption configures the HTTP client and redirect/body-size behavior a
// single HTTP request runs with.
type HttpOption struct {
	HostRedirects bool `yaml:"host-redirects,omitempty" json:"host-redirects,omitempty"`
	Redirects     bool `yaml:"redirects,omitempty" json:"redirects,omitempty"`
	RaceCount     int  `yaml:"race-count,omitempty" json:"race-count,omitempty"`
	MaxRedirects  int  `yaml:"max-redirects,omitempty" json:"max-redirects,omitempty"`
	Threads       int  `yaml:"threads,omitempty" json:"threads,omitempty"`
	MaxSize       int  `yaml:"max-size,omitempty" json:"max-size,omitempty"`
	CookieReuse   bool `yaml:"cookie-reuse,omitempty" json:"cookie-reuse,omitempty"`
	ReadAll       bool `yaml:"read-all,omitempty" json:"read-all,omitempty"`
	DisableCookie bool `yaml:"disable-cookie,omitempty" json:"disable-cookie,omitempty"`
}

// ClientOptions renders this HttpOption into httpclient.Options, the way
// the reference engine's builder_client turns per-request HTTP settings
// into a concrete client. With redirects set, host-redirects raises the
// client's redirect cap from max-redirects (default 10) to 20; the client
// applies no same-host restriction in either case, and the JS/meta
// redirect chain is followed by the scan loop, not by this client.
func (o HttpOption) ClientOptions(timeout time.Duration, userAgent string) httpclient.Options {
	maxRedirects := firstNonZero(o.MaxRedirects, 10)
	if o.Redirects && o.HostRedirects {
		maxRedirects = 20
	}
	return httpclient.Options{
		Timeout:            timeout,
		UserAgent:          userAgent,
		InsecureSkipVerify: true,
		FollowRedirects:    o.Redirects,
		MaxRedirects:       maxRedirects,
		CookieJar:          o.CookieReuse && !o.DisableCookie,
	}
}

func firstNonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// Http is the "path" form of an HTTP request: a method, a list of paths
// (each may reference {{BaseURL}}), optional headers, and an optional
// body.
type Http struct {
	Method  string                  `yaml:"method,omitempty" json:"method,omitempty"`
	Path    []string                `yaml:"path" json:"path"`
	Body    string                  `yaml:"body,omitempty" json:"body,omitempty"`
	Headers map[string]value.Value  `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// JoinPath resolves a template path entry (which may carry a literal
// "{{BaseURL}}" prefix) against base, the target's root URL.
func JoinPath(base *url.URL, p string) *url.URL {
	trimmed := strings.TrimPrefix(p, "{{BaseURL}}")
	if trimmed == "" {
		trimmed = "/"
	}
	joined := *base
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		if u, err := url.Parse(trimmed); err == nil {
			return u
		}
	}
	joined.Path = path.Join(base.Path, trimmed)
	return &joined
}

// Raw is the "raw" form of an HTTP request: full request text, for
// protocol edge cases a method/path/headers struct can't express.
type Raw struct {
	Raw    []string `yaml:"raw" json:"raw"`
	Unsafe bool     `yaml:"unsafe,omitempty" json:"unsafe,omitempty"`
}

// HttpRaw is the untagged union between the Path and Raw request forms;
// exactly one is populated after decode.
type HttpRaw struct {
	Path *Http
	Raw  *Raw
}

// HTTPRequest is one HTTP probe within a template's requests.http list.
type HTTPRequest struct {
	HttpRaw             HttpRaw
	ID                  string
	Name                string
	PayloadAttack       *PayloadAttack
	SkipVariablesCheck  bool
	StopAtFirstMatch    bool
	HttpOption          HttpOption
	Operators           Operators
}
