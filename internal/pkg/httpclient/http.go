// Package http builds the net/http.Client used to send probe requests
// against scan targets.
package http

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

type Client struct {
	http.Client
}

// Options configures the probe HTTP client. Unlike a general purpose CLI
// client, a fingerprinting probe needs per-template control over redirects
// and must tolerate the self-signed/expired certificates it will routinely
// encounter while scanning arbitrary services.
type Options struct {
	Timeout            time.Duration
	UserAgent          string
	ProxyURL           *url.URL
	InsecureSkipVerify bool
	// FollowRedirects disables automatic redirect following when false.
	// Templates that need to inspect the redirect response itself (instead
	// of the page it points to) set this to false.
	FollowRedirects bool
	MaxRedirects    int
	Logger          *slog.Logger
	// CookieJar enables a per-client cookie store for the lifetime of this
	// client (one template invocation, per the engine's scan loop), used
	// when HttpOption.CookieReuse is set and DisableCookie is not.
	CookieJar bool
}

// New creates an HTTP client configured for probing.
// If logger is non-nil, requests and responses are logged at Debug level.
func New(opts Options) *Client {
	proxy := http.ProxyFromEnvironment
	if opts.ProxyURL != nil {
		fixed := opts.ProxyURL
		proxy = func(*http.Request) (*url.URL, error) { return fixed, nil }
	}

	base := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{ //nolint:gosec // scanning arbitrary targets
			InsecureSkipVerify: opts.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS10,
		},
	}

	c := &Client{
		Client: http.Client{
			Transport: &roundTripper{
				RoundTripper: base,
				userAgent:    opts.UserAgent,
				logger:       opts.Logger,
			},
			Timeout: opts.Timeout,
		},
	}

	if opts.CookieJar {
		if jar, err := cookiejar.New(nil); err == nil {
			c.Jar = jar
		}
	}

	if !opts.FollowRedirects {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if opts.MaxRedirects > 0 {
		max := opts.MaxRedirects
		c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return http.ErrUseLastResponse
			}
			return nil
		}
	}

	return c
}

type roundTripper struct {
	http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func (r roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.userAgent != "" {
		existingUserAgent := req.Header.Get("User-Agent")
		if existingUserAgent == "" {
			req.Header.Set("User-Agent", r.userAgent)
		} else {
			req.Header.Set("User-Agent", existingUserAgent+" "+r.userAgent)
		}
	}

	if r.logger != nil {
		r.logger.Debug("http request", "method", req.Method, "url", req.URL.String())
	}

	start := time.Now()
	resp, err := r.RoundTripper.RoundTrip(req)
	duration := time.Since(start)

	if r.logger != nil {
		if err != nil {
			r.logger.Debug("http error", "method", req.Method, "url", req.URL.String(), "error", err, "duration", duration)
		} else {
			r.logger.Debug("http response", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "duration", duration)
		}
	}

	return resp, err
}
