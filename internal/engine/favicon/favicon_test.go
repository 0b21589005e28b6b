package favicon

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinks(t *testing.T) {
	body := `<html><head><link rel="icon" href="/static/icon.png"></head></html>`
	cur, _ := url.Parse("https://example.com/page")

	links := Links(body, cur)
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com/page/static/icon.png", links[0])
	assert.Equal(t, "https://example.com/page/favicon.ico", links[1])
}

func TestLinks_AbsoluteHref(t *testing.T) {
	body := `<link rel="shortcut icon" href="https://cdn.example.com/icon.png">`
	cur, _ := url.Parse("https://example.com/")

	links := Links(body, cur)
	assert.Contains(t, links, "https://cdn.example.com/icon.png")
}

func TestIsIcon(t *testing.T) {
	assert.True(t, IsIcon(200, "image/png", []byte{0x89, 'P', 'N', 'G'}))
	assert.False(t, IsIcon(404, "image/png", nil))
	assert.False(t, IsIcon(200, "text/html", []byte("<html></html>")))
	assert.True(t, IsIcon(200, "application/octet-stream", []byte{0x00, 0x01, 0x02, 0xff}))
}

func TestHashBytes(t *testing.T) {
	h := HashBytes([]byte("test"))
	assert.Len(t, h.MD5, 32)
	assert.NotEmpty(t, h.MMH3)
}

// TestHashBytes_EmptyBody pins the Shodan favicon hash recipe for the
// empty byte string: base64("") = "", reflowed = "\n",
// mmh3("\n", seed=0) = 3395649559, reinterpreted as signed = -899317737.
func TestHashBytes_EmptyBody(t *testing.T) {
	h := HashBytes(nil)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", h.MD5)
	assert.Equal(t, "-899317737", h.MMH3)
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestFetch_RejectsNon200(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 404, Body: http.NoBody, Header: make(http.Header)}, nil
	})
	_, ok := Fetch(context.Background(), client, "https://example.com/favicon.ico")
	assert.False(t, ok)
}
