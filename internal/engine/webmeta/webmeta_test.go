package webmeta

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitle_FromTitleTag(t *testing.T) {
	body := `<html><head><title> Welcome Home </title></head></html>`
	assert.Equal(t, "Welcome Home", ExtractTitle(body))
}

func TestExtractTitle_FromMetaFallback(t *testing.T) {
	body := `<html><head><meta property="og:title" content="Fallback Title"></head></html>`
	assert.Equal(t, "Fallback Title", ExtractTitle(body))
}

func TestExtractTitle_Empty(t *testing.T) {
	assert.Equal(t, "", ExtractTitle(`<html><head></head></html>`))
}

// TestExtractTitle_EmptyTitleTagFallsThrough covers boundary behavior #13:
// an empty <title></title> doesn't satisfy the "non-empty trimmed text"
// rule, so extraction falls through to the meta[name=title] fallback.
func TestExtractTitle_EmptyTitleTagFallsThrough(t *testing.T) {
	body := `<html><head><title></title><meta name="title" content="Meta Title"></head></html>`
	assert.Equal(t, "Meta Title", ExtractTitle(body))
}

func TestExtractRedirect_MetaRefresh(t *testing.T) {
	body := `<meta http-equiv="refresh" content="0; url=/login">`
	cur, _ := url.Parse("https://example.com/app")
	assert.Equal(t, "https://example.com/app/login", ExtractRedirect(body, cur))
}

func TestExtractRedirect_AbsoluteTarget(t *testing.T) {
	body := `<meta http-equiv="refresh" content="0; url=https://other.example.com/x">`
	cur, _ := url.Parse("https://example.com/app")
	assert.Equal(t, "https://other.example.com/x", ExtractRedirect(body, cur))
}

func TestExtractRedirect_JSLocationHref(t *testing.T) {
	body := `<script>location.href = '/dashboard';</script>`
	cur, _ := url.Parse("https://example.com/")
	assert.Equal(t, "https://example.com/dashboard", ExtractRedirect(body, cur))
}

func TestExtractRedirect_None(t *testing.T) {
	cur, _ := url.Parse("https://example.com/")
	assert.Equal(t, "", ExtractRedirect(`<html></html>`, cur))
}

// TestExtractRedirect_JSLocationHrefRelativeWithQuery covers boundary
// behavior #14: location.href = "login.jsp?up=1" inside an 800-byte body
// with no Location header resolves relative to the current URL.
func TestExtractRedirect_JSLocationHrefRelativeWithQuery(t *testing.T) {
	script := `<script>location.href = "login.jsp?up=1";</script>`
	body := script + strings.Repeat(" ", 800-len(script))
	require.LessOrEqual(t, len(body), 1024)
	cur, _ := url.Parse("https://example.com/app/")
	assert.Equal(t, "https://example.com/app/login.jsp?up=1", ExtractRedirect(body, cur))
}
