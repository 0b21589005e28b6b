// Package favicon discovers a page's icon links, fetches each one not yet
// seen this scan, and hashes accepted icons with both the MD5 and the
// "Shodan convention" MurmurHash3 algorithms used to fingerprint sites by
// their favicon.
package favicon

import (
	"context"
	"crypto/md5" //nolint:gosec // fingerprint identity hash, not a security boundary
	"encoding/base64"
	"encoding/hex"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/spaolacci/murmur3"
)

// Hash is the (md5-hex, mmh3-decimal-signed) pair identifying one favicon.
type Hash struct {
	MD5  string
	MMH3 string
}

// Links enumerates every favicon candidate URL a response's HTML
// advertises (link[rel$=icon] hrefs, absolute as-is, relative resolved
// against cur), plus the conventional "/favicon.ico" default.
func Links(body string, cur *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find(`link[rel$="icon"]`).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				add(href)
				return
			}
			add(joinPath(cur, href))
		})
	}
	add(joinPath(cur, "/favicon.ico"))
	return out
}

func joinPath(cur *url.URL, val string) string {
	if cur == nil {
		return val
	}
	joined := *cur
	joined.Path = path.Join(cur.Path, val)
	return joined.String()
}

// IsIcon reports whether a fetched candidate should be treated as a
// favicon: a 200 status and either an image/* Content-Type, or a body
// that fails UTF-8 decoding and contains none of the common markup
// tokens. The text heuristic only kicks in without an image header, so a
// binary-looking body that still smells like HTML is rejected.
func IsIcon(statusCode int, contentType string, body []byte) bool {
	if statusCode != 200 {
		return false
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "image/") {
		return true
	}
	if utf8.Valid(body) {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, token := range []string{"html", "head", "script", "div", "title", "xml"} {
		if strings.Contains(lower, token) {
			return false
		}
	}
	return true
}

// Fetcher issues the secondary GET used to pull a candidate favicon URL.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetch retrieves url with client and, if it qualifies as an icon per
// IsIcon, returns its Hash. ok is false for any fetch failure, non-200,
// or non-icon response -- callers simply drop the candidate.
func Fetch(ctx context.Context, client Fetcher, rawURL string) (Hash, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Hash{}, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return Hash{}, false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return Hash{}, false
	}
	if !IsIcon(resp.StatusCode, resp.Header.Get("Content-Type"), body) {
		return Hash{}, false
	}
	return HashBytes(body), true
}

// HashBytes computes the (md5, mmh3) pair for a favicon body.
func HashBytes(body []byte) Hash {
	sum := md5.Sum(body) //nolint:gosec
	return Hash{
		MD5:  hex.EncodeToString(sum[:]),
		MMH3: strconv.FormatInt(int64(shodanMMH3(body)), 10),
	}
}

// shodanMMH3 implements the widely deployed "Shodan favicon hash"
// convention: standard base64 the body, reflow with a literal newline
// every 76 characters plus a trailing newline, then MurmurHash3 (32-bit,
// seed 0) that ASCII buffer and reinterpret the result as signed.
func shodanMMH3(body []byte) int32 {
	reflowed := reflowBase64(body)
	h := murmur3.New32WithSeed(0)
	_, _ = h.Write([]byte(reflowed))
	return int32(h.Sum32())
}

func reflowBase64(body []byte) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	var sb strings.Builder
	sb.Grow(len(encoded) + len(encoded)/76 + 1)
	for i, c := range encoded {
		sb.WriteRune(c)
		if (i+1)%76 == 0 {
			sb.WriteByte('\n')
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}
