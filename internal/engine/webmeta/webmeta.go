// Package webmeta pulls page metadata out of an HTML response body that
// the fingerprint engine cannot get from headers alone: the page title and
// a best-effort guess at a client-side redirect target.
package webmeta

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// ExtractTitle returns the page's title: the trimmed inner text of
// <title> if non-empty, otherwise the content attribute of
// meta[property$=title] or meta[name=title]. Returns "" if none of those
// yield anything.
func ExtractTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	for _, sel := range []string{`meta[property$="title"]`, `meta[name="title"]`} {
		var content string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if c, ok := s.Attr("content"); ok {
				c = strings.TrimSpace(c)
				if c != "" {
					content = c
					return false
				}
			}
			return true
		})
		if content != "" {
			return content
		}
	}
	return ""
}

var jsRedirectPatterns = sync.OnceValue(func() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?im)location\.(?:open|replace|href)\s*=\s*['"](?P<name>[^'"]*)['"]`),
		regexp.MustCompile(`(?im)location\.(?:open|replace|href|assign)\((?P<name>[^)]*)\)`),
	}
})

// ExtractRedirect guesses a client-side redirect target out of body,
// relative to curURL. Source signals are tried in priority order: a
// meta-refresh tag, then (only when body is small, per the reference
// engine's 1024-byte budget) the two JS-redirect regex families. Returns
// "" if nothing is found.
func ExtractRedirect(body string, curURL *url.URL) string {
	var candidate string
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find(`meta[http-equiv="refresh" i]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			content, _ := s.Attr("content")
			if _, after, ok := strings.Cut(content, "="); ok {
				candidate = stripQuotes(strings.TrimSpace(after))
				return false
			}
			return true
		})
	}
	if candidate == "" && len(body) <= 1024 {
		for _, re := range jsRedirectPatterns() {
			m := re.FindStringSubmatch(body)
			if m == nil {
				continue
			}
			idx := re.SubexpIndex("name")
			if idx < 0 || idx >= len(m) {
				continue
			}
			candidate = stripQuotes(m[idx])
			break
		}
	}
	if candidate == "" {
		return ""
	}
	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
		return candidate
	}
	return joinPath(curURL, candidate)
}

func stripQuotes(s string) string {
	return strings.NewReplacer(`'`, "", `"`, "").Replace(s)
}

func joinPath(cur *url.URL, val string) string {
	if cur == nil {
		return val
	}
	joined := *cur
	joined.Path = path.Join(cur.Path, val)
	joined.RawQuery = ""
	if strings.Contains(val, "?") {
		p, q, _ := strings.Cut(val, "?")
		joined.Path = path.Join(cur.Path, p)
		joined.RawQuery = q
	}
	return joined.String()
}
