// Package target selects which view of a probe response (or request) a
// matcher or extractor reads: the decoded body, the header block, the full
// response dump, or one named header's value.
package target

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNotFound is returned by Content when a Name(h) part names a header
// that is absent from the target. It skips the matcher that requested it
// rather than negating the whole operator.
var ErrNotFound = errors.New("part not found")

type kind uint8

const (
	kindBody kind = iota
	kindHeader
	kindResponse
	kindName
)

// Part is which string (and optional raw bytes) a matcher or extractor
// sees: Body, Header, Response, or a named header.
type Part struct {
	kind kind
	name string
}

// Body selects the decoded response body.
var Body = Part{kind: kindBody}

// Header selects the CRLF-joined "Name: value" header block.
var Header = Part{kind: kindHeader}

// Response selects the header block plus "\r\n\r\n" plus the body.
var Response = Part{kind: kindResponse}

// Name selects a single named header's value.
func Name(header string) Part { return Part{kind: kindName, name: header} }

// String renders p back to its on-disk scalar: "body", "header", "all",
// or the bare header name for Name(h).
func (p Part) String() string {
	switch p.kind {
	case kindHeader:
		return "header"
	case kindResponse:
		return "all"
	case kindName:
		return p.name
	default:
		return "body"
	}
}

// ParsePart parses a template's "part:" scalar. An omitted or empty part
// means "match the body" — the common case for a matcher that doesn't set
// part at all — rather than falling into the Name(h) arm with an empty
// header name, which could never usefully select anything.
func ParsePart(s string) Part {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "body":
		return Body
	case "header":
		return Header
	case "all", "response":
		return Response
	default:
		return Name(s)
	}
}

// OperatorTarget is anything a matcher or extractor can read: the header
// block rendered as CRLF-joined lines, the raw (undecoded) body bytes, and
// a case-insensitive single-header lookup.
type OperatorTarget interface {
	HeaderBlock() string
	RawBody() []byte
	HeaderValue(name string) (string, bool)
}

// Content returns the text and (where meaningful) raw-byte views of part
// against t. Regex matchers try the text view first, then fall back to the
// byte view for patterns written against non-UTF-8 content; Content
// prepares both so callers never have to decode twice.
func Content[T OperatorTarget](part Part, t T) (string, []byte, error) {
	switch part.kind {
	case kindHeader:
		return t.HeaderBlock(), nil, nil
	case kindResponse:
		raw := t.RawBody()
		return t.HeaderBlock() + "\r\n\r\n" + decodeOrEscape(raw), raw, nil
	case kindName:
		v, ok := t.HeaderValue(part.name)
		if !ok {
			return "", nil, fmt.Errorf("header %q: %w", part.name, ErrNotFound)
		}
		return v, nil, nil
	default:
		raw := t.RawBody()
		return decodeOrEscape(raw), raw, nil
	}
}

// decodeOrEscape returns b as a string when it is valid UTF-8, otherwise
// renders it as an ASCII-escaped view so a text-oriented regex still has
// something printable to run against.
func decodeOrEscape(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
	}
	return sb.String()
}
