package urlutil

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Default ports assumed when the URL does not carry an explicit one.
const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
)

// Parts is the result of dissecting a URL: everything needed to place a GET
// request on the wire. Host is in its ASCII-compatible (punycode) form and
// PathAndQuery is percent-escaped.
type Parts struct {
	Host         string
	Port         int
	PathAndQuery string
}

// Dissect splits an already-parsed http/https URL into an escaped host, a
// port and a path+query string.
//
// Rules:
//   - host and port split on the ':' in the authority; a missing port falls
//     back to the scheme's default (80 for http, 443 for https).
//   - an empty path becomes "/"; the query, when present, is appended after
//     a single '?'. The fragment is discarded (only relevant to a client).
//   - the host is converted to its IDNA ASCII form so that international
//     domain names can be resolved and sent in a Host header.
//   - path and query are percent-escaped, keeping '=', '&', '?' and '/'
//     intact so the structure of the request line survives.
//
// Scheme validation happens at configuration load; anything else reaching
// this function is a defect and is reported as an error rather than being
// silently accepted.
func Dissect(u *url.URL) (Parts, error) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return Parts{}, fmt.Errorf("urlutil: unsupported scheme %q slipped past validation", u.Scheme)
	}

	port := DefaultHTTPPort
	if u.Scheme == "https" {
		port = DefaultHTTPSPort
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Parts{}, fmt.Errorf("urlutil: invalid port %q: %w", p, err)
		}
		port = n
	}

	host, err := idna.ToASCII(u.Hostname())
	if err != nil {
		return Parts{}, fmt.Errorf("urlutil: cannot encode host %q: %w", u.Hostname(), err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	pathAndQuery := path
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}

	return Parts{
		Host:         host,
		Port:         port,
		PathAndQuery: Escape(pathAndQuery),
	}, nil
}

// RequestURL reassembles the dissected parts into an absolute URL string for
// the given scheme. Default ports are kept implicit.
func (p Parts) RequestURL(scheme string) string {
	hostport := p.Host
	if !(scheme == "http" && p.Port == DefaultHTTPPort) &&
		!(scheme == "https" && p.Port == DefaultHTTPSPort) {
		hostport += ":" + strconv.Itoa(p.Port)
	}
	return scheme + "://" + hostport + p.PathAndQuery
}

// Escape percent-encodes every byte outside the unreserved set, leaving the
// structural characters '=', '&', '?' and '/' untouched.
func Escape(s string) string {
	if !needsEscape(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*len(s)/3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSafe(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

func needsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isSafe(s[i]) {
			return true
		}
	}
	return false
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', '=', '&', '?', '/':
		return true
	}
	return false
}
