package probe

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ErrAmbiguousCharset is wrapped by DetectCharset when a Content-Type header
// declares more than one charset. That is a defect in the remote server, not
// in the watchdog, so callers contain it to the affected page.
var ErrAmbiguousCharset = fmt.Errorf("multiple charset fields in Content-Type header")

// DetectCharset extracts the declared charset token from a raw Content-Type
// header value. It returns "" when the header is empty or carries no charset
// field. The key match is case-insensitive but the returned value keeps its
// original case; whitespace around keys and values is trimmed and field
// order does not matter.
func DetectCharset(contentType string) (string, error) {
	charset := ""
	seen := false
	for _, field := range strings.Split(contentType, ";") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		if strings.ToLower(strings.TrimSpace(key)) != "charset" {
			continue
		}
		// An empty value ("charset=") still counts as a declaration.
		if seen {
			return "", fmt.Errorf("%w: %q", ErrAmbiguousCharset, contentType)
		}
		charset = strings.TrimSpace(value)
		seen = true
	}
	return charset, nil
}

// decodeBody converts a response body to UTF-8 text according to the
// declared charset. An empty charset means UTF-8. Unknown charsets and
// undecodable bytes fall back to the raw body; a page that lies about its
// encoding should surface as NO MATCH, not kill the probe.
func decodeBody(body []byte, charset string) string {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return string(body)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
