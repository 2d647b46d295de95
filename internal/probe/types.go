package probe

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// Verdict is the classified outcome of probing one page.
type Verdict int

const (
	// Match: no errors and every configured pattern was found.
	Match Verdict = iota
	// NoMatch: no errors but at least one pattern was not found.
	NoMatch
	// HTTPError: a response arrived but its status was not 200 OK.
	HTTPError
	// ConnectionError: the request could not be completed at all.
	ConnectionError
	// NotProbedYet: the page has not been probed since startup.
	NotProbedYet
)

// String returns the stable operator-facing label for the verdict. These
// labels are a contract: the report page and its CSS classes are derived
// from them.
func (v Verdict) String() string {
	switch v {
	case Match:
		return "MATCH"
	case NoMatch:
		return "NO MATCH"
	case HTTPError:
		return "HTTP ERROR"
	case ConnectionError:
		return "CONNECTION ERROR"
	case NotProbedYet:
		return "NOT PROBED YET"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Healthy reports whether the verdict is the one the operator wants to see.
func (v Verdict) Healthy() bool { return v == Match }

// PageSpec is one monitored target as declared in the requirement file.
// Immutable after construction.
type PageSpec struct {
	URL      string
	Patterns []string
}

// CompiledPage is the runtime form of a PageSpec: the URL parsed once and
// every pattern compiled, order preserved. Built at startup and never
// mutated, so it is safe to read from any goroutine.
type CompiledPage struct {
	URL      string
	Parsed   *url.URL
	Patterns []*regexp.Regexp
}

// CompilePages turns page specs into their runtime form. Specs are expected
// to have passed configuration validation already; a failure here means the
// validator and this function disagree and is returned as an error.
func CompilePages(specs []PageSpec) ([]CompiledPage, error) {
	pages := make([]CompiledPage, 0, len(specs))
	for _, spec := range specs {
		u, err := url.Parse(spec.URL)
		if err != nil {
			return nil, fmt.Errorf("probe: url %q: %w", spec.URL, err)
		}
		regexes := make([]*regexp.Regexp, 0, len(spec.Patterns))
		for _, pattern := range spec.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("probe: pattern %q for %q: %w", pattern, spec.URL, err)
			}
			regexes = append(regexes, re)
		}
		pages = append(pages, CompiledPage{URL: spec.URL, Parsed: u, Patterns: regexes})
	}
	return pages, nil
}

// Result is the outcome of one fetch-and-check attempt for one page. A new
// probe never mutates a previous Result; it replaces it wholesale, which is
// what makes the result table safe to read concurrently.
type Result struct {
	Verdict    Verdict
	HTTPStatus *int           // nil when no response was received
	Reason     string         // HTTP reason phrase or failure description
	ObservedAt time.Time      // UTC completion time of the attempt
	Duration   *time.Duration // nil when no request was ever sent
}
