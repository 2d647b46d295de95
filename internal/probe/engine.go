package probe

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pagewatch/pagewatch/internal/metrics"
)

// Engine runs fetch-and-classify attempts over a fixed set of pages and
// owns the canonical result table.
//
// The table has exactly one slot per configured page, index-aligned with
// Pages(). The scheduler goroutine is the sole writer; every update swaps in
// a whole new immutable Result, so report handlers on other goroutines
// always observe either the previous complete result or the new one. No
// per-slot locking is needed.
type Engine struct {
	logger  *zap.Logger
	fetcher Fetcher
	dns     DNSClassifier
	metrics *metrics.Metrics
	pages   []CompiledPage
	results []atomic.Pointer[Result]
}

func NewEngine(logger *zap.Logger, fetcher Fetcher, dns DNSClassifier, m *metrics.Metrics, pages []CompiledPage) *Engine {
	e := &Engine{
		logger:  logger,
		fetcher: fetcher,
		dns:     dns,
		metrics: m,
		pages:   pages,
		results: make([]atomic.Pointer[Result], len(pages)),
	}
	for i := range e.results {
		e.results[i].Store(&Result{Verdict: NotProbedYet})
	}
	m.SetPagesWatched(len(pages))
	return e
}

// Pages returns the compiled page list. Callers must treat it as read-only.
func (e *Engine) Pages() []CompiledPage { return e.pages }

// Len is the number of configured pages.
func (e *Engine) Len() int { return len(e.pages) }

// Results returns a snapshot of the latest result per page, index-aligned
// with Pages(). Safe to call from any goroutine.
func (e *Engine) Results() []*Result {
	out := make([]*Result, len(e.results))
	for i := range e.results {
		out[i] = e.results[i].Load()
	}
	return out
}

// ProbePage fetches and classifies page i, publishes the result into the
// table and returns it. Classification precedence is strict: transport
// failure, then non-200 status, then pattern outcome. A 404 whose body
// happens to contain the patterns is still an HTTP ERROR.
//
// A non-nil error means a defect (inputs that should never have passed
// validation), never a remote failure; it leaves the table untouched.
func (e *Engine) ProbePage(ctx context.Context, i int) (*Result, error) {
	page := &e.pages[i]
	out, err := e.fetcher.Fetch(ctx, page)
	if err != nil {
		return nil, err
	}
	// Cancellation mid-fetch surfaces as a transport failure; that is the
	// process shutting down, not the page going down, so it never reaches
	// the table.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var verdict Verdict
	switch {
	case out.ConnError:
		verdict = ConnectionError
		out.Reason = e.classifyDNS(ctx, page, out.Reason)
	case *out.HTTPStatus == http.StatusOK:
		if e.matchAll(page, out.Content) {
			verdict = Match
		} else {
			verdict = NoMatch
		}
	default:
		verdict = HTTPError
	}

	result := &Result{
		Verdict:    verdict,
		HTTPStatus: out.HTTPStatus,
		Reason:     out.Reason,
		ObservedAt: time.Now().UTC(),
	}
	if d, ok := out.Duration(); ok {
		result.Duration = &d
	}

	e.results[i].Store(result)
	e.metrics.ObserveProbe(verdict.String(), valueOr(result.Duration), result.Duration != nil)
	return result, nil
}

// Sweep probes every page once, in configuration order. One page's remote
// failure never aborts another's probe; only defects and context
// cancellation stop the sweep. The optional each hook runs after every page
// and can abort the sweep by returning an error; the scheduler uses it to
// relay fatal cross-goroutine errors between pages.
func (e *Engine) Sweep(ctx context.Context, each func(i int, r *Result) error) error {
	for i := range e.pages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r, err := e.ProbePage(ctx, i)
		if err != nil {
			return err
		}
		if each != nil {
			if err := each(i, r); err != nil {
				return err
			}
		}
	}
	e.metrics.ObserveSweep()
	return nil
}

// matchAll evaluates the page's patterns in order against the decoded
// content, stopping at the first miss. An empty pattern list matches
// vacuously.
func (e *Engine) matchAll(page *CompiledPage, content string) bool {
	for _, re := range page.Patterns {
		loc := re.FindStringIndex(content)
		if loc == nil {
			e.logger.Debug("pattern_no_match",
				zap.String("url", page.URL),
				zap.String("pattern", re.String()),
			)
			return false
		}
		e.logger.Debug("pattern_match",
			zap.String("url", page.URL),
			zap.String("pattern", re.String()),
			zap.Int("offset", loc[0]),
		)
	}
	return true
}

// classifyDNS enriches a transport-failure reason with the DNS state of the
// host, the difference between a vanished domain and a down server being
// exactly what the operator wants to know first.
func (e *Engine) classifyDNS(ctx context.Context, page *CompiledPage, reason string) string {
	if e.dns == nil {
		return reason
	}
	class := e.dns.Classify(ctx, page.Parsed.Hostname())
	e.logger.Debug("dns_classified",
		zap.String("url", page.URL),
		zap.String("class", class),
	)
	return reason + " dns=" + class
}

func valueOr(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}
