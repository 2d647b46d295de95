package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagewatch/pagewatch/internal/urlutil"
)

// ConnectionTimeout bounds the whole round trip of a single probe request,
// connection establishment included.
const ConnectionTimeout = 30 * time.Second

// MaxBodySize caps how much of a response body is read for pattern
// matching. A page that large is either misconfigured or not a text
// document; reading on would only waste bandwidth and memory.
const MaxBodySize = 10 << 20 // 10 MB

// Outcome is the normalized result of one GET attempt.
//
// ConnError marks transport-level failures (DNS, refused/reset connection,
// timeout, TLS) that were converted into data instead of propagating.
// Defects such as malformed inputs that escaped validation are returned as
// errors by Fetch and must not end up here.
type Outcome struct {
	Content    string // decoded body; set only on 200 OK
	ConnError  bool
	HTTPStatus *int // nil when no response was received
	Reason     string
	StartedAt  time.Time // zero when no request was ever issued
	FinishedAt time.Time
}

// Duration returns the elapsed wall-clock time of the attempt, or false when
// no request was ever sent.
func (o Outcome) Duration() (time.Duration, bool) {
	if o.StartedAt.IsZero() {
		return 0, false
	}
	return o.FinishedAt.Sub(o.StartedAt), true
}

// Fetcher performs a single GET attempt against one page.
type Fetcher interface {
	Fetch(ctx context.Context, page *CompiledPage) (Outcome, error)
}

// PageFetcher is the production Fetcher backed by net/http.
type PageFetcher struct {
	Client *http.Client
	Logger *zap.Logger
}

func NewPageFetcher(logger *zap.Logger) *PageFetcher {
	return &PageFetcher{
		Client: &http.Client{Timeout: ConnectionTimeout},
		Logger: logger,
	}
}

// Fetch performs exactly one GET against the page's URL. Timing is
// wall-clock for the full round trip including body retrieval; the operator
// cares about perceived latency, not local compute cost.
//
// Transport failures are folded into the Outcome. Anything else — a URL or
// port that should never have passed configuration validation — comes back
// as an error and is expected to terminate the process.
func (f *PageFetcher) Fetch(ctx context.Context, page *CompiledPage) (Outcome, error) {
	parts, err := urlutil.Dissect(page.Parsed)
	if err != nil {
		return Outcome{}, err
	}
	target := parts.RequestURL(page.Parsed.Scheme)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Outcome{}, err
	}

	f.Logger.Debug("probe_request", zap.String("url", target))

	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		f.Logger.Debug("probe_transport_error", zap.String("url", target), zap.Error(err))
		return Outcome{
			ConnError:  true,
			Reason:     err.Error(),
			StartedAt:  start,
			FinishedAt: time.Now(),
		}, nil
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	outcome := Outcome{
		HTTPStatus: &status,
		Reason:     reasonPhrase(resp),
		StartedAt:  start,
	}

	if status != http.StatusOK {
		outcome.FinishedAt = time.Now()
		return outcome, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	outcome.FinishedAt = time.Now()
	if err != nil {
		// The connection died mid-body; same class as never connecting.
		f.Logger.Debug("probe_body_read_error", zap.String("url", target), zap.Error(err))
		return Outcome{
			ConnError:  true,
			Reason:     err.Error(),
			StartedAt:  start,
			FinishedAt: outcome.FinishedAt,
		}, nil
	}

	charset, err := DetectCharset(resp.Header.Get("Content-Type"))
	if err != nil {
		if !errors.Is(err, ErrAmbiguousCharset) {
			return Outcome{}, err
		}
		// The remote server sent a self-contradictory header. That is its
		// defect, not ours: record it against this page and move on.
		f.Logger.Debug("probe_ambiguous_charset",
			zap.String("url", target),
			zap.String("content_type", resp.Header.Get("Content-Type")),
		)
		return Outcome{
			ConnError:  true,
			Reason:     err.Error(),
			StartedAt:  start,
			FinishedAt: outcome.FinishedAt,
		}, nil
	}
	f.Logger.Debug("probe_response",
		zap.String("url", target),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.String("charset", charset),
	)

	outcome.Content = decodeBody(body, charset)
	return outcome, nil
}

// reasonPhrase recovers the reason text from a response. Go's client exposes
// it only through Status ("200 OK"), so strip the leading code; fall back to
// the standard phrase for the code.
func reasonPhrase(resp *http.Response) string {
	prefix := resp.Status
	if len(prefix) > 4 && prefix[3] == ' ' {
		return prefix[4:]
	}
	return http.StatusText(resp.StatusCode)
}
