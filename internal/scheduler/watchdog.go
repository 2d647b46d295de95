// Package scheduler drives the probe engine in an infinite sweep/sleep
// cycle. It is the single writer of the engine's result table and the place
// where failures from the detached report server become fatal for the whole
// process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/probe"
)

type Watchdog struct {
	Logger   *zap.Logger
	Engine   *probe.Engine
	Interval time.Duration
	Notifier notify.Notifier // nil disables transition alerts

	// Errors relays fatal failures from the report server goroutine. The
	// loop checks it before the first page, after every page and after the
	// sweep; receiving on it terminates Run.
	Errors <-chan error

	prev []probe.Verdict
}

func New(logger *zap.Logger, engine *probe.Engine, interval time.Duration, notifier notify.Notifier, errs <-chan error) *Watchdog {
	prev := make([]probe.Verdict, engine.Len())
	for i := range prev {
		prev[i] = probe.NotProbedYet
	}
	return &Watchdog{
		Logger:   logger,
		Engine:   engine,
		Interval: interval,
		Notifier: notifier,
		Errors:   errs,
		prev:     prev,
	}
}

// Run sweeps all pages, sleeps for the configured interval and repeats until
// the context is cancelled (returns nil) or a fatal error arrives — either a
// defect from the engine or a relayed report-server failure.
func (w *Watchdog) Run(ctx context.Context) error {
	w.Logger.Info("watchdog_started",
		zap.Duration("probe_interval", w.Interval),
		zap.Int("pages", w.Engine.Len()),
	)

	sweep := 0
	for {
		sweep++
		w.Logger.Debug("sweep_started", zap.Int("sweep", sweep))

		if err := w.relayedError(); err != nil {
			return err
		}

		var totalHTTPTime time.Duration
		err := w.Engine.Sweep(ctx, func(i int, r *probe.Result) error {
			w.logResult(i, r)
			w.alertOnTransition(ctx, i, r)
			if r.Duration != nil {
				totalHTTPTime += *r.Duration
			}
			return w.relayedError()
		})
		if errors.Is(err, context.Canceled) {
			w.Logger.Info("watchdog_stopped")
			return nil
		}
		if err != nil {
			return err
		}

		w.Logger.Debug("sweep_finished",
			zap.Int("sweep", sweep),
			zap.Duration("total_http_time", totalHTTPTime),
		)

		if err := w.relayedError(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			w.Logger.Info("watchdog_stopped")
			return nil
		case err := <-w.Errors:
			return fmt.Errorf("report server failed: %w", err)
		case <-time.After(w.Interval):
		}
	}
}

// relayedError is the non-blocking variant of the error-channel check used
// between pages.
func (w *Watchdog) relayedError() error {
	select {
	case err := <-w.Errors:
		return fmt.Errorf("report server failed: %w", err)
	default:
		return nil
	}
}

// logResult keeps the console quiet when a page is healthy and vocal when it
// is not: MATCH goes to Debug, every other verdict to Warn.
func (w *Watchdog) logResult(i int, r *probe.Result) {
	fields := []zap.Field{
		zap.String("url", w.Engine.Pages()[i].URL),
		zap.String("verdict", r.Verdict.String()),
		zap.String("reason", r.Reason),
	}
	if r.HTTPStatus != nil {
		fields = append(fields, zap.Int("status", *r.HTTPStatus))
	}
	if r.Duration != nil {
		fields = append(fields, zap.Duration("duration", *r.Duration))
	}

	if r.Verdict.Healthy() {
		w.Logger.Debug("page_probed", fields...)
	} else {
		w.Logger.Warn("page_probed", fields...)
	}
}

// alertOnTransition sends a best-effort notification when a page crosses the
// healthy/unhealthy boundary. The very first probe alerts only when it comes
// back unhealthy.
func (w *Watchdog) alertOnTransition(ctx context.Context, i int, r *probe.Result) {
	defer func() { w.prev[i] = r.Verdict }()

	if w.Notifier == nil {
		return
	}

	healthy := r.Verdict.Healthy()
	switch {
	case w.prev[i] == probe.NotProbedYet && healthy:
		return
	case w.prev[i] != probe.NotProbedYet && healthy == w.prev[i].Healthy():
		return
	}

	alert := notify.Alert{
		URL:        w.Engine.Pages()[i].URL,
		Recovered:  healthy,
		Verdict:    r.Verdict.String(),
		HTTPStatus: r.HTTPStatus,
		Reason:     r.Reason,
		ObservedAt: r.ObservedAt,
	}
	if err := w.Notifier.Send(ctx, alert); err != nil {
		w.Logger.Warn("alert_send_failed",
			zap.String("url", w.Engine.Pages()[i].URL),
			zap.Error(err),
		)
	}
}
