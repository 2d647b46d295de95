package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagewatch/pagewatch/internal/notify"
	"github.com/pagewatch/pagewatch/internal/probe"
)

// flakyFetcher alternates between a healthy and an unhealthy outcome on
// successive fetches.
type flakyFetcher struct {
	mu    sync.Mutex
	calls int
	fail  func(call int) bool
}

func (f *flakyFetcher) Fetch(_ context.Context, _ *probe.CompiledPage) (probe.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	now := time.Now()
	if f.fail(f.calls) {
		return probe.Outcome{
			ConnError:  true,
			Reason:     "connection refused",
			StartedAt:  now.Add(-time.Millisecond),
			FinishedAt: now,
		}, nil
	}
	status := 200
	return probe.Outcome{
		Content:    "all good",
		HTTPStatus: &status,
		Reason:     "OK",
		StartedAt:  now.Add(-time.Millisecond),
		FinishedAt: now,
	}, nil
}

func (f *flakyFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Send(_ context.Context, a notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, a.Title())
	return nil
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.titles...)
}

func newWatchdog(t *testing.T, f probe.Fetcher, interval time.Duration, errs <-chan error) (*Watchdog, *probe.Engine) {
	t.Helper()
	pages, err := probe.CompilePages([]probe.PageSpec{{URL: "http://example.test/", Patterns: []string{"good"}}})
	require.NoError(t, err)
	engine := probe.NewEngine(zap.NewNop(), f, nil, nil, pages)
	return New(zap.NewNop(), engine, interval, nil, errs), engine
}

func TestWatchdog_SweepsRepeatedly(t *testing.T) {
	f := &flakyFetcher{fail: func(int) bool { return false }}
	w, engine := newWatchdog(t, f, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return f.callCount() >= 3 },
		time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, probe.Match, engine.Results()[0].Verdict)
}

func TestWatchdog_RelayedErrorIsFatal(t *testing.T) {
	f := &flakyFetcher{fail: func(int) bool { return false }}
	errs := make(chan error, 1)
	w, _ := newWatchdog(t, f, time.Hour, errs)

	errs <- errors.New("bind: address already in use")

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report server failed")
	assert.Contains(t, err.Error(), "address already in use")
}

func TestWatchdog_RelayedErrorInterruptsSleep(t *testing.T) {
	f := &flakyFetcher{fail: func(int) bool { return false }}
	errs := make(chan error, 1)
	w, _ := newWatchdog(t, f, time.Hour, errs)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	// Let the first sweep finish and the loop park in its sleep.
	time.Sleep(20 * time.Millisecond)
	errs <- errors.New("listener exploded")

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listener exploded")
	case <-time.After(time.Second):
		t.Fatal("watchdog did not react to relayed error while sleeping")
	}
}

func TestWatchdog_NotifiesOnTransitions(t *testing.T) {
	// Healthy on the first probe, down on the second, recovered on the third.
	f := &flakyFetcher{fail: func(call int) bool { return call == 2 }}
	pages, err := probe.CompilePages([]probe.PageSpec{{URL: "http://example.test/", Patterns: []string{"good"}}})
	require.NoError(t, err)
	engine := probe.NewEngine(zap.NewNop(), f, nil, nil, pages)
	n := &recordingNotifier{}
	w := New(zap.NewNop(), engine, time.Millisecond, n, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(n.sent()) >= 2 },
		time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sent := n.sent()
	assert.Equal(t, "Page DOWN", sent[0])
	assert.Equal(t, "Page RECOVERED", sent[1])
}

// cancellingFetcher cancels the run's context from inside the fetch, then
// fails the way a transport does once its context is gone.
type cancellingFetcher struct {
	cancel context.CancelFunc
}

func (f *cancellingFetcher) Fetch(context.Context, *probe.CompiledPage) (probe.Outcome, error) {
	f.cancel()
	now := time.Now()
	return probe.Outcome{
		ConnError:  true,
		Reason:     context.Canceled.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}, nil
}

func TestWatchdog_ShutdownMidSweepIsQuiet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pages, err := probe.CompilePages([]probe.PageSpec{{URL: "http://example.test/", Patterns: []string{"good"}}})
	require.NoError(t, err)
	engine := probe.NewEngine(zap.NewNop(), &cancellingFetcher{cancel: cancel}, nil, nil, pages)
	n := &recordingNotifier{}
	w := New(zap.NewNop(), engine, time.Millisecond, n, nil)

	require.NoError(t, w.Run(ctx))

	// Shutdown is not a page failure: no alert, no result published.
	assert.Empty(t, n.sent())
	assert.Equal(t, probe.NotProbedYet, engine.Results()[0].Verdict)
}

func TestWatchdog_FirstHealthyProbeDoesNotAlert(t *testing.T) {
	f := &flakyFetcher{fail: func(int) bool { return false }}
	pages, err := probe.CompilePages([]probe.PageSpec{{URL: "http://example.test/", Patterns: []string{"good"}}})
	require.NoError(t, err)
	engine := probe.NewEngine(zap.NewNop(), f, nil, nil, pages)
	n := &recordingNotifier{}
	w := New(zap.NewNop(), engine, time.Millisecond, n, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return f.callCount() >= 2 },
		time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, n.sent())
}
