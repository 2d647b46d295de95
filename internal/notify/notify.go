// Package notify delivers verdict-transition alerts to operators.
package notify

import (
	"context"
	"time"
)

// Alert describes one page crossing the healthy/unhealthy boundary.
type Alert struct {
	URL        string
	Recovered  bool // false means the page just went down
	Verdict    string
	HTTPStatus *int // nil when the probe never got a response
	Reason     string
	ObservedAt time.Time
}

func (a Alert) Title() string {
	if a.Recovered {
		return "Page RECOVERED"
	}
	return "Page DOWN"
}

// Notifier delivers an alert. Implementations are best-effort; the scheduler
// never lets a failed delivery interrupt probing.
type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi fans an alert out to several notifiers, returning the first error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
