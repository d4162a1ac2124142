// Package logpoll watches the tunnel's log for authentication events.
//
// The tunnel reports progress only as free text on stdout, which systemd
// collects in the journal. PollFor re-reads a bounded tail of that log at a
// fixed interval and hands each window to a Matcher; the first match ends
// the poll. Matching lives behind Matcher and fetching behind LogSource so
// either can change without touching the loop.
package logpoll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the budget is spent without a match.
var ErrTimeout = errors.New("no match within the time budget")

// LogSource returns the current tail of a log.
type LogSource interface {
	Fetch(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to LogSource.
type SourceFunc func(ctx context.Context) (string, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (string, error) {
	return f(ctx)
}

// Poller runs poll loops. The zero value sleeps on the wall clock.
type Poller struct {
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now stamps events.
	Now func() time.Time
}

// Attempts is the number of fetches a poll makes: within/interval, at least one.
func Attempts(within, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(within / interval)
	if n < 1 {
		return 1
	}
	return n
}

// PollFor fetches from source up to Attempts(within, interval) times,
// sleeping interval between fetches but never after the last one. It
// returns the first match, ErrTimeout when none came, or the first fetch
// or context error.
func (p Poller) PollFor(ctx context.Context, m Matcher, within, interval time.Duration, source LogSource) (Match, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	attempts := Attempts(within, interval)
	for i := 0; i < attempts; i++ {
		window, err := source.Fetch(ctx)
		if err != nil {
			return Match{}, err
		}
		if match, ok := m.Match(window); ok {
			match.Fetches = i + 1
			match.stamp(now())
			return match, nil
		}
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return Match{}, err
		}
	}
	return Match{}, ErrTimeout
}

// PollFor runs a poll with the default Poller.
func PollFor(ctx context.Context, m Matcher, within, interval time.Duration, source LogSource) (Match, error) {
	return Poller{}.PollFor(ctx, m, within, interval, source)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
