// Package retry re-issues calls that failed with transient transport faults.
//
// A [Policy] combines three independent pieces: an attempt bound, a
// [Classifier] that decides whether an error is transient, and a [Wait]
// strategy that decides how long to pause between attempts. Either the
// classifier or the wait strategy can be swapped without touching the other.
//
// Errors raised before any network I/O (unknown procedures, bad parameters,
// incompatible server versions) are never retried, whatever the classifier
// says.
package retry

import (
	"context"
	"time"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

// Classifier decides whether an error is worth another attempt.
type Classifier interface {
	Retryable(err error) bool
}

// ClassifierFunc adapts a function to [Classifier].
type ClassifierFunc func(err error) bool

// Retryable calls f.
func (f ClassifierFunc) Retryable(err error) bool { return f(err) }

// Any reports an error as retryable if any of cs does.
func Any(cs ...Classifier) Classifier {
	return ClassifierFunc(func(err error) bool {
		for _, c := range cs {
			if c != nil && c.Retryable(err) {
				return true
			}
		}
		return false
	})
}

// Policy bounds and paces retries.
type Policy struct {
	Attempts   int // Total attempts including the first; values below 1 mean 1
	Classifier Classifier
	Wait       Wait

	// OnRetry, if set, is called before each pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Default retries driver and Flight transients 3 times with exponential
// backoff starting at one second.
func Default() Policy {
	return Policy{
		Attempts:   3,
		Classifier: Any(Neo4jClassifier{}, FlightClassifier{}),
		Wait:       Exponential{Initial: time.Second, Factor: 2, Max: 30 * time.Second},
	}
}

// Never returns a policy that attempts every call exactly once.
func Never() Policy {
	return Policy{Attempts: 1}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt bound is reached. It returns the last error unchanged, or
// ctx.Err() if the context ends during a pause.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.retryable(err) || i == attempts-1 {
			return err
		}

		delay := p.delay(i + 1)
		if p.OnRetry != nil {
			p.OnRetry(i+1, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (p Policy) retryable(err error) bool {
	if errors.Local(err) || p.Classifier == nil {
		return false
	}
	return p.Classifier.Retryable(err)
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Wait == nil {
		return 0
	}
	return p.Wait.Delay(attempt)
}
