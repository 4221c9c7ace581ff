// Package progress reports the progress of long-running GDS jobs.
//
// [Monitor.Run] executes the target call on a worker goroutine while the
// calling goroutine polls the job's status every [DefaultInterval] and feeds
// a [Renderer]. The worker's outcome always wins: a failed call returns
// exactly the worker's error, and a successful call always ends with a 100%
// render, whatever the last polled value was.
//
// Polling is best-effort. "Not found" responses are skipped silently, and
// any other polling failure is logged once per call.
package progress

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

// DefaultInterval is the polling interval.
const DefaultInterval = 500 * time.Millisecond

// Renderer displays the progress of one job.
type Renderer interface {
	// Update renders percent (0 to 100) for task.
	Update(task string, percent float64)

	// Done is called once after the job ended. It is not called for jobs
	// that never opened a renderer.
	Done(success bool)
}

// RendererFactory opens a renderer for a job the first time progress is
// known.
type RendererFactory func(label string) Renderer

// Monitor runs calls under progress polling.
type Monitor struct {
	Poller        Poller
	NewRenderer   RendererFactory
	Interval      time.Duration
	ServerVersion version.ServerVersion
	Disabled      bool
	Logger        *log.Logger
}

// Supported reports whether Run polls at all. Servers older than 2.1.0 do not
// log progress, so calls run directly.
func (m *Monitor) Supported() bool {
	return m != nil && !m.Disabled && m.Poller != nil && m.ServerVersion.AtLeast(version.ProgressLogging)
}

type outcome struct {
	res *table.Table
	err error
}

// Run executes fn and polls the progress of jobID until it returns. label
// names the job in the rendered output. The result and error are exactly
// those of fn.
func (m *Monitor) Run(ctx context.Context, jobID, label string, fn func(ctx context.Context) (*table.Table, error)) (*table.Table, error) {
	if !m.Supported() || jobID == "" {
		return fn(ctx)
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := fn(ctx)
		done <- outcome{res, err}
	}()

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	tick := ticker.C
	cancelled := ctx.Done()

	logger := m.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	// A zero limit never refills the single token: one warning per job.
	warn := rate.NewLimiter(0, 1)

	var (
		r       Renderer
		task    = label
		untrack bool // server reported n/a before any progress
	)

	for {
		select {
		case o := <-done:
			switch {
			case o.err != nil:
				if r != nil {
					r.Done(false)
				}
			case !untrack && m.NewRenderer != nil:
				if r == nil {
					r = m.NewRenderer(label)
				}
				r.Update(task, 100)
				r.Done(true)
			}
			return o.res, o.err

		case <-cancelled:
			// The server job keeps running; only polling stops.
			tick, cancelled = nil, nil

		case <-tick:
			st, found, err := m.Poller.Poll(ctx, jobID)
			if err != nil {
				if warn.Allow() {
					logger.Warn("unable to get progress", "job", jobID, "err", err)
				}
				continue
			}
			if !found {
				continue
			}
			if st.NotApplicable() {
				if r == nil {
					untrack = true
					tick = nil
				}
				continue
			}
			p, ok := st.Percent()
			if !ok || m.NewRenderer == nil {
				continue
			}
			if st.TaskName != "" {
				task = st.TaskName
			}
			if r == nil {
				r = m.NewRenderer(label)
			}
			r.Update(task, p)
		}
	}
}
