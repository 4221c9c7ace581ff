package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/mattn/go-isatty"
)

// connectSpinner shows the phase of connection setup on a terminal: the
// Bolt handshake, then bulk channel negotiation. It writes nothing when out
// is not a terminal.
type connectSpinner struct {
	out   io.Writer
	live  bool
	style spinner.Spinner

	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	stop    sync.Once

	mu      sync.Mutex
	message string
	drawn   int // width of the widest line drawn
}

// newConnectSpinner creates a spinner on f, animated only if f is a terminal.
func newConnectSpinner(ctx context.Context, f *os.File, message string) *connectSpinner {
	live := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return newSpinnerTo(ctx, f, live, message)
}

func newSpinnerTo(ctx context.Context, out io.Writer, live bool, message string) *connectSpinner {
	sctx, cancel := context.WithCancel(ctx)
	return &connectSpinner{
		out:     out,
		live:    live,
		style:   spinner.MiniDot,
		parent:  ctx,
		ctx:     sctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		message: message,
	}
}

// Start animates until Stop is called or the context ends.
func (s *connectSpinner) Start() {
	if !s.live {
		close(s.stopped)
		return
	}
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.style.FPS)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.draw(s.style.Frames[i%len(s.style.Frames)])
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Phase replaces the message shown next to the spinner.
func (s *connectSpinner) Phase(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop ends the animation and clears the line. It may be called repeatedly.
func (s *connectSpinner) Stop() {
	s.stop.Do(func() {
		s.cancel()
		<-s.stopped
		if s.live {
			s.mu.Lock()
			fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.drawn))
			s.mu.Unlock()
		}
	})
}

// Fail stops the spinner and reports message as an error.
func (s *connectSpinner) Fail(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the caller's context has ended.
func (s *connectSpinner) Cancelled() bool {
	return s.parent.Err() != nil
}

func (s *connectSpinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := styleIconSpinner.Render(frame) + " " + StyleDim.Render(s.message)
	// Pad over the remains of a longer previous phase.
	w := len(s.message) + 2
	pad := ""
	if s.drawn > w {
		pad = strings.Repeat(" ", s.drawn-w)
	}
	s.drawn = max(s.drawn, w)
	fmt.Fprintf(s.out, "\r%s%s", line, pad)
}
