package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	styleTask    = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	stylePercent = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("167"))
)

// BarRenderer draws a single-line progress bar, redrawn in place with \r.
type BarRenderer struct {
	w     io.Writer
	bar   progress.Model
	mu    sync.Mutex
	last  string
	width int
}

// NewBarRenderer creates a bar renderer writing to w.
func NewBarRenderer(w io.Writer) *BarRenderer {
	return &BarRenderer{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
	}
}

// Update redraws the bar.
func (b *BarRenderer) Update(task string, percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	line := fmt.Sprintf("%s %s %s",
		styleTask.Render(task),
		b.bar.ViewAs(percent/100),
		stylePercent.Render(fmt.Sprintf("%5.1f%%", percent)))
	if line == b.last {
		return
	}
	b.last = line
	b.width = max(b.width, lipgloss.Width(line))
	fmt.Fprintf(b.w, "\r%-*s", b.width, line)
}

// Done ends the line.
func (b *BarRenderer) Done(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !success {
		fmt.Fprint(b.w, " "+styleFailed.Render("failed"))
	}
	fmt.Fprintln(b.w)
}

// TextRenderer prints one line per whole-percent change, for logs and pipes.
type TextRenderer struct {
	w    io.Writer
	mu   sync.Mutex
	last int
}

// NewTextRenderer creates a text renderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w, last: -1}
}

// Update prints "task: 42%" when the whole percentage changed.
func (t *TextRenderer) Update(task string, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := int(percent)
	if p == t.last {
		return
	}
	t.last = p
	fmt.Fprintf(t.w, "%s: %d%%\n", task, p)
}

// Done prints nothing on success.
func (t *TextRenderer) Done(success bool) {
	if !success {
		fmt.Fprintln(t.w, "failed")
	}
}

// Nop discards all progress.
type Nop struct{}

// Update does nothing.
func (Nop) Update(string, float64) {}

// Done does nothing.
func (Nop) Done(bool) {}

// Auto returns a factory that draws bars on terminals and plain lines
// otherwise.
func Auto(f *os.File) RendererFactory {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return func(string) Renderer {
		if tty {
			return NewBarRenderer(f)
		}
		return NewTextRenderer(f)
	}
}
