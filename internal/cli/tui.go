package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	gdsprogress "github.com/neo4j/graph-data-science-client-sub004/pkg/progress"
)

// =============================================================================
// JobModel - Progress of a running procedure
// =============================================================================

type jobUpdateMsg struct {
	task    string
	percent float64
}

type jobDoneMsg struct {
	success bool
}

// JobModel is the bubbletea model for a single tracked job.
type JobModel struct {
	Label   string
	Task    string
	Percent float64
	Done    bool
	Success bool

	bar progress.Model
}

// NewJobModel creates a job model for the procedure named label.
func NewJobModel(label string) JobModel {
	return JobModel{
		Label: label,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
	}
}

func (m JobModel) Init() tea.Cmd {
	return nil
}

func (m JobModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case jobUpdateMsg:
		m.Task = msg.task
		m.Percent = msg.percent
	case jobDoneMsg:
		m.Done = true
		m.Success = msg.success
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = min(30, max(10, msg.Width-40))
	}
	return m, nil
}

func (m JobModel) View() string {
	if m.Done {
		icon := styleIconSuccess.Render(iconSuccess)
		if !m.Success {
			icon = styleIconError.Render(iconError)
		}
		return fmt.Sprintf("%s %s %s\n", icon, m.Label, StyleDim.Render(fmt.Sprintf("%.1f%%", m.Percent)))
	}
	task := m.Task
	if task == "" {
		task = m.Label
	}
	return fmt.Sprintf("%s %s %s\n",
		StyleHighlight.Render(task),
		m.bar.ViewAs(m.Percent/100),
		StyleDim.Render(fmt.Sprintf("%5.1f%%", m.Percent)))
}

// =============================================================================
// Renderer adapters
// =============================================================================

// teaRenderer drives a JobModel program from progress monitor callbacks.
type teaRenderer struct {
	program  *tea.Program
	finished chan struct{}
}

func newTeaRenderer(label string, out io.Writer) *teaRenderer {
	r := &teaRenderer{
		program:  tea.NewProgram(NewJobModel(label), tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()),
		finished: make(chan struct{}),
	}
	go func() {
		defer close(r.finished)
		_, _ = r.program.Run()
	}()
	return r
}

func (r *teaRenderer) Update(task string, percent float64) {
	r.program.Send(jobUpdateMsg{task: task, percent: percent})
}

func (r *teaRenderer) Done(success bool) {
	r.program.Send(jobDoneMsg{success: success})
	<-r.finished
}

// newRendererFactory draws an interactive bar on terminals and plain lines
// otherwise.
func newRendererFactory(f *os.File) gdsprogress.RendererFactory {
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return func(string) gdsprogress.Renderer { return gdsprogress.NewTextRenderer(f) }
	}
	return func(label string) gdsprogress.Renderer { return newTeaRenderer(label, f) }
}
