package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Task is one unit of work tracked by the spinner.
type Task struct {
	ID    string
	Label string
}

// CompletionInfo describes a finished task.
type CompletionInfo struct {
	ID      string
	Success bool
	Error   string
}

// SpinnerShouldShow returns true if the spinner should be displayed.
// The spinner is hidden for quiet mode, structured output, or non-TTY (piped) output.
func SpinnerShouldShow(quiet, structured, nonTTY bool) bool {
	return !quiet && !structured && !nonTTY
}

// SpinnerRun shows a spinner line per task while work runs. work must call
// onComplete once per task; SpinnerRun returns after work returns and the
// program has exited.
func SpinnerRun(tasks []Task, work func(onComplete func(CompletionInfo))) error {
	if len(tasks) == 0 {
		work(func(CompletionInfo) {})
		return nil
	}

	m := newSpinnerModel(tasks)
	p := tea.NewProgram(m)

	done := make(chan struct{})
	go func() {
		work(func(info CompletionInfo) {
			p.Send(spinnerCompletionMsg(info))
		})
		close(done)
		p.Send(spinnerDoneMsg{})
	}()

	_, err := p.Run()
	<-done
	if err != nil {
		return fmt.Errorf("running spinner: %w", err)
	}
	return nil
}

// spinnerCompletionMsg is sent to the model when a task completes.
type spinnerCompletionMsg CompletionInfo

// spinnerDoneMsg is sent when work returns, in case it skipped a task.
type spinnerDoneMsg struct{}

type spinnerModel struct {
	spinner     spinner.Model
	tasks       []Task
	inflight    map[string]bool
	completions map[string]CompletionInfo
	quitting    bool
}

var (
	spinnerCheckStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	spinnerErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func newSpinnerModel(tasks []Task) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	inflight := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inflight[t.ID] = true
	}

	return spinnerModel{
		spinner:     s,
		tasks:       append([]Task(nil), tasks...),
		inflight:    inflight,
		completions: make(map[string]CompletionInfo),
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerCompletionMsg:
		info := CompletionInfo(msg)

		// Ignore duplicates
		if !m.inflight[info.ID] {
			return m, nil
		}

		m.completions[info.ID] = info
		delete(m.inflight, info.ID)

		if len(m.inflight) == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinnerDoneMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m spinnerModel) View() string {
	// Nothing is left on screen once every task is done.
	if m.quitting {
		return ""
	}

	var b strings.Builder
	for i, t := range m.tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		label := t.Label
		if label == "" {
			label = t.ID
		}

		if c, done := m.completions[t.ID]; done {
			if c.Success {
				b.WriteString(spinnerCheckStyle.Render("✓"))
			} else {
				b.WriteString(spinnerErrStyle.Render("✗"))
			}
		} else {
			b.WriteString(m.spinner.View())
		}
		b.WriteString(" ")
		b.WriteString(label)
	}

	return b.String()
}
