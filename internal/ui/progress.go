// Package ui shows a spinner while a run is in flight.
package ui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// JobDone is sent when the job returns.
type JobDone struct{}

// Model is the spinner program: it starts the job, spins until JobDone and
// cancels the job on ctrl+c, q or esc.
type Model struct {
	spinner  spinner.Model
	label    string
	job      func(context.Context)
	ctx      context.Context
	cancel   context.CancelFunc
	done     bool
	canceled bool
}

// NewModel creates a Model that runs job under ctx.
func NewModel(ctx context.Context, label string, job func(context.Context)) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	ctx, cancel := context.WithCancel(ctx)
	return Model{spinner: s, label: label, job: job, ctx: ctx, cancel: cancel}
}

// Init starts the spinner and the job.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m Model) run() tea.Msg {
	m.job(m.ctx)
	return JobDone{}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case JobDone:
		m.done = true
		m.cancel()
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The job sees the cancellation and returns; JobDone then quits.
			m.canceled = true
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner line, or nothing once the job is done.
func (m Model) View() string {
	if m.done {
		return ""
	}
	label := m.label
	if m.canceled {
		label += " (canceling)"
	}
	return m.spinner.View() + " " + label + "\n"
}

// Canceled reports whether the user interrupted the job.
func (m Model) Canceled() bool { return m.canceled }

// RunWithSpinner runs job while showing label next to a spinner on out. It
// returns context.Canceled if the user interrupted the job.
func RunWithSpinner(ctx context.Context, out io.Writer, label string, job func(context.Context), opts ...tea.ProgramOption) error {
	m := NewModel(ctx, label, job)
	opts = append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.Canceled() {
		return context.Canceled
	}
	return nil
}
