package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AshkanYarmoradi/go-herald/cli/styles"
)

// DelegationMsg reports one finished delegation to a ProgressModel.
type DelegationMsg struct {
	Event string
	Err   error
}

// ProgressModel is a progress bar over a known number of delegations.
type ProgressModel struct {
	progress progress.Model
	total    int
	done     int
	failed   int
	message  string
}

// NewProgress creates a progress bar expecting total delegations.
func NewProgress(total int) ProgressModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return ProgressModel{
		progress: p,
		total:    total,
		message:  "waiting",
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case DelegationMsg:
		m.done++
		if msg.Err != nil {
			m.failed++
			m.message = fmt.Sprintf("%s failed", msg.Event)
		} else {
			m.message = msg.Event
		}
		if m.Complete() {
			return m, tea.Quit
		}
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Percent returns the finished fraction in [0, 1].
func (m ProgressModel) Percent() float64 {
	if m.total <= 0 {
		return 1
	}
	p := float64(m.done) / float64(m.total)
	if p > 1 {
		return 1
	}
	return p
}

// Complete reports whether every expected delegation finished.
func (m ProgressModel) Complete() bool {
	return m.done >= m.total
}

func (m ProgressModel) View() string {
	counter := fmt.Sprintf("%d/%d", m.done, m.total)
	if m.Complete() {
		summary := counter + " delegations"
		if m.failed > 0 {
			return styles.FormatWarning(fmt.Sprintf("%s, %d failed", summary, m.failed)) + "\n"
		}
		return styles.FormatSuccess(summary) + "\n"
	}

	return m.progress.ViewAs(m.Percent()) + " " + counter + " " + styles.Muted.Render(m.message) + "\n"
}
