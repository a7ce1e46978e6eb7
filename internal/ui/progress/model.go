// Package progress renders a progress signal while a batch runs, either as
// an interactive terminal view or as plain percentage lines.
package progress

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	progressbar "charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"

	signal "github.com/agent462/lanshare/internal/progress"
)

const (
	defaultInterval = 100 * time.Millisecond
	defaultBarWidth = 40
	maxBarWidth     = 80
)

// tickMsg triggers the next poll of the signal.
type tickMsg struct{}

type keyMap struct {
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c", "q"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Model polls a signal and draws a bar for it. It quits once the signal
// leaves the running state. The cancel key cancels the signal.
type Model struct {
	title    string
	sig      *signal.Signal
	interval time.Duration
	keys     keyMap

	fraction float64
	state    signal.State
	bar      progressbar.Model
}

// NewModel creates a Model for s. A non-positive interval means 100ms.
func NewModel(title string, s *signal.Signal, interval time.Duration) Model {
	if interval <= 0 {
		interval = defaultInterval
	}
	return Model{
		title:    title,
		sig:      s,
		interval: interval,
		keys:     defaultKeyMap(),
		bar:      newBar(defaultBarWidth),
	}
}

// newBar draws a solid bar without its own percentage; View prints the
// percentage after it.
func newBar(width int) progressbar.Model {
	bar := progressbar.New(
		progressbar.WithColors(colorGreen),
		progressbar.WithFillCharacters(progressbar.DefaultFullCharFullBlock, progressbar.DefaultEmptyCharBlock),
		progressbar.WithoutPercentage(),
		progressbar.WithWidth(width),
	)
	bar.EmptyColor = colorSubtle
	return bar
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and the cancel key.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.fraction = m.sig.Fraction()
		m.state = m.sig.Poll()
		if m.state != signal.Running {
			return m, tea.Quit
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.bar.SetWidth(min(max(msg.Width-10, 10), maxBarWidth))
		return m, nil

	case tea.KeyPressMsg:
		if key.Matches(msg, m.keys.Cancel) {
			m.sig.Cancel()
			m.state = m.sig.Poll()
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the title, the bar and the key hint.
func (m Model) View() tea.View {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.fraction))
	fmt.Fprintf(&b, " %3d%%\n\n", percent(m.fraction))

	switch m.state {
	case signal.Cancelled:
		b.WriteString(cancelledStyle.Render("Cancelled"))
	case signal.Finished:
		b.WriteString("Done")
	default:
		h := m.keys.Cancel.Help()
		b.WriteString(helpKeyStyle.Render(h.Key) + helpDescStyle.Render(" "+h.Desc))
	}
	b.WriteString("\n")
	return tea.NewView(b.String())
}

func percent(fraction float64) int {
	return int(fraction*100 + 0.5)
}
