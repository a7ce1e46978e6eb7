package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"

	signal "github.com/agent462/lanshare/internal/progress"
)

// TUI shows each signal as an interactive bubbletea view on a terminal.
type TUI struct {
	In       io.Reader
	Out      io.Writer
	Interval time.Duration
	Logger   *slog.Logger
}

// Start runs the view until the signal leaves running or stop is called.
// stop blocks until the terminal is restored.
func (t *TUI) Start(title string, s *signal.Signal) (stop func()) {
	var opts []tea.ProgramOption
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	p := tea.NewProgram(NewModel(title, s, t.Interval), opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(); err != nil {
			logger := t.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("progress view failed", "title", title, "err", err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.Quit()
			<-done
		})
	}
}

// Plain prints a line whenever the whole-number percentage changes. It is
// used when output is not a terminal; it cannot cancel.
type Plain struct {
	Out      io.Writer
	Interval time.Duration
}

// Start polls s in the background until stop is called, then prints the
// final state.
func (p *Plain) Start(title string, s *signal.Signal) (stop func()) {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	quit := make(chan struct{})
	done := make(chan struct{})
	last := -1
	report := func() {
		if pct := percent(s.Fraction()); pct != last {
			last = pct
			fmt.Fprintf(p.Out, "%s: %d%%\n", title, pct)
		}
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				report()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
			report()
			if st := s.Poll(); st == signal.Cancelled {
				fmt.Fprintf(p.Out, "%s: %s\n", title, st)
			}
		})
	}
}
