package report

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/agent462/lanshare/internal/workflow"
)

// Terminal writes notifications to Out.
type Terminal struct {
	Out       io.Writer
	Formatter *Formatter

	mu sync.Mutex
}

// Notify prints n.
func (t *Terminal) Notify(n workflow.Notification) error {
	f := t.Formatter
	if f == nil {
		f = &Formatter{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.Out, f.Format(n))
	return err
}

// Desktop sends notifications through notify-send.
type Desktop struct {
	// Command is the notification binary. Defaults to "notify-send".
	Command string
}

// Args builds the notify-send argument list for n.
func (d *Desktop) Args(n workflow.Notification) []string {
	var args []string
	if n.Category != "" {
		args = append(args, "-c", n.Category)
	}
	return append(args, n.Title, n.Message)
}

// Notify runs the notification command once.
func (d *Desktop) Notify(n workflow.Notification) error {
	command := d.Command
	if command == "" {
		command = "notify-send"
	}
	out, err := exec.CommandContext(context.Background(), command, d.Args(n)...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// Multi delivers every notification to each notifier in turn and returns
// the first error.
type Multi []workflow.Notifier

// Notify fans n out to all notifiers.
func (m Multi) Notify(n workflow.Notification) error {
	var first error
	for _, notifier := range m {
		if err := notifier.Notify(n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
