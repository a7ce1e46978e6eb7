package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/agent462/lanshare/internal/workflow"
)

// Prompt asks confirmation questions on a terminal.
type Prompt struct {
	In        io.Reader
	Out       io.Writer
	Formatter *Formatter

	once    sync.Once
	lines   chan string
	readErr error
}

// Confirm prints the question and reads one answer line. "y", "yes", "j"
// and "ja" proceed; anything else, including end of input, aborts. If ctx
// is done while waiting, Confirm aborts with ctx.Err().
func (p *Prompt) Confirm(ctx context.Context, title, message string) (workflow.Decision, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Abort, err
	}
	p.once.Do(p.startReader)
	f := p.Formatter
	if f == nil {
		f = &Formatter{}
	}

	fmt.Fprintf(p.Out, "%s\n\n%s [y/N] ", f.colorize(title, colorCyan), message)
	var line string
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return workflow.Abort, ctx.Err()
	case l, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.Out)
			if p.readErr != nil {
				return workflow.Abort, fmt.Errorf("read answer: %w", p.readErr)
			}
			return workflow.Abort, nil
		}
		line = l
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "j", "ja":
		return workflow.Proceed, nil
	default:
		return workflow.Abort, nil
	}
}

// startReader reads In line by line in the background. A blocked read
// cannot be interrupted, so one reader serves every Confirm call.
func (p *Prompt) startReader() {
	p.lines = make(chan string)
	go func() {
		sc := bufio.NewScanner(p.In)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
		p.readErr = sc.Err()
		close(p.lines)
	}()
}
