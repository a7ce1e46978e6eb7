package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/agent462/lanshare/internal/workflow"
)

func TestFormatSingleLine(t *testing.T) {
	f := NewFormatter(false, false)
	got := f.Format(workflow.Notification{
		Category: workflow.CategoryComplete,
		Title:    "Fetch finished",
		Message:  "Fetching has finished",
	})
	if got != "Fetch finished: Fetching has finished\n" {
		t.Errorf("Format = %q", got)
	}
}

func TestFormatMultiLine(t *testing.T) {
	f := NewFormatter(false, false)
	got := f.Format(workflow.Notification{Title: "Share", Message: "line one\nline two\n"})
	want := "Share\n   line one\n   line two\n"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatEmptyMessage(t *testing.T) {
	f := NewFormatter(false, false)
	if got := f.Format(workflow.Notification{Title: "Cancelled"}); got != "Cancelled\n" {
		t.Errorf("Format = %q", got)
	}
}

func TestFormatColor(t *testing.T) {
	f := NewFormatter(false, true)
	tests := []struct {
		category string
		color    string
	}{
		{workflow.CategoryError, colorRed},
		{workflow.CategoryComplete, colorGreen},
		{workflow.CategoryNetwork, colorCyan},
	}
	for _, tt := range tests {
		got := f.Format(workflow.Notification{Category: tt.category, Title: "T", Message: "m"})
		if !strings.HasPrefix(got, tt.color+"T"+colorReset) {
			t.Errorf("%s: Format = %q", tt.category, got)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	f := NewFormatter(true, true)
	out := f.Format(workflow.Notification{
		Category: workflow.CategoryError,
		Title:    "Share incomplete",
		Message:  "1 of 3 transfers failed: S02",
	})

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["category"] != "transfer.error" || got["title"] != "Share incomplete" || got["message"] != "1 of 3 transfers failed: S02" {
		t.Errorf("decoded = %v", got)
	}
	if strings.Contains(out, "\033[") {
		t.Error("JSON output contains color codes")
	}
}

func TestTerminalNotify(t *testing.T) {
	var buf bytes.Buffer
	term := &Terminal{Out: &buf}
	term.Notify(workflow.Notification{Title: "Search", Message: "Found 3 student computers"})
	term.Notify(workflow.Notification{Title: "Cancelled"})

	want := "Search: Found 3 student computers\nCancelled\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestDesktopArgs(t *testing.T) {
	d := &Desktop{}
	got := d.Args(workflow.Notification{Category: "transfer.complete", Title: "Done", Message: "All files copied"})
	want := []string{"-c", "transfer.complete", "Done", "All files copied"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Args = %v, want %v", got, want)
	}

	got = d.Args(workflow.Notification{Title: "Done", Message: "x"})
	if len(got) != 2 {
		t.Errorf("Args without category = %v", got)
	}
}

func TestDesktopNotifyExitStatus(t *testing.T) {
	for _, bin := range []string{"true", "false"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
	n := workflow.Notification{Title: "T", Message: "m"}
	if err := (&Desktop{Command: "true"}).Notify(n); err != nil {
		t.Errorf("zero exit: %v", err)
	}
	if err := (&Desktop{Command: "false"}).Notify(n); err == nil {
		t.Error("non-zero exit should fail")
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(workflow.Notification) error { return f.err }

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("no notification daemon")
	m := Multi{failingNotifier{boom}, &Terminal{Out: &buf}}

	err := m.Notify(workflow.Notification{Title: "Search"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if buf.String() != "Search\n" {
		t.Errorf("later notifier not reached: %q", buf.String())
	}
}

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  workflow.Decision
	}{
		{"y\n", workflow.Proceed},
		{"YES\n", workflow.Proceed},
		{"ja\n", workflow.Proceed},
		{" j \n", workflow.Proceed},
		{"n\n", workflow.Abort},
		{"\n", workflow.Abort},
		{"maybe\n", workflow.Abort},
		{"", workflow.Abort},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := &Prompt{In: strings.NewReader(tt.input), Out: &out}
		got, err := p.Confirm(context.Background(), "Fetch", "S01, S02\n\nContinue?")
		if err != nil {
			t.Errorf("input %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("input %q: decision = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "S01, S02") || !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("input %q: prompt = %q", tt.input, out.String())
		}
	}
}

func TestPromptReusesReader(t *testing.T) {
	p := &Prompt{In: strings.NewReader("y\nn\n"), Out: &bytes.Buffer{}}
	first, _ := p.Confirm(context.Background(), "A", "?")
	second, _ := p.Confirm(context.Background(), "B", "?")
	if first != workflow.Proceed || second != workflow.Abort {
		t.Errorf("decisions = %v, %v", first, second)
	}
}

func TestPromptCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Prompt{In: strings.NewReader("y\n"), Out: &bytes.Buffer{}}
	got, err := p.Confirm(ctx, "A", "?")
	if got != workflow.Abort || !errors.Is(err, context.Canceled) {
		t.Errorf("Confirm = %v, %v", got, err)
	}
}

func TestPromptCancelWhileWaiting(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	p := &Prompt{In: r, Out: &bytes.Buffer{}}
	type result struct {
		d   workflow.Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := p.Confirm(ctx, "Share", "S01\n\nContinue?")
		done <- result{d, err}
	}()

	select {
	case got := <-done:
		if got.d != workflow.Abort || !errors.Is(got.err, context.Canceled) {
			t.Errorf("Confirm = %v, %v", got.d, got.err)
		}
	case <-time.After(time.Second):
		t.Fatal("Confirm kept waiting for input after ctx was cancelled")
	}
}
