// Package report shows workflow questions and outcomes on the terminal or
// the desktop.
package report

import (
	"encoding/json"
	"strings"

	"github.com/agent462/lanshare/internal/workflow"
)

// ANSI color codes.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// Formatter formats notifications for terminal display.
type Formatter struct {
	JSON  bool
	Color bool
}

// NewFormatter creates a Formatter with the given options.
func NewFormatter(jsonOutput, color bool) *Formatter {
	return &Formatter{
		JSON:  jsonOutput,
		Color: color,
	}
}

// Format renders n as one line, or as indented lines when the message
// spans several.
func (f *Formatter) Format(n workflow.Notification) string {
	if f.JSON {
		data, _ := f.FormatJSON(n)
		return string(data) + "\n"
	}

	var b strings.Builder
	b.WriteString(f.colorize(n.Title, categoryColor(n.Category)))

	msg := strings.TrimRight(n.Message, "\n")
	lines := strings.Split(msg, "\n")
	if len(lines) == 1 {
		if msg != "" {
			b.WriteString(": ")
			b.WriteString(msg)
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString("   ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatJSON serializes a notification as a single JSON object.
func (f *Formatter) FormatJSON(n workflow.Notification) ([]byte, error) {
	type jsonNotification struct {
		Category string `json:"category"`
		Title    string `json:"title"`
		Message  string `json:"message"`
	}
	return json.Marshal(jsonNotification{
		Category: n.Category,
		Title:    n.Title,
		Message:  n.Message,
	})
}

func categoryColor(category string) string {
	switch category {
	case workflow.CategoryError:
		return colorRed
	case workflow.CategoryComplete:
		return colorGreen
	default:
		return colorCyan
	}
}

func (f *Formatter) colorize(text, color string) string {
	if !f.Color {
		return text
	}
	return color + text + colorReset
}
