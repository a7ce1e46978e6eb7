// Package grouper collapses per-device failures into groups that share a
// cause, so "12 devices: connection refused" is reported once.
package grouper

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sort"
	"strings"
)

// timeoutReason is the shared reason for every timed out device.
const timeoutReason = "timed out"

// Failure is the error one device reported.
type Failure struct {
	Device int
	Err    error
}

// FailureGroup is a set of devices that failed for the same reason.
type FailureGroup struct {
	Reason   string
	Devices  []int
	TimedOut bool
}

// ByReason groups failures by the first line of their error message.
// Timeouts form one group regardless of wording. The largest group comes
// first; on a tie, the group that appeared first wins. Devices within a
// group are sorted. Failures with a nil error are skipped.
func ByReason(failures []Failure) []FailureGroup {
	groups := make(map[string]*FailureGroup)
	// Track insertion order for deterministic output.
	var order []string

	for _, f := range failures {
		if f.Err == nil {
			continue
		}
		reason, timedOut := Reason(f.Err)
		g, ok := groups[reason]
		if !ok {
			g = &FailureGroup{Reason: reason, TimedOut: timedOut}
			groups[reason] = g
			order = append(order, reason)
		}
		g.Devices = append(g.Devices, f.Device)
	}

	out := make([]FailureGroup, 0, len(order))
	for _, reason := range order {
		g := groups[reason]
		sort.Ints(g.Devices)
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Devices) > len(out[j].Devices)
	})
	return out
}

// reasoner is implemented by errors that know a device-independent
// description of themselves.
type reasoner interface {
	Reason() string
}

// ipv4 matches device addresses, which would otherwise split groups.
var ipv4 = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}(?::\d+)?\b`)

// Reason reduces err to the text used for grouping and reports whether it
// is a timeout. Device addresses in the message are masked.
func Reason(err error) (reason string, timedOut bool) {
	if isTimeout(err) {
		return timeoutReason, true
	}
	var r reasoner
	if errors.As(err, &r) && r.Reason() != "" {
		return r.Reason(), false
	}
	msg := strings.TrimSpace(ipv4.ReplaceAllString(err.Error(), "<device>"))
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if msg == "" {
		msg = "unknown error"
	}
	return msg, false
}

// isTimeout checks if an error represents a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
