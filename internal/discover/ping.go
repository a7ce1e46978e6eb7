package discover

import (
	"context"
	"log/slog"
	"math"
	"net"
	"os/exec"
	"strconv"
	"time"
)

// PingProber checks liveness with the system ping binary. The host's
// network stack does the ICMP work; an exit status of zero means reachable.
type PingProber struct {
	// Command is the ping binary. Defaults to "ping".
	Command string
	// Count is the number of echo requests. Defaults to 1.
	Count int
	// Wait is the per-reply timeout, rounded up to whole seconds. Defaults to 1s.
	Wait   time.Duration
	Logger *slog.Logger
}

// Args returns the ping arguments for ip.
func (p *PingProber) Args(ip net.IP) []string {
	count := p.Count
	if count <= 0 {
		count = 1
	}
	wait := int(math.Ceil(p.Wait.Seconds()))
	if wait <= 0 {
		wait = 1
	}
	return []string{ip.String(), "-c", strconv.Itoa(count), "-W", strconv.Itoa(wait)}
}

// Probe runs ping once against ip.
func (p *PingProber) Probe(ctx context.Context, ip net.IP) bool {
	command := p.Command
	if command == "" {
		command = "ping"
	}
	args := p.Args(ip)
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("exec", "cmd", command, "args", args)

	// Output is discarded; only the exit status matters.
	cmd := exec.CommandContext(ctx, command, args...)
	return cmd.Run() == nil
}
