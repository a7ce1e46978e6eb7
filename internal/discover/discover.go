// Package discover finds which fleet devices are reachable right now.
package discover

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/agent462/lanshare/internal/executor"
	"github.com/agent462/lanshare/internal/fleet"
	"github.com/agent462/lanshare/internal/progress"
)

// ErrAllUnreachable is returned when no device in the fleet answered.
var ErrAllUnreachable = errors.New("no reachable devices found in the network")

// Prober checks whether a single address is alive. Implementations block
// until they have an answer or ctx is done.
type Prober interface {
	Probe(ctx context.Context, ip net.IP) bool
}

// Result partitions the fleet by probe outcome. Both lists are in
// ascending device order.
type Result struct {
	Reachable   []int
	Unreachable []int
}

// Engine probes every device of a fleet concurrently.
type Engine struct {
	prober   Prober
	interval time.Duration
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval sets how often progress is sampled.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a discovery Engine using prober.
func New(prober Prober, opts ...Option) *Engine {
	e := &Engine{
		prober:   prober,
		interval: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover probes every device in f once and partitions them. Progress is
// written to sig and sig is finished before Discover returns. When nobody
// answers, the full Result is returned together with ErrAllUnreachable.
func (e *Engine) Discover(ctx context.Context, f fleet.Fleet, sig *progress.Signal) (*Result, error) {
	devices := f.Devices()
	exec := executor.New(executor.WithPollInterval(e.interval), executor.WithLogger(e.logger))

	probe := func(ctx context.Context, device int) bool {
		ip := f.Address(device)
		if ip == nil {
			e.logger.Warn("device has no valid address", "device", f.ShortName(device))
			return false
		}
		ok := e.prober.Probe(ctx, ip)
		e.logger.Debug("probe finished", "device", f.ShortName(device), "ip", ip.String(), "reachable", ok)
		return ok
	}

	outcomes, err := exec.Run(ctx, devices, probe, sig)
	if err != nil {
		return nil, err
	}

	reachable, unreachable := executor.Partition(outcomes)
	res := &Result{Reachable: reachable, Unreachable: unreachable}
	if len(reachable) == 0 {
		return res, ErrAllUnreachable
	}
	return res, nil
}
