package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agent462/lanshare/internal/progress"
)

// ErrCancelled is returned when the progress signal was cancelled while
// workers were still running.
var ErrCancelled = errors.New("operation cancelled")

// Task performs the blocking work for a single device and reports success.
type Task func(ctx context.Context, device int) bool

// Executor fans a task out to one goroutine per device and drives a
// progress signal while waiting for them.
type Executor struct {
	interval time.Duration
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithPollInterval sets how often the driving loop samples worker completion.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Executor with the given options.
func New(opts ...Option) *Executor {
	e := &Executor{
		interval: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts task for every device before waiting on any of them. While
// workers are outstanding it writes completed/total to sig at every poll.
// Outcomes are returned in the order of devices regardless of completion
// order, and sig is finished once all workers have joined.
//
// If sig is cancelled or ctx is done first, Run stops waiting and returns
// ErrCancelled or ctx.Err(). The context handed to the workers is cancelled
// at that point, so subprocesses started with it are killed. The workers
// are joined in the background and their outcomes are discarded.
func (e *Executor) Run(ctx context.Context, devices []int, task Task, sig *progress.Signal) ([]Outcome, error) {
	if sig == nil {
		sig = progress.New()
	}
	outcomes := make([]Outcome, len(devices))
	if len(devices) == 0 {
		sig.Update(1)
		sig.Finish()
		return outcomes, nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	var (
		g         errgroup.Group
		completed atomic.Int64
	)
	for i, device := range devices {
		g.Go(func() error {
			start := time.Now()
			o := Outcome{Device: device, OK: task(workCtx, device), Duration: time.Since(start)}
			outcomes[i] = o
			completed.Add(1)
			e.logger.Debug("worker finished", "device", o.Device, "ok", o.OK, "took", o.Duration)
			return nil
		})
	}

	joined := make(chan struct{})
	go func() {
		_ = g.Wait()
		cancel()
		close(joined)
	}()

	total := float64(len(devices))
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// A signal finished by someone else only stops being watched.
	sigDone := sig.Done()
	for {
		sig.Update(float64(completed.Load()) / total)

		select {
		case <-joined:
			sig.Update(1)
			sig.Finish()
			return outcomes, nil
		case <-sigDone:
			if sig.Poll() == progress.Cancelled {
				e.logger.Debug("abandoning workers after cancel",
					"running", len(devices)-int(completed.Load()))
				cancel()
				return nil, ErrCancelled
			}
			sigDone = nil
		case <-ctx.Done():
			cancel()
			sig.Cancel()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
