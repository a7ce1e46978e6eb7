// Package transfer copies folders between the instructor machine and a set of
// devices concurrently, one copy per device.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agent462/lanshare/internal/executor"
	"github.com/agent462/lanshare/internal/grouper"
	"github.com/agent462/lanshare/internal/progress"
)

// Copier copies the contents of src into dst. Either side may be a remote
// "user@host:path" endpoint. A nil error means the copy succeeded.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// PathFunc builds the source or destination path for a device.
type PathFunc func(device int) string

// PartialFailureError reports that some copies of a batch failed. No
// rollback is done; destinations of failed devices may be incomplete.
type PartialFailureError struct {
	Failed  int
	Total   int
	Devices []int
	// Causes groups the failed devices by error, largest group first.
	Causes []grouper.FailureGroup
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d of %d transfers failed", e.Failed, e.Total)
}

// Report summarizes a finished batch.
type Report struct {
	Total     int
	Succeeded []int
	Failed    []int
}

// Engine runs batches of copies.
type Engine struct {
	copier   Copier
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

// New creates a transfer Engine.
func New(copier Copier, opts ...Option) *Engine {
	e := &Engine{
		copier:   copier,
		interval: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Batch copies srcOf(device) to dstOf(device) for every device at once and
// waits for all of them, writing progress to sig. The report lists devices
// in input order. If any copy failed, the report is returned together with
// a *PartialFailureError. An empty device list succeeds immediately.
func (e *Engine) Batch(ctx context.Context, devices []int, srcOf, dstOf PathFunc, sig *progress.Signal) (*Report, error) {
	exec := executor.New(executor.WithPollInterval(e.interval), executor.WithLogger(e.logger))

	var mu sync.Mutex
	errs := make(map[int]error)

	copyOne := func(ctx context.Context, device int) bool {
		src, dst := srcOf(device), dstOf(device)
		if err := e.copier.Copy(ctx, src, dst); err != nil {
			e.logger.Warn("transfer failed", "src", src, "dst", dst, "err", err)
			mu.Lock()
			errs[device] = err
			mu.Unlock()
			return false
		}
		e.logger.Debug("transfer finished", "src", src, "dst", dst)
		return true
	}

	outcomes, err := exec.Run(ctx, devices, copyOne, sig)
	if err != nil {
		return nil, err
	}

	succeeded, failed := executor.Partition(outcomes)
	report := &Report{Total: len(devices), Succeeded: succeeded, Failed: failed}
	if len(failed) > 0 {
		mu.Lock()
		failures := make([]grouper.Failure, len(failed))
		for i, d := range failed {
			failures[i] = grouper.Failure{Device: d, Err: errs[d]}
		}
		mu.Unlock()
		return report, &PartialFailureError{
			Failed:  len(failed),
			Total:   len(devices),
			Devices: failed,
			Causes:  grouper.ByReason(failures),
		}
	}
	return report, nil
}
