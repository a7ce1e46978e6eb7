package executor

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agent462/lanshare/internal/progress"
)

func TestRun_PreservesDeviceOrder(t *testing.T) {
	// Devices complete in reverse order, but outcomes should match input order.
	devices := []int{0, 1, 2, 3}
	task := func(ctx context.Context, device int) bool {
		time.Sleep(time.Duration(len(devices)-device) * 10 * time.Millisecond)
		return device%2 == 0
	}

	e := New(WithPollInterval(time.Millisecond))
	sig := progress.New()
	outcomes, err := e.Run(context.Background(), devices, task, sig)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, o := range outcomes {
		if o.Device != devices[i] {
			t.Errorf("outcome[%d]: device = %d, want %d", i, o.Device, devices[i])
		}
		if o.OK != (devices[i]%2 == 0) {
			t.Errorf("outcome[%d]: ok = %v", i, o.OK)
		}
		if o.Duration == 0 {
			t.Errorf("outcome[%d]: duration should be non-zero", i)
		}
	}
	if sig.Poll() != progress.Finished {
		t.Errorf("signal state = %v, want finished", sig.Poll())
	}
	if sig.Fraction() != 1 {
		t.Errorf("fraction = %v, want 1", sig.Fraction())
	}
}

func TestRun_FullFanOut(t *testing.T) {
	// Every worker must be running before any is allowed to finish.
	const n = 30
	var started sync.WaitGroup
	started.Add(n)
	release := make(chan struct{})
	go func() {
		started.Wait()
		close(release)
	}()

	task := func(ctx context.Context, device int) bool {
		started.Done()
		select {
		case <-release:
			return true
		case <-time.After(5 * time.Second):
			return false
		}
	}

	devices := make([]int, n)
	for i := range devices {
		devices[i] = i
	}
	outcomes, err := New().Run(context.Background(), devices, task, progress.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ok, failed := Partition(outcomes)
	if len(ok) != n || len(failed) != 0 {
		t.Errorf("ok = %d, failed = %d; workers were not all dispatched up front", len(ok), len(failed))
	}
}

func TestRun_ProgressNonDecreasing(t *testing.T) {
	devices := make([]int, 20)
	for i := range devices {
		devices[i] = i
	}
	task := func(ctx context.Context, device int) bool {
		time.Sleep(time.Duration(rand.Intn(30)) * time.Millisecond)
		return true
	}

	sig := progress.New()
	var (
		mu      sync.Mutex
		samples []float64
	)
	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			case <-time.After(2 * time.Millisecond):
				mu.Lock()
				samples = append(samples, sig.Fraction())
				mu.Unlock()
			}
		}
	}()

	_, err := New(WithPollInterval(time.Millisecond)).Run(context.Background(), devices, task, sig)
	close(stop)
	<-sampled
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(samples); i++ {
		if samples[i] < samples[i-1] {
			t.Fatalf("progress went backwards: %v then %v", samples[i-1], samples[i])
		}
	}
	if sig.Fraction() != 1 {
		t.Errorf("final fraction = %v, want 1", sig.Fraction())
	}
}

func TestRun_CancelAbandonsWorkers(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Int32
	task := func(ctx context.Context, device int) bool {
		<-release
		finished.Add(1)
		return true
	}

	sig := progress.New()
	done := make(chan error, 1)
	go func() {
		_, err := New(WithPollInterval(time.Millisecond)).Run(context.Background(), []int{0, 1, 2}, task, sig)
		done <- err
	}()

	sig.Cancel()
	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if finished.Load() != 0 {
		t.Errorf("workers finished before release: %d", finished.Load())
	}
	close(release)
}

func TestRun_CancelStopsWorkerContext(t *testing.T) {
	stopped := make(chan struct{}, 2)
	task := func(ctx context.Context, device int) bool {
		select {
		case <-ctx.Done():
			stopped <- struct{}{}
		case <-time.After(2 * time.Second):
		}
		return false
	}

	sig := progress.New()
	done := make(chan error, 1)
	go func() {
		_, err := New(WithPollInterval(time.Millisecond)).Run(context.Background(), []int{0, 1}, task, sig)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	sig.Cancel()

	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("worker context still live after the signal was cancelled")
		}
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	task := func(ctx context.Context, device int) bool {
		started.Add(1)
		<-ctx.Done()
		return false
	}

	sig := progress.New()
	done := make(chan error, 1)
	go func() {
		_, err := New(WithPollInterval(time.Millisecond)).Run(ctx, []int{0, 1}, task, sig)
		done <- err
	}()

	for started.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sig.Poll() != progress.Cancelled {
		t.Errorf("signal state = %v, want cancelled", sig.Poll())
	}
}

func TestRun_ExternallyFinishedSignal(t *testing.T) {
	sig := progress.New()
	sig.Finish()

	task := func(ctx context.Context, device int) bool {
		time.Sleep(10 * time.Millisecond)
		return true
	}
	outcomes, err := New(WithPollInterval(time.Millisecond)).Run(context.Background(), []int{5, 6}, task, sig)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 2 || !outcomes[0].OK || !outcomes[1].OK {
		t.Errorf("unexpected outcomes %+v", outcomes)
	}
}

func TestRun_ZeroDevices(t *testing.T) {
	task := func(ctx context.Context, device int) bool {
		t.Fatal("task should not be called with zero devices")
		return false
	}

	sig := progress.New()
	outcomes, err := New().Run(context.Background(), nil, task, sig)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected 0 outcomes, got %d", len(outcomes))
	}
	if sig.Poll() != progress.Finished || sig.Fraction() != 1 {
		t.Errorf("signal = %v/%v, want finished at 1", sig.Poll(), sig.Fraction())
	}
}

func TestRun_NilSignal(t *testing.T) {
	task := func(ctx context.Context, device int) bool { return true }
	outcomes, err := New().Run(context.Background(), []int{1}, task, nil)
	if err != nil || len(outcomes) != 1 || !outcomes[0].OK {
		t.Fatalf("Run with nil signal: %+v, %v", outcomes, err)
	}
}

func TestPartition(t *testing.T) {
	ok, failed := Partition([]Outcome{
		{Device: 0, OK: false},
		{Device: 1, OK: true},
		{Device: 2, OK: true},
		{Device: 3, OK: false},
	})
	if len(ok) != 2 || ok[0] != 1 || ok[1] != 2 {
		t.Errorf("ok = %v", ok)
	}
	if len(failed) != 2 || failed[0] != 0 || failed[1] != 3 {
		t.Errorf("failed = %v", failed)
	}

	ok, failed = Partition(nil)
	if ok == nil || failed == nil {
		t.Error("Partition should return empty, non-nil slices")
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New()
	if e.interval != 100*time.Millisecond {
		t.Errorf("expected default interval 100ms, got %v", e.interval)
	}
	if e.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWithPollInterval_IgnoresInvalid(t *testing.T) {
	e := New(WithPollInterval(0), WithPollInterval(-time.Second), WithLogger(nil))
	if e.interval != 100*time.Millisecond {
		t.Errorf("expected default interval, got %v", e.interval)
	}
	if e.logger == nil {
		t.Error("nil logger should be ignored")
	}
}
