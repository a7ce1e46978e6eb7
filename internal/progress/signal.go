// Package progress provides the shared progress state that the engines
// write and a presentation surface reads.
package progress

import (
	"math"
	"sync"
	"sync/atomic"
)

// State is the completion state of a Signal.
type State int32

const (
	Running State = iota
	Finished
	Cancelled
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Signal carries a fraction in [0, 1] and a completion state. All methods
// are safe for concurrent use. The zero value is not usable; call New.
type Signal struct {
	bits  atomic.Uint64
	state atomic.Int32
	done  chan struct{}
	once  sync.Once
}

// New returns a running signal at 0%.
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Update overwrites the current fraction. Values outside [0, 1] are clamped
// and NaN is ignored. The last write wins.
func (s *Signal) Update(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))
	s.bits.Store(math.Float64bits(fraction))
}

// Fraction returns the last written fraction.
func (s *Signal) Fraction() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Poll returns the current state without blocking.
func (s *Signal) Poll() State {
	return State(s.state.Load())
}

// Finish moves a running signal to Finished. It is a no-op once the signal
// has left Running.
func (s *Signal) Finish() {
	s.terminate(Finished)
}

// Cancel moves a running signal to Cancelled. It is a no-op once the signal
// has left Running.
func (s *Signal) Cancel() {
	s.terminate(Cancelled)
}

// Done is closed when the signal leaves Running.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

func (s *Signal) terminate(to State) {
	if s.state.CompareAndSwap(int32(Running), int32(to)) {
		s.once.Do(func() { close(s.done) })
	}
}
