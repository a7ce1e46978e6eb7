package progress

import (
	"math"
	"sync"
	"testing"
)

func TestSignal_Lifecycle(t *testing.T) {
	s := New()
	if s.Poll() != Running {
		t.Fatalf("new signal state = %v, want running", s.Poll())
	}
	if s.Fraction() != 0 {
		t.Fatalf("new signal fraction = %v, want 0", s.Fraction())
	}

	s.Update(0.5)
	if s.Fraction() != 0.5 {
		t.Errorf("fraction = %v, want 0.5", s.Fraction())
	}

	// Latest write wins, even when it goes backwards.
	s.Update(0.25)
	if s.Fraction() != 0.25 {
		t.Errorf("fraction = %v, want 0.25", s.Fraction())
	}

	s.Finish()
	if s.Poll() != Finished {
		t.Errorf("state = %v, want finished", s.Poll())
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Finish")
	}

	// Idempotent, and a finished signal cannot become cancelled.
	s.Finish()
	s.Cancel()
	if s.Poll() != Finished {
		t.Errorf("state after Cancel on finished = %v", s.Poll())
	}
}

func TestSignal_Cancel(t *testing.T) {
	s := New()
	s.Cancel()
	s.Finish()
	if s.Poll() != Cancelled {
		t.Errorf("state = %v, want cancelled", s.Poll())
	}
	<-s.Done()
}

func TestSignal_Clamp(t *testing.T) {
	s := New()
	s.Update(1.7)
	if s.Fraction() != 1 {
		t.Errorf("fraction = %v, want 1", s.Fraction())
	}
	s.Update(-3)
	if s.Fraction() != 0 {
		t.Errorf("fraction = %v, want 0", s.Fraction())
	}
	s.Update(0.4)
	s.Update(math.NaN())
	if s.Fraction() != 0.4 {
		t.Errorf("NaN should be ignored, fraction = %v", s.Fraction())
	}
}

func TestSignal_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Update(float64(j) / 100)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Fraction()
				_ = s.Poll()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Finish()
		s.Cancel()
	}()
	wg.Wait()
	if s.Poll() == Running {
		t.Error("signal still running after Finish")
	}
}

func TestState_String(t *testing.T) {
	if Running.String() != "running" || Finished.String() != "finished" || Cancelled.String() != "cancelled" {
		t.Error("unexpected state names")
	}
	if State(42).String() != "unknown" {
		t.Error("unknown state should stringify as unknown")
	}
}
