package executor

import "time"

// Outcome is the result of one worker. Each worker writes only its own.
type Outcome struct {
	Device   int
	OK       bool
	Duration time.Duration
}

// Partition splits outcomes into succeeded and failed device indices,
// preserving the outcome order.
func Partition(outcomes []Outcome) (ok, failed []int) {
	ok = []int{}
	failed = []int{}
	for _, o := range outcomes {
		if o.OK {
			ok = append(ok, o.Device)
		} else {
			failed = append(failed, o.Device)
		}
	}
	return ok, failed
}
