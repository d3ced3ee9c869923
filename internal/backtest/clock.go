package backtest

import (
	"fmt"
	"time"
)

type ClockState string

const (
	Running  ClockState = "running"
	Finished ClockState = "finished"
)

// Clock is the simulation time cursor. It only moves forward, one Step at a
// time, and is finished once Current reaches End.
type Clock struct {
	Current time.Time
	End     time.Time
	Step    time.Duration
}

func NewClock(start, end time.Time, step time.Duration) (*Clock, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be > 0, got %s", step)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return &Clock{Current: start, End: end, Step: step}, nil
}

func (c Clock) Finished() bool { return !c.Current.Before(c.End) }

func (c Clock) State() ClockState {
	if c.Finished() {
		return Finished
	}
	return Running
}

func (c *Clock) Advance() { c.Current = c.Current.Add(c.Step) }

// StepsBetween is the number of steps a run from start to end performs,
// ceil((end - start) / step).
func StepsBetween(start, end time.Time, step time.Duration) int {
	if step <= 0 || !end.After(start) {
		return 0
	}
	d := end.Sub(start)
	n := int(d / step)
	if d%step != 0 {
		n++
	}
	return n
}
