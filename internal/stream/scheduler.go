package stream

import "time"

// Timer is a handle to a scheduled callback
type Timer interface {
	// Stop cancels the callback; it reports false if it already ran or was stopped
	Stop() bool
}

// Scheduler runs a callback after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// TimeScheduler schedules callbacks on the runtime timer
type TimeScheduler struct{}

// AfterFunc wraps time.AfterFunc
func (TimeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
