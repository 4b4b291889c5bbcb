// Package clock wraps the system wall clock so the time authority can be
// driven against a fake in tests and so the Settimeofday call stays behind a
// build tag.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// Set overwrites the wall clock. Sub-second precision is out of scope;
	// implementations may truncate to whole seconds.
	Set(t time.Time) error
}

// System returns the process wall clock. Set requires CAP_SYS_TIME and only
// works on linux; elsewhere it reports an error and the daemon keeps running
// in observe-only mode.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) Set(t time.Time) error { return setSystemTime(t) }
