// Package pps watches the receiver's pulse-per-second output on a GPIO line
// and records when the last pulse arrived. This is presence telemetry (is
// the receiver alive and disciplined), not a timing source; sub-second
// timekeeping is out of scope.
package pps

import (
	"sync/atomic"
	"time"
)

type Monitor struct {
	lastPulseNano atomic.Int64
	closeFn       func() error
}

// LastPulse reports when the most recent pulse arrived. ok is false until
// the first pulse.
func (m *Monitor) LastPulse() (time.Time, bool) {
	n := m.lastPulseNano.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

func (m *Monitor) pulse(now time.Time) {
	m.lastPulseNano.Store(now.UnixNano())
}

func (m *Monitor) Close() error {
	if m == nil || m.closeFn == nil {
		return nil
	}
	err := m.closeFn()
	m.closeFn = nil
	return err
}

// Start opens the named GPIO line (e.g. "GPIO18") for rising-edge events.
func Start(line string) (*Monitor, error) {
	return openLine(line)
}
