//go:build !linux

package clock

import (
	"fmt"
	"runtime"
	"time"
)

func setSystemTime(t time.Time) error {
	return fmt.Errorf("clock: setting system time not supported on %s", runtime.GOOS)
}
