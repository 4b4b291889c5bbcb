//go:build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

func setSystemTime(t time.Time) error {
	tv := unix.NsecToTimeval(t.Truncate(time.Second).UnixNano())
	return unix.Settimeofday(&tv)
}
