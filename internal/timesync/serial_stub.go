//go:build !linux

package timesync

import (
	"fmt"
	"os"
	"runtime"
)

func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("serial gps not supported on %s", runtime.GOOS)
}
