//go:build !linux

package pps

import (
	"fmt"
	"runtime"
)

func openLine(lineName string) (*Monitor, error) {
	return nil, fmt.Errorf("pps: gpio not supported on %s", runtime.GOOS)
}
