//go:build linux

package pps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests the named line for rising-edge events via the Linux
// GPIO character device. On a Pi, header GPIOs usually live on gpiochip0,
// but kernel variants differ, so every /dev/gpiochip* is tried.
func openLine(lineName string) (*Monitor, error) {
	if strings.TrimSpace(lineName) == "" {
		return nil, fmt.Errorf("pps: empty gpio line name")
	}

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	m := &Monitor{}
	handler := func(evt gpiocdev.LineEvent) {
		if evt.Type == gpiocdev.LineEventRisingEdge {
			m.pulse(time.Now())
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithEventHandler(handler),
			gpiocdev.WithConsumer("gpstimed-pps"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		m.closeFn = func() error {
			err1 := line.Close()
			_ = chip.Close()
			return err1
		}
		return m, nil
	}

	return nil, fmt.Errorf("pps: gpio line %q not found (or busy)", lineName)
}
