package timesync

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gpstimed/internal/store"
	"gpstimed/internal/timeauth"
)

func frame(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	set int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	c.set++
	return nil
}

func (c *fakeClock) sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// fakePort delivers scripted chunks to Read and records Writes.
type fakePort struct {
	chunks chan []byte

	mu      sync.Mutex
	writes  [][]byte
	closed  bool
	closeCh chan struct{}
}

func newFakePort() *fakePort {
	return &fakePort{chunks: make(chan []byte, 16), closeCh: make(chan struct{})}
}

func (p *fakePort) push(data string) {
	p.chunks <- []byte(data)
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case chunk := <-p.chunks:
		return copy(b, chunk), nil
	case <-p.closeCh:
		return 0, io.EOF
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := make([]byte, len(b))
	copy(w, b)
	p.writes = append(p.writes, w)
	return len(b), nil
}

func (p *fakePort) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.closeCh)
	}
	return nil
}

func startTestService(t *testing.T) (*Service, *fakePort, *fakeClock) {
	t.Helper()

	port := newFakePort()
	prev := openSerialFn
	openSerialFn = func(path string, baud int) (io.ReadWriteCloser, error) {
		return port, nil
	}
	t.Cleanup(func() { openSerialFn = prev })

	clk := &fakeClock{now: time.Unix(0, 0)}
	st := store.New(filepath.Join(t.TempDir(), "fix.yaml"))
	auth := timeauth.New(clk, st, store.Default())

	svc := New(Config{Device: "/dev/ttyFAKE0", Baud: 9600, GSARateCycles: 5, DisplayInterval: time.Hour}, auth)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, port, clk
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServiceSetsClockFrom3DFixAndRMC(t *testing.T) {
	svc, port, clk := startTestService(t)

	port.push(frame("GPGSA,A,3,02,11,29,20,31,25,18,,,0.99,1.38"))
	port.push(frame("GPRMC,153938.00,A,4807.038,N,01131.000,E,0.0,0.0,160722,,,A"))

	waitFor(t, "clock set", func() bool { return svc.Snapshot().ClockSet })

	snap := svc.Snapshot()
	if snap.Authority != "3d" {
		t.Fatalf("expected 3d authority, got %q", snap.Authority)
	}
	if !snap.Fix3D || snap.Fix2D {
		t.Fatalf("expected fix3d only, got %+v", snap)
	}
	if clk.sets() == 0 {
		t.Fatalf("expected system clock write")
	}
	if !clk.Now().Equal(time.Date(2022, 7, 16, 15, 39, 38, 0, time.UTC)) {
		t.Fatalf("clock at %v", clk.Now())
	}
}

func TestServiceUntrustedRMCDoesNotSetClock(t *testing.T) {
	svc, port, clk := startTestService(t)

	port.push("$GPRMC,153938.00,V,,,,,,,160722,,,N*78\r\n")

	waitFor(t, "rmc seen", func() bool { return svc.Snapshot().RMCSeen })

	snap := svc.Snapshot()
	if snap.ClockSet {
		t.Fatalf("RMC with no trust context must not set the clock")
	}
	if snap.UntrustedTimes == 0 {
		t.Fatalf("expected untrusted time counter")
	}
	if clk.sets() != 0 {
		t.Fatalf("unexpected clock write")
	}
}

func TestServiceSendsInitialReceiverConfig(t *testing.T) {
	_, port, _ := startTestService(t)

	// Four suppressions plus the GSA throttle.
	waitFor(t, "initial config", func() bool { return port.writeCount() >= 5 })

	port.mu.Lock()
	defer port.mu.Unlock()
	if got := string(port.writes[0]); got != frame("PUBX,40,GGA,0,0,0,0,0,0") {
		t.Fatalf("first command mismatch: %q", got)
	}
	if got := string(port.writes[4]); got != frame("PUBX,40,GSA,0,5,0,0,0,0") {
		t.Fatalf("throttle command mismatch: %q", got)
	}
}

func TestServiceSpamTriggersConfigResend(t *testing.T) {
	svc, port, _ := startTestService(t)

	waitFor(t, "initial config", func() bool { return port.writeCount() >= 5 })

	// A suppressed sentence reappears: receiver power-cycled.
	port.push(frame("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))

	waitFor(t, "config resend", func() bool { return port.writeCount() >= 10 })
	if svc.Snapshot().SpamEvents != 1 {
		t.Fatalf("expected 1 spam event, got %d", svc.Snapshot().SpamEvents)
	}
}

func TestServiceChecksumFailureCounted(t *testing.T) {
	svc, port, _ := startTestService(t)

	good := frame("GPGSA,A,3,02,11,29,20,31,25,18,,,0.99,1.38")
	port.push(good[:len(good)-4] + "00\r\n")

	waitFor(t, "checksum failure", func() bool { return svc.Snapshot().ChecksumFailures == 1 })
	if svc.Snapshot().Fix3D {
		t.Fatalf("checksum-failed sentence must not change state")
	}
}

func TestServiceCloseStopsCleanly(t *testing.T) {
	svc, port, _ := startTestService(t)
	port.push(frame("GPGSA,A,2,02,11,29,,,,,,,1.20,1.38"))
	waitFor(t, "fix flag", func() bool { return svc.Snapshot().Fix2D })
	svc.Close()
	// Closing twice is a no-op.
	svc.Close()
}
