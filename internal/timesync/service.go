// Package timesync runs the serial ingest loop: raw bytes from the GPS
// receiver are reframed into sentences, classified, and folded into the
// time authority. One goroutine owns the serial fd and only copies raw
// chunks onto a channel; a second owns the framer and all authority state,
// so none of it needs locking.
package timesync

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gpstimed/internal/nmea"
	"gpstimed/internal/timeauth"
)

type Config struct {
	// Device may be empty to auto-detect.
	Device string
	Baud   int

	// GSARateCycles is the throttle asked of the receiver for the
	// fix-quality sentence: report every N cycles.
	GSARateCycles int

	// DisplayInterval paces the periodic clock/staleness log line.
	DisplayInterval time.Duration
}

// suppressedTypes are sentence types the receiver is told to stop sending.
// Seeing one of them again means the receiver power-cycled and forgot its
// configuration.
var suppressedTypes = []string{"GGA", "GLL", "GSV", "VTG"}

// Snapshot is the UI/diagnostic view of the loop. All fields are values; it
// is published whole through an atomic.Value.
type Snapshot struct {
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	ClockSet  bool   `json:"clock_set"`
	Authority string `json:"authority"`

	RMCSeen           bool `json:"rmc_seen"`
	BatteryBackedTime bool `json:"battery_backed_time"`
	Fix2D             bool `json:"fix_2d"`
	Fix3D             bool `json:"fix_3d"`

	LastCorrectionSec int64 `json:"last_correction_sec"`

	ChecksumFailures uint64 `json:"checksum_failures"`
	Overflows        uint64 `json:"overflows"`
	Runts            uint64 `json:"runts"`
	FrameRestarts    uint64 `json:"frame_restarts"`
	Malformed        uint64 `json:"malformed"`
	UntrustedTimes   uint64 `json:"untrusted_times"`
	DecayCorrections uint64 `json:"decay_corrections"`
	PersistWrites    uint64 `json:"persist_writes"`
	SpamEvents       uint64 `json:"spam_events"`

	LastError string `json:"last_error,omitempty"`
}

type Service struct {
	cfg  Config
	auth *timeauth.Authority

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu     sync.Mutex
	closer io.Closer

	// Owned by the processing goroutine.
	framer    nmea.Framer
	malformed uint64
	spam      uint64
}

// openSerialFn is a seam for tests; the default opens a real termios port.
var openSerialFn = func(path string, baud int) (io.ReadWriteCloser, error) {
	return openSerial(path, baud)
}

func New(cfg Config, auth *timeauth.Authority) *Service {
	s := &Service{cfg: cfg, auth: auth}
	s.last.Store(Snapshot{Device: cfg.Device, Baud: cfg.Baud, Authority: timeauth.Unset.String()})
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("timesync service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return fmt.Errorf("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
		s.cfg.Device = device
	}

	baud := s.cfg.Baud
	if baud == 0 {
		baud = 9600
	}

	port, err := openSerialFn(device, baud)
	if err != nil {
		return fmt.Errorf("serial open failed device=%s baud=%d: %w", device, baud, err)
	}
	s.closer = port

	if err := s.sendReceiverConfig(port); err != nil {
		// The receiver may simply not be listening yet; keep running and
		// let the spam detector retry.
		log.Printf("timesync: initial receiver config failed: %v", err)
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	chunks := make(chan []byte, 16)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(chunks)
		s.readLoop(childCtx, port, chunks)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = port.Close() }()
		s.processLoop(childCtx, port, chunks)
	}()

	log.Printf("timesync: gps enabled device=%s baud=%d", device, baud)
	s.publish()
	return nil
}

// readLoop owns the fd for reading. It does nothing but copy bytes; framing
// decisions all happen on the consumer side of the channel.
func (s *Service) readLoop(ctx context.Context, port io.Reader, chunks chan<- []byte) {
	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case <-ctx.Done():
				return
			case chunks <- chunk:
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				s.setError(fmt.Sprintf("gps read stopped: %v", err))
			}
			return
		}
	}
}

// processLoop is the single consumer: it owns the framer and the authority.
func (s *Service) processLoop(ctx context.Context, port io.Writer, chunks <-chan []byte) {
	interval := s.cfg.DisplayInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case chunk, ok := <-chunks:
			if !ok {
				// Read side stopped; keep ticking so the display and
				// snapshot stay live until shutdown.
				chunks = nil
				continue
			}
			for _, sent := range s.framer.Push(chunk) {
				s.handleSentence(port, sent)
			}
			s.publish()

		case <-ticker.C:
			s.displayTick()
			s.publish()
		}
	}
}

func (s *Service) handleSentence(port io.Writer, sent nmea.Sentence) {
	typ := sent.Type()

	for _, suppressed := range suppressedTypes {
		if typ == suppressed {
			// The receiver forgot its configuration: it power-cycled.
			s.spam++
			log.Printf("timesync: suppressed %s reappeared; receiver reset, re-sending config", typ)
			if err := s.sendReceiverConfig(port); err != nil {
				s.setError(fmt.Sprintf("receiver config resend failed: %v", err))
			}
			return
		}
	}

	switch typ {
	case nmea.TypeGSA:
		mode, err := nmea.ParseGSA(sent)
		if err != nil {
			s.malformed++
			log.Printf("timesync: unexpected GSA: %v", err)
			return
		}
		s.auth.ApplyFix(mode)

	case nmea.TypeRMC:
		t, ok, err := nmea.ParseRMC(sent)
		if err != nil {
			s.malformed++
			log.Printf("timesync: unexpected RMC: %v", err)
			return
		}
		if !ok {
			// Empty time/date fields: documented no-data behavior.
			return
		}
		s.auth.ApplyTime(t)
	}
}

func (s *Service) displayTick() {
	if s.auth.ClockSet() {
		log.Printf("timesync: clock %s authority=%s", time.Now().UTC().Format(time.RFC3339), s.auth.State())
		return
	}
	log.Printf("timesync: waiting for trusted time (rmc_seen=%v)", s.auth.Fix().RMCSeen)
}

// sendReceiverConfig suppresses the sentence types the time authority does
// not consume and throttles the fix-quality sentence. Sent at startup and
// again whenever spam indicates the receiver reset.
func (s *Service) sendReceiverConfig(w io.Writer) error {
	rate := s.cfg.GSARateCycles
	if rate <= 0 {
		rate = 1
	}
	for _, typ := range suppressedTypes {
		cmd := nmea.MsgRateCommand(typ, 0)
		if cmd == nil {
			return fmt.Errorf("command for %s exceeds buffer", typ)
		}
		if _, err := w.Write(cmd); err != nil {
			return err
		}
	}
	cmd := nmea.MsgRateCommand(nmea.TypeGSA, rate)
	if cmd == nil {
		return fmt.Errorf("gsa throttle command exceeds buffer")
	}
	if _, err := w.Write(cmd); err != nil {
		return err
	}
	return nil
}

func (s *Service) publish() {
	fix := s.auth.Fix()
	ctr := s.auth.Counters()
	fst := s.framer.Stats()
	cur := s.Snapshot()

	s.last.Store(Snapshot{
		Device: s.cfg.Device,
		Baud:   s.cfg.Baud,

		ClockSet:  s.auth.ClockSet(),
		Authority: s.auth.State().String(),

		RMCSeen:           fix.RMCSeen,
		BatteryBackedTime: fix.BatteryBackedTime,
		Fix2D:             fix.Fix2D,
		Fix3D:             fix.Fix3D,

		LastCorrectionSec: s.auth.LastCorrection(),

		ChecksumFailures: fst.ChecksumFailures,
		Overflows:        fst.Overflows,
		Runts:            fst.Runts,
		FrameRestarts:    fst.Restarts,
		Malformed:        s.malformed,
		UntrustedTimes:   ctr.UntrustedTimes,
		DecayCorrections: ctr.DecayCorrections,
		PersistWrites:    ctr.PersistWrites,
		SpamEvents:       s.spam,

		LastError: cur.LastError,
	})
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (s *Service) setError(msg string) {
	cur := s.Snapshot()
	cur.LastError = msg
	s.last.Store(cur)
	log.Printf("timesync: %s", msg)
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func autoDetectDevice() string {
	// Keep it intentionally tiny and predictable.
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
