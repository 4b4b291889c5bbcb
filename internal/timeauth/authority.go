// Package timeauth decides whether and how GPS-reported time is applied to
// the system clock, and tracks why the current time is trusted.
package timeauth

import (
	"log"
	"time"

	"gpstimed/internal/clock"
	"gpstimed/internal/nmea"
	"gpstimed/internal/store"
)

// State labels the current time authority. Precedence 3D > 2D > BBR is used
// for labeling only; it never suppresses a clock update.
type State int

const (
	Unset State = iota
	TrustedBBR
	Trusted2D
	Trusted3D
)

func (s State) String() string {
	switch s {
	case TrustedBBR:
		return "bbr"
	case Trusted2D:
		return "2d"
	case Trusted3D:
		return "3d"
	default:
		return "unset"
	}
}

// FixStatus is the set of independent trust flags. Fix2D and Fix3D are
// mutually exclusive by construction: both are cleared before one is
// conditionally set from a single fix-quality character.
type FixStatus struct {
	RMCSeen           bool
	BatteryBackedTime bool
	Fix2D             bool
	Fix3D             bool
}

// Counters are cumulative diagnostics since construction.
type Counters struct {
	ClockSets        uint64
	ClockSetErrors   uint64
	DecayCorrections uint64
	UntrustedTimes   uint64 // time/date events dropped for lack of trust
	PersistWrites    uint64
	PersistErrors    uint64
}

// Authority is single-owner state: it must only be driven from the one
// goroutine that consumes framed sentences.
type Authority struct {
	clk clock.Clock
	st  *store.Store

	fix      FixStatus
	clockSet bool

	// Last persisted record, to keep the steady-state write rate at one per
	// minute instead of one per fix-quality sentence.
	lastKind   string
	lastMinute int64

	prior         store.Record
	priorReported bool

	lastCorrection int64 // seconds, signed; most recent decay correction
	counters       Counters
}

// New builds an Authority over the given clock and store. prior is the
// record recovered at startup (store.Default() on first run).
func New(clk clock.Clock, st *store.Store, prior store.Record) *Authority {
	return &Authority{clk: clk, st: st, prior: prior, lastKind: store.KindNone}
}

// ApplyFix folds one fix-quality event into the trust flags. It never
// touches the clock value. Any accepted fix-quality sentence proves the
// receiver's time engine is alive, so battery-backed trust is set
// unconditionally; the fix flags follow the reported mode.
func (a *Authority) ApplyFix(mode nmea.FixMode) {
	a.fix.BatteryBackedTime = true
	a.fix.Fix2D = false
	a.fix.Fix3D = false
	switch mode {
	case nmea.Fix2D:
		a.fix.Fix2D = true
	case nmea.Fix3D:
		a.fix.Fix3D = true
	}

	if (mode == nmea.Fix2D || mode == nmea.Fix3D) && a.clockSet {
		a.persist(mode)
	}
}

// ApplyTime folds one time/date event into the clock. candidate must be a
// complete receiver-reported UTC timestamp. Without at least one trust flag
// the value may be stale or cached and is dropped.
func (a *Authority) ApplyTime(candidate time.Time) {
	a.fix.RMCSeen = true

	if !a.fix.BatteryBackedTime && !a.fix.Fix2D && !a.fix.Fix3D {
		a.counters.UntrustedTimes++
		return
	}

	epoch := candidate.Unix()
	if !a.clockSet {
		if err := a.clk.Set(candidate); err != nil {
			a.counters.ClockSetErrors++
			log.Printf("timeauth: clock set failed: %v", err)
			return
		}
		a.clockSet = true
		a.counters.ClockSets++
		log.Printf("timeauth: clock set to %s (%s)", candidate.UTC().Format(time.RFC3339), a.State())
		a.reportPrior(epoch)
		return
	}

	diff := epoch - a.clk.Now().Unix()
	if diff == 0 {
		return
	}
	// Decay correction: forced overwrite, never averaged or smoothed.
	if err := a.clk.Set(candidate); err != nil {
		a.counters.ClockSetErrors++
		log.Printf("timeauth: decay correction failed: %v", err)
		return
	}
	a.lastCorrection = diff
	a.counters.DecayCorrections++
	log.Printf("timeauth: decay correction %+ds (%s)", diff, a.State())
}

// reportPrior logs how stale the recovered record is, once, relative to the
// first trusted epoch. Before that point no local time is credible enough
// to measure against.
func (a *Authority) reportPrior(epoch int64) {
	if a.priorReported {
		return
	}
	a.priorReported = true
	if a.prior.LastFixEpoch <= 0 || a.prior.LastFixKind == store.KindNone {
		log.Printf("timeauth: no prior fix recorded")
		return
	}
	mins := (epoch - a.prior.LastFixEpoch) / 60
	log.Printf("timeauth: last %s fix %d minutes ago", a.prior.LastFixKind, mins)
}

func (a *Authority) persist(mode nmea.FixMode) {
	if a.st == nil {
		return
	}
	epoch := a.clk.Now().Unix()
	kind := mode.String()
	if kind == a.lastKind && epoch/60 == a.lastMinute {
		return
	}
	if err := a.st.Save(store.Record{LastFixEpoch: epoch, LastFixKind: kind}); err != nil {
		a.counters.PersistErrors++
		log.Printf("timeauth: persist failed: %v", err)
		return
	}
	a.lastKind = kind
	a.lastMinute = epoch / 60
	a.counters.PersistWrites++
}

// State reports the current authority, by precedence.
func (a *Authority) State() State {
	switch {
	case !a.clockSet:
		return Unset
	case a.fix.Fix3D:
		return Trusted3D
	case a.fix.Fix2D:
		return Trusted2D
	case a.fix.BatteryBackedTime:
		return TrustedBBR
	default:
		return Unset
	}
}

func (a *Authority) Fix() FixStatus     { return a.fix }
func (a *Authority) ClockSet() bool     { return a.clockSet }
func (a *Authority) Counters() Counters { return a.counters }

// LastCorrection returns the most recent decay correction in signed seconds
// (0 until the first correction).
func (a *Authority) LastCorrection() int64 { return a.lastCorrection }
