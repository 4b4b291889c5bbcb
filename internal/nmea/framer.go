package nmea

// FrameCap bounds a single frame. NMEA sentences are typically < 82 chars;
// the headroom absorbs proprietary sentences without letting a corrupt
// stream grow a frame unboundedly.
const FrameCap = 128

// Sentence is one complete, checksum-verified frame: "$<body>*<hh>" with the
// CRLF terminator stripped. It is a private copy of the framer's buffer and
// is never mutated after emission.
type Sentence []byte

// Body returns the bytes strictly between the start marker and the checksum
// separator.
func (s Sentence) Body() []byte {
	return s[1 : len(s)-3]
}

// Type returns the 3-character sentence type ("RMC", "GSA", ...), normalized
// to be talker-independent, or "" when the address field does not look like
// a 5-character token followed by a comma.
func (s Sentence) Type() string {
	if len(s) < 8 || s[6] != ',' {
		return ""
	}
	for _, b := range s[1:6] {
		if (b < 'A' || b > 'Z') && (b < '0' || b > '9') {
			return ""
		}
	}
	return string(s[3:6])
}

// FramerStats counts frame-level drop conditions. All counts are cumulative
// since construction.
type FramerStats struct {
	Overflows        uint64
	Runts            uint64
	ChecksumFailures uint64
	Restarts         uint64 // '$' arrived mid-frame; partial frame discarded
}

// Framer reconstructs sentences from a raw byte stream one byte at a time,
// with no lookahead. It owns its buffer exclusively; callers must not feed
// it from more than one goroutine.
type Framer struct {
	buf      [FrameCap]byte
	n        int
	building bool
	stats    FramerStats
}

// Push processes every byte of chunk and returns the sentences completed by
// it, in arrival order. Frames are never fused: each returned Sentence is an
// independent copy. Callers that care about a single sentence type should
// apply results in order so the last occurrence wins.
func (f *Framer) Push(chunk []byte) []Sentence {
	var out []Sentence
	for _, b := range chunk {
		if s := f.feed(b); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// feed advances the state machine by one byte and returns a completed
// sentence, if any.
func (f *Framer) feed(b byte) Sentence {
	if b == StartMarker {
		// A new start marker always wins over an in-progress frame:
		// corruption is far more likely than two legitimate frames
		// overlapping.
		if f.building && f.n > 1 {
			f.stats.Restarts++
		}
		f.buf[0] = b
		f.n = 1
		f.building = true
		return nil
	}

	if !f.building {
		// Mid-sentence noise with no frame open; wait for the next '$'.
		return nil
	}

	if f.n == len(f.buf) {
		// Overflow: the frame is unrecoverable. Drop it and resync on the
		// next start marker.
		f.stats.Overflows++
		f.reset()
		return nil
	}
	f.buf[f.n] = b
	f.n++

	if f.n >= 2 && f.buf[f.n-2] == '\r' && f.buf[f.n-1] == '\n' {
		return f.complete()
	}
	return nil
}

// complete validates the finished frame and resets to idle.
func (f *Framer) complete() Sentence {
	n := f.n
	f.reset()

	if n < MinSentenceLen {
		f.stats.Runts++
		return nil
	}
	raw := f.buf[:n-2] // strip CRLF
	if !Verify(raw) {
		f.stats.ChecksumFailures++
		return nil
	}
	s := make(Sentence, len(raw))
	copy(s, raw)
	return s
}

func (f *Framer) reset() {
	f.n = 0
	f.building = false
}

// Stats returns a copy of the cumulative drop counters.
func (f *Framer) Stats() FramerStats {
	return f.stats
}
