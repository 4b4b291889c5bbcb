package nmea

import (
	"errors"
	"fmt"
	"time"
)

// Sentence types the time authority consumes. Everything else is passed
// through untouched (the spam detector looks at types too).
const (
	TypeGSA = "GSA" // fix quality
	TypeRMC = "RMC" // time and date
)

// FixMode is the interpreted GSA fix-quality character.
type FixMode int

const (
	FixNone FixMode = iota // '1': no fix (dead reckoning / none)
	Fix2D                  // '2'
	Fix3D                  // '3'
)

func (m FixMode) String() string {
	switch m {
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	default:
		return "none"
	}
}

// ErrMalformed marks a well-checksummed sentence that does not match the
// expected shape for its declared type. Callers log it and skip the
// sentence; it is never fatal.
var ErrMalformed = errors.New("nmea: malformed sentence")

// GSA: GNSS DOP and Active Satellites
// Fields:
//
//	0: talker+type
//	1: selection mode (A/M)
//	2: fix mode ('1' none, '2' 2D, '3' 3D)
//	3..14: satellite IDs
//	15: PDOP  16: HDOP  17: VDOP
//
// The fix mode character sits at a fixed offset in a fixed-width prefix
// ("$GPGSA,A,3,"); every offset assumption is checked before the read so a
// short or reshaped sentence is skipped, never read out of bounds.
func ParseGSA(s Sentence) (FixMode, error) {
	if len(s) < 11 || s[6] != ',' || s[8] != ',' || s[10] != ',' {
		return FixNone, fmt.Errorf("%w: gsa prefix shape", ErrMalformed)
	}
	switch s[9] {
	case '1':
		return FixNone, nil
	case '2':
		return Fix2D, nil
	case '3':
		return Fix3D, nil
	default:
		return FixNone, fmt.Errorf("%w: unexpected fix char %q", ErrMalformed, s[9])
	}
}

// RMC: Recommended Minimum Specific GNSS Data
// Fields:
//
//	0: talker+type
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	9: date (ddmmyy)
//
// ParseRMC returns ok=false with a nil error when the time or date field is
// empty: that is the receiver's documented no-data behavior, not an error.
// A non-empty field that fails its structural check returns ErrMalformed.
func ParseRMC(s Sentence) (t time.Time, ok bool, err error) {
	// Time field must begin right after the address field ("$GPRMC,").
	if len(s) < 8 || s[6] != ',' {
		return time.Time{}, false, fmt.Errorf("%w: rmc prefix shape", ErrMalformed)
	}

	fields := splitFields(s.Body())
	if len(fields) < 10 {
		return time.Time{}, false, fmt.Errorf("%w: rmc needs 9 comma boundaries, got %d", ErrMalformed, len(fields)-1)
	}

	tf, df := fields[1], fields[9]
	if len(tf) == 0 || len(df) == 0 {
		return time.Time{}, false, nil
	}

	// hhmmss with optional fractional seconds, which we ignore.
	if dot := indexByte(tf, '.'); dot != -1 {
		tf = tf[:dot]
	}
	if len(tf) != 6 || !allDigits(tf) {
		return time.Time{}, false, fmt.Errorf("%w: rmc time field %q", ErrMalformed, tf)
	}
	if len(df) != 6 || !allDigits(df) {
		return time.Time{}, false, fmt.Errorf("%w: rmc date field %q", ErrMalformed, df)
	}

	hh := digits2(tf[0:2])
	mm := digits2(tf[2:4])
	ss := digits2(tf[4:6])
	day := digits2(df[0:2])
	mon := digits2(df[2:4])
	yy := digits2(df[4:6])
	if hh > 23 || mm > 59 || ss > 60 || day < 1 || day > 31 || mon < 1 || mon > 12 {
		return time.Time{}, false, fmt.Errorf("%w: rmc field out of range", ErrMalformed)
	}

	// Two-digit year anchor: 00-69 are the 2000s, the rest the 1900s.
	year := 1900 + yy
	if yy <= 69 {
		year = 2000 + yy
	}

	return time.Date(year, time.Month(mon), day, hh, mm, ss, 0, time.UTC), true, nil
}

// LastOfType returns the last sentence of the given type from a drain, so
// later data supersedes earlier data. Single forward scan; no substring
// search semantics to depend on.
func LastOfType(sentences []Sentence, typ string) (Sentence, bool) {
	var found Sentence
	for _, s := range sentences {
		if s.Type() == typ {
			found = s
		}
	}
	return found, found != nil
}

func splitFields(body []byte) [][]byte {
	fields := make([][]byte, 0, 16)
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == ',' {
			fields = append(fields, body[start:i])
			start = i + 1
		}
	}
	return append(fields, body[start:])
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func digits2(b []byte) int {
	return int(b[0]-'0')*10 + int(b[1]-'0')
}
