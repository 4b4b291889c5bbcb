package nmea

import "fmt"

const (
	// StartMarker opens every sentence on the wire.
	StartMarker = '$'
	// ChecksumSep separates the body from the two checksum hex digits.
	ChecksumSep = '*'

	// MinSentenceLen is the shortest viable frame including the CRLF
	// terminator: "$" + body + "*" + two hex digits + CR + LF. Anything
	// shorter is a truncated fragment and is rejected before any checksum
	// work.
	MinSentenceLen = 10
)

// Checksum XOR-accumulates every byte of body. Callers pass the bytes
// strictly between the start marker and the checksum separator, both
// exclusive.
//
// The XOR checksum is deliberately weak (paired bit flips cancel); receiver
// compatibility fixes the algorithm.
func Checksum(body []byte) byte {
	ck := byte(0)
	for i := 0; i < len(body); i++ {
		ck ^= body[i]
	}
	return ck
}

// Verify checks a framed sentence "$<body>*<hh>" (terminator already
// stripped) against its claimed checksum. The comparison is case-sensitive:
// receivers emit uppercase and so do we.
func Verify(sentence []byte) bool {
	if len(sentence) < MinSentenceLen-2 { // terminator already stripped
		return false
	}
	if sentence[0] != StartMarker {
		return false
	}
	sep := len(sentence) - 3
	if sentence[sep] != ChecksumSep {
		return false
	}
	claimed := sentence[sep+1:]
	want := fmt.Sprintf("%02X", Checksum(sentence[1:sep]))
	return claimed[0] == want[0] && claimed[1] == want[1]
}

// AppendSentence frames body as "$<body>*<hh>\r\n" and appends it to dst.
// It returns nil if the framed sentence would make dst exceed max, so
// callers must size buffers to the longest command they construct.
func AppendSentence(dst []byte, body string, max int) []byte {
	need := len(dst) + 1 + len(body) + 3 + 2
	if need > max {
		return nil
	}
	dst = append(dst, StartMarker)
	dst = append(dst, body...)
	dst = append(dst, ChecksumSep)
	dst = append(dst, fmt.Sprintf("%02X", Checksum([]byte(body)))...)
	dst = append(dst, '\r', '\n')
	return dst
}
