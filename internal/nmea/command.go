package nmea

import "fmt"

// MaxCommandLen bounds outgoing command frames. The rate command below is
// the longest command we build; AppendSentence refuses anything larger.
const MaxCommandLen = 48

// MsgRateCommand builds the receiver configuration frame
// "$PUBX,40,<type>,0,<rate>,0,0,0,0*CS\r\n".
//
// rate 0 suppresses the sentence type entirely; rate N asks for one report
// every N cycles. Returns nil when the framed command would not fit
// MaxCommandLen.
func MsgRateCommand(sentenceType string, rate int) []byte {
	if rate < 0 {
		return nil
	}
	body := fmt.Sprintf("PUBX,40,%s,0,%d,0,0,0,0", sentenceType, rate)
	return AppendSentence(nil, body, MaxCommandLen)
}
