package telnet

import "io"

// framing phase of the IAC state machine.
type phase uint8

const (
	phaseNormal phase = iota
	phaseIAC          // saw IAC, next byte decides
	phaseNego         // saw IAC WILL/WONT/DO/DONT, expecting one option byte
	phaseSub          // inside IAC SB ... IAC SE
)

// Framer filters a raw telnet byte stream. Control sequences are consumed
// (and unsolicited option offers declined); plain data bytes pass through.
//
// A Framer is owned by a single session goroutine and is not safe for
// concurrent use.
type Framer struct {
	w     io.Writer
	phase phase
	verb  byte // negotiation verb pending an option byte
	prev  byte // previous byte inside a subnegotiation block
}

// NewFramer creates a Framer that writes protocol replies to w.
func NewFramer(w io.Writer) *Framer {
	return &Framer{w: w}
}

// Negotiate sends the initial option burst: the server offers to suppress
// go-ahead, accept window-size reports, and take over echoing.
func (f *Framer) Negotiate() error {
	burst := []byte{
		IAC, DO, OptSGA,
		IAC, DO, OptNAWS,
		IAC, WILL, OptEcho,
		IAC, WILL, OptSGA,
	}
	_, err := f.w.Write(burst)
	return err
}

// Filter consumes one raw byte. It returns the data byte and true when the
// byte is plain data, or zero and false when the byte was protocol control.
func (f *Framer) Filter(b byte) (byte, bool) {
	switch f.phase {
	case phaseNormal:
		if b == IAC {
			f.phase = phaseIAC
			return 0, false
		}
		return b, true

	case phaseIAC:
		if b == IAC {
			// IAC IAC is an escaped literal 0xFF data byte.
			f.phase = phaseNormal
			return b, true
		}
		if b >= WILL && b <= DONT {
			f.phase = phaseNego
			f.verb = b
			return 0, false
		}
		if b == SB {
			f.phase = phaseSub
			f.prev = 0
			return 0, false
		}
		// Unrecognized command byte, drop it.
		f.phase = phaseNormal
		return 0, false

	case phaseNego:
		f.phase = phaseNormal
		f.decline(f.verb, b)
		return 0, false

	case phaseSub:
		// Subnegotiation payload is discarded, not interpreted. The block
		// ends at the IAC SE pair.
		if f.prev == IAC && b == SE {
			f.phase = phaseNormal
		}
		f.prev = b
		return 0, false
	}

	f.phase = phaseNormal
	return 0, false
}

// decline refuses a client-initiated option unless it is one the server
// proactively offered in Negotiate. WONT and DONT need no reply.
func (f *Framer) decline(verb, opt byte) {
	if opt == OptEcho || opt == OptSGA || opt == OptNAWS {
		return
	}
	switch verb {
	case WILL:
		f.w.Write([]byte{IAC, DONT, opt})
	case DO:
		f.w.Write([]byte{IAC, WONT, opt})
	}
}
