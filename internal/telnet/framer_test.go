package telnet

import (
	"bytes"
	"testing"
)

// feed pushes raw bytes through the framer and collects the forwarded data.
func feed(f *Framer, raw []byte) []byte {
	var out []byte
	for _, b := range raw {
		if c, ok := f.Filter(b); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestFramerPassesPlainData(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	got := feed(f, []byte("hello\r\n"))
	if string(got) != "hello\r\n" {
		t.Errorf("forwarded %q, want %q", got, "hello\r\n")
	}
	if replies.Len() != 0 {
		t.Errorf("unexpected protocol replies: %v", replies.Bytes())
	}
}

func TestFramerEscapedIACIsData(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	got := feed(f, []byte{IAC, IAC})
	if len(got) != 1 || got[0] != IAC {
		t.Errorf("forwarded %v, want [255]", got)
	}
}

func TestFramerSwallowsNegotiation(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	// IAC WILL SGA: consumed entirely, and SGA is an option the server
	// offered itself, so no refusal is sent.
	got := feed(f, []byte{IAC, WILL, OptSGA})
	if len(got) != 0 {
		t.Errorf("forwarded %v, want nothing", got)
	}
	if replies.Len() != 0 {
		t.Errorf("unexpected reply to WILL SGA: %v", replies.Bytes())
	}
}

func TestFramerDeclinesUnsolicitedOptions(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want []byte
	}{
		{"WILL linemode -> DONT", []byte{IAC, WILL, 34}, []byte{IAC, DONT, 34}},
		{"DO status -> WONT", []byte{IAC, DO, 5}, []byte{IAC, WONT, 5}},
		{"WONT needs no reply", []byte{IAC, WONT, 34}, nil},
		{"DONT needs no reply", []byte{IAC, DONT, 34}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var replies bytes.Buffer
			f := NewFramer(&replies)
			if got := feed(f, tc.raw); len(got) != 0 {
				t.Errorf("forwarded %v, want nothing", got)
			}
			if !bytes.Equal(replies.Bytes(), tc.want) {
				t.Errorf("reply = %v, want %v", replies.Bytes(), tc.want)
			}
		})
	}
}

func TestFramerDiscardsSubnegotiation(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	// NAWS report: IAC SB NAWS 0 80 0 24 IAC SE, then plain data.
	raw := []byte{IAC, SB, OptNAWS, 0, 80, 0, 24, IAC, SE, 'x'}
	got := feed(f, raw)
	if string(got) != "x" {
		t.Errorf("forwarded %q, want %q", got, "x")
	}
}

func TestFramerSubnegotiationWithEmbeddedIAC(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	// An IAC inside the payload does not terminate the block unless
	// followed by SE.
	raw := []byte{IAC, SB, OptNAWS, IAC, 1, 2, IAC, SE, 'y'}
	got := feed(f, raw)
	if string(got) != "y" {
		t.Errorf("forwarded %q, want %q", got, "y")
	}
}

func TestFramerDropsUnknownCommand(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	// IAC NOP (241) is consumed; following data passes.
	got := feed(f, []byte{IAC, 241, 'z'})
	if string(got) != "z" {
		t.Errorf("forwarded %q, want %q", got, "z")
	}
}

func TestFramerNegotiateBurst(t *testing.T) {
	var replies bytes.Buffer
	f := NewFramer(&replies)

	if err := f.Negotiate(); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	want := []byte{
		IAC, DO, OptSGA,
		IAC, DO, OptNAWS,
		IAC, WILL, OptEcho,
		IAC, WILL, OptSGA,
	}
	if !bytes.Equal(replies.Bytes(), want) {
		t.Errorf("burst = %v, want %v", replies.Bytes(), want)
	}
}
