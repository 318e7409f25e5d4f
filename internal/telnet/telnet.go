// Package telnet implements the subset of the telnet protocol needed by the
// diagnostic shell: IAC control-sequence filtering and option negotiation.
package telnet

// Telnet command bytes (RFC 854).
const (
	SE   byte = 240 // end of subnegotiation
	SB   byte = 250 // start of subnegotiation
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255 // interpret as command
)

// Telnet option codes.
const (
	OptEcho byte = 1  // RFC 857
	OptSGA  byte = 3  // suppress go-ahead, RFC 858
	OptNAWS byte = 31 // window size, RFC 1073
)
