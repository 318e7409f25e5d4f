// Package session implements the per-connection line editor and session
// state machine: authentication, editing keys, history navigation, flow
// control, and dispatch of completed lines to the command registry.
package session

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/device-diag-shell/backend/internal/command"
	"github.com/device-diag-shell/backend/internal/history"
	"github.com/device-diag-shell/backend/internal/telnet"
)

// MaxLineLen is the command line capacity in bytes, including the
// terminator slot; at most MaxLineLen-1 characters are accepted.
const MaxLineLen = 256

// DefaultPrompt is the shell prompt used when none is configured.
const DefaultPrompt = "telsh> "

// DefaultBanner is the welcome banner used when none is configured.
const DefaultBanner = "*===========================================================*\r\n" +
	"  telsh -- Embedded Diagnostic Shell\r\n" +
	"*===========================================================*\r\n"

// Control bytes handled by the line editor.
const (
	ctrlBS  = 8   // backspace
	ctrlLF  = 10  // ignored (CRLF collapse)
	ctrlCR  = 13  // submit line
	ctrlXON = 17  // Ctrl+Q, resume output
	ctrlXOF = 19  // Ctrl+S, pause output
	ctrlESC = 27  // begins a cursor-key sequence
	ctrlDEL = 127 // delete, same as backspace
)

type authPhase uint8

const (
	authNeedUser authPhase = iota
	authNeedPass
	authAuthorized
)

type escPhase uint8

const (
	escNone escPhase = iota
	escSawEscape
	escSawBracket
)

// Config holds per-session settings, built by the server from its own
// configuration at accept time.
type Config struct {
	Username string // empty = no authentication
	Password string
	Prompt   string
	Banner   string
}

// Events are optional lifecycle callbacks. They are invoked from the
// session's own goroutine.
type Events struct {
	// Authenticated fires when the operator logs in (or immediately on
	// connect when no credentials are configured).
	Authenticated func(username string)

	// CommandExecuted fires after each dispatched command line with the
	// dispatch result code.
	CommandExecuted func(line string, code int)
}

// Session drives one telnet connection. All protocol state is owned by the
// single goroutine running Run; Send and Stop may be called from any
// goroutine.
type Session struct {
	conn     net.Conn
	id       string
	registry *command.Registry
	cfg      Config

	// Events and Tap must be set before Run is called.
	Events Events
	Tap    func(out []byte) // mirrors everything sent to the client

	framer *telnet.Framer
	hist   *history.Ring

	buf     [MaxLineLen]byte
	n       int
	auth    authPhase
	user    string
	esc     escPhase
	histNav int // -1 = not navigating

	running atomic.Bool
	paused  atomic.Bool

	wmu       sync.Mutex
	closeOnce sync.Once
}

// New creates a Session for conn. The registry is shared across sessions.
func New(conn net.Conn, id string, registry *command.Registry, cfg Config) *Session {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Banner == "" {
		cfg.Banner = DefaultBanner
	}

	s := &Session{
		conn:     conn,
		id:       id,
		registry: registry,
		cfg:      cfg,
		hist:     history.NewRing(history.DefaultCapacity),
		histNav:  -1,
	}
	s.framer = telnet.NewFramer(writerFunc(s.Send))

	if cfg.Username != "" && cfg.Password != "" {
		s.auth = authNeedUser
	} else {
		s.auth = authAuthorized
	}
	return s
}

// writerFunc adapts the session send path to io.Writer for the framer.
type writerFunc func(p []byte)

func (w writerFunc) Write(p []byte) (int, error) {
	w(p)
	return len(p), nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// Run drives the session until the client disconnects or Stop is called.
// It blocks, and must be called exactly once.
func (s *Session) Run() {
	defer s.Close()

	s.running.Store(true)

	s.framer.Negotiate()
	s.Send([]byte(s.cfg.Banner))
	if s.auth == authAuthorized && s.Events.Authenticated != nil {
		s.Events.Authenticated("")
	}
	s.showPrompt()

	buf := make([]byte, 512)
	for s.running.Load() {
		n, err := s.conn.Read(buf)
		for _, b := range buf[:n] {
			c, ok := s.framer.Filter(b)
			if !ok {
				continue
			}
			s.processByte(c)
			if !s.running.Load() {
				break
			}
		}
		if err != nil {
			break
		}
	}
}

// Stop signals the session to end and closes the connection, which
// unblocks the read loop. Safe to call from any goroutine, repeatedly.
func (s *Session) Stop() {
	s.running.Store(false)
	s.Close()
}

// Close releases the transport handle. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.running.Store(false)
		s.conn.Close()
	})
}

// Send writes data to the client. Output is silently dropped while the
// client has paused the stream with Ctrl+S. Safe to call from any
// goroutine (the broadcast path uses it directly).
func (s *Session) Send(data []byte) {
	if len(data) == 0 || s.paused.Load() {
		return
	}

	s.wmu.Lock()
	_, err := s.conn.Write(data)
	s.wmu.Unlock()

	if err == nil && s.Tap != nil {
		s.Tap(data)
	}
}

// Write implements io.Writer over Send so command handlers can print to
// the session.
func (s *Session) Write(p []byte) (int, error) {
	s.Send(p)
	return len(p), nil
}

func (s *Session) showPrompt() {
	switch s.auth {
	case authNeedUser:
		s.Send([]byte("username: "))
	case authNeedPass:
		s.Send([]byte("password: "))
	case authAuthorized:
		s.Send([]byte(s.cfg.Prompt))
	}
}

// processByte handles one post-framing data byte.
func (s *Session) processByte(c byte) {
	// A cursor-key sequence in progress owns the byte stream.
	if s.esc != escNone {
		s.handleEscape(c)
		return
	}

	switch c {
	case ctrlESC:
		s.esc = escSawEscape
		return

	case ctrlXOF:
		s.paused.Store(true)
		return

	case ctrlXON:
		s.paused.Store(false)
		return

	case ctrlBS, ctrlDEL:
		if s.n > 0 {
			s.n--
			// Erase echo is suppressed while masking a password.
			if s.auth != authNeedPass {
				s.Send([]byte("\b \b"))
			}
		}
		return

	case ctrlCR:
		s.submitLine()
		return

	case ctrlLF:
		return
	}

	if s.n < MaxLineLen-1 {
		s.buf[s.n] = c
		s.n++
		if s.auth == authNeedPass {
			s.Send([]byte("*"))
		} else {
			s.Send([]byte{c})
		}
	}
	// Buffer full: the byte is silently dropped, the typed prefix stays.
}

func (s *Session) submitLine() {
	s.Send([]byte("\r\n"))
	line := string(s.buf[:s.n])

	if s.auth != authAuthorized {
		s.checkAuth(line)
	} else if s.n > 0 {
		s.executeLine(line)
	}

	s.n = 0
	s.histNav = -1
	if s.running.Load() {
		s.showPrompt()
	}
}

func (s *Session) checkAuth(line string) {
	switch s.auth {
	case authNeedUser:
		s.user = line
		s.auth = authNeedPass

	case authNeedPass:
		if s.user == s.cfg.Username && line == s.cfg.Password {
			s.auth = authAuthorized
			s.Send([]byte("Login OK.\r\n"))
			if s.Events.Authenticated != nil {
				s.Events.Authenticated(s.user)
			}
		} else {
			// No lockout: a failed login loops back to the
			// username prompt.
			s.Send([]byte("Login failed.\r\n"))
			s.auth = authNeedUser
			s.user = ""
		}
	}
}

func (s *Session) executeLine(line string) {
	s.hist.Push(line)

	if line == "exit" || line == "quit" {
		s.Send([]byte("Bye.\r\n"))
		s.Stop()
		return
	}

	// Execute rewrites the buffer in place, so dispatch a copy.
	exec := []byte(line)
	code := s.registry.Execute(exec, s)

	if s.Events.CommandExecuted != nil {
		s.Events.CommandExecuted(line, code)
	}
}

// handleEscape advances the cursor-key recognizer. Only up and down arrows
// do anything; other sequences are swallowed.
func (s *Session) handleEscape(c byte) {
	if s.esc == escSawEscape {
		if c == '[' {
			s.esc = escSawBracket
		} else {
			s.esc = escNone
		}
		return
	}

	// escSawBracket
	s.esc = escNone

	switch c {
	case 'A': // up: older entry
		next := s.histNav + 1
		if next < s.hist.Len() {
			s.histNav = next
			if entry, ok := s.hist.Get(s.histNav); ok {
				s.replaceLine(entry)
			}
		}
	case 'B': // down: newer entry, or clear past the most recent
		if s.histNav > 0 {
			s.histNav--
			if entry, ok := s.hist.Get(s.histNav); ok {
				s.replaceLine(entry)
			}
		} else if s.histNav == 0 {
			s.histNav = -1
			s.replaceLine("")
		}
	}
	// 'C' (right) and 'D' (left) are recognized but not implemented.
}

// replaceLine erases the current line on screen and replaces the buffer
// contents with text, echoing it.
func (s *Session) replaceLine(text string) {
	for s.n > 0 {
		s.n--
		s.Send([]byte("\b \b"))
	}
	if text == "" {
		return
	}
	if len(text) > MaxLineLen-1 {
		text = text[:MaxLineLen-1]
	}
	copy(s.buf[:], text)
	s.n = len(text)
	s.Send(s.buf[:s.n])
}
