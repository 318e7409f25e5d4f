// Package server runs the telnet listener and owns the bounded pool of
// session slots. One goroutine accepts connections; each session runs in
// its own goroutine with blocking reads.
package server

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/device-diag-shell/backend/internal/command"
	"github.com/device-diag-shell/backend/internal/model"
	"github.com/device-diag-shell/backend/internal/session"
)

// MaxSessions is the hard upper bound on concurrent sessions. Config can
// lower it but never raise it.
const MaxSessions = 8

// DefaultMaxSessions is used when the config does not set a limit.
const DefaultMaxSessions = 4

// Config holds server settings.
type Config struct {
	Addr        string // listen address, e.g. ":2500"
	Username    string // empty = no authentication
	Password    string
	Prompt      string
	Banner      string
	MaxSessions int
}

// Hooks are optional lifecycle callbacks, invoked from server-owned
// goroutines. All fields may be nil.
type Hooks struct {
	// SessionOpened fires when a connection is assigned a slot.
	SessionOpened func(sess model.Session)

	// SessionClosed fires when a session ends, with its final status.
	SessionClosed func(sessionID string, status model.SessionStatus)

	// Authenticated fires when a session's operator logs in.
	Authenticated func(sessionID, username string)

	// CommandExecuted fires after each dispatched command line.
	CommandExecuted func(sessionID, line string, code int)

	// Tap, if set, returns a per-session mirror of all output sent to
	// that session (used for transcripts and live observers). A nil
	// return disables mirroring for that session.
	Tap func(sess model.Session) func(out []byte)
}

// slot is one entry in the bounded session pool.
type slot struct {
	active atomic.Bool
	sess   *session.Session
	done   chan struct{} // closed when the session goroutine exits
}

// activeSession pairs the live session with its lifecycle record.
type activeSession struct {
	sess   *session.Session
	rec    *model.Session
	kicked atomic.Bool
}

// Server is the telnet diagnostic shell server.
type Server struct {
	cfg      Config
	registry *command.Registry
	hooks    Hooks

	ln         net.Listener
	running    atomic.Bool
	acceptDone chan struct{}
	slots      [MaxSessions]slot

	mu       sync.Mutex
	sessions map[string]*activeSession
}

// New creates a Server. A MaxSessions outside [1, MaxSessions] is clamped.
func New(registry *command.Registry, cfg Config, hooks Hooks) *Server {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.MaxSessions > MaxSessions {
		log.Printf("max sessions %d exceeds limit, clamping to %d", cfg.MaxSessions, MaxSessions)
		cfg.MaxSessions = MaxSessions
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		hooks:    hooks,
		sessions: make(map[string]*activeSession),
	}
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.ln = ln
	s.acceptDone = make(chan struct{})
	s.running.Store(true)
	setCurrent(s)

	go s.acceptLoop()

	log.Printf("telnet shell listening on %s (max %d sessions)", ln.Addr(), s.cfg.MaxSessions)
	return nil
}

// Stop shuts the server down in two phases: stop accepting, then stop and
// join every active session. There is no join timeout; a session can only
// delay shutdown while a command handler is still running, because Stop
// closes its connection and unblocks the read loop.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	log.Printf("stopping telnet shell...")
	clearCurrent(s)

	s.ln.Close()
	<-s.acceptDone

	for i := range s.slots {
		sl := &s.slots[i]
		if sl.active.Load() {
			sl.sess.Stop()
		}
		if sl.done != nil {
			<-sl.done
			sl.done = nil
		}
	}

	log.Printf("telnet shell stopped")
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for s.running.Load() {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.running.Load() {
				log.Printf("accept failed: %v", err)
			}
			return
		}

		idx := s.claimSlot()
		if idx < 0 {
			conn.Write([]byte("Server full.\r\n"))
			conn.Close()
			log.Printf("rejected %s: %v", conn.RemoteAddr(), model.ErrServerFull)
			continue
		}

		s.launchSession(idx, conn)
	}
}

// claimSlot finds a free slot, joining the previous occupant's goroutine
// before handing the slot out again. Only the accept goroutine calls this.
func (s *Server) claimSlot() int {
	for i := 0; i < s.cfg.MaxSessions; i++ {
		sl := &s.slots[i]
		if !sl.active.Load() {
			if sl.done != nil {
				<-sl.done
				sl.done = nil
			}
			return i
		}
	}
	return -1
}

func (s *Server) launchSession(idx int, conn net.Conn) {
	id := uuid.New().String()
	now := time.Now()
	rec := &model.Session{
		ID:          id,
		Slot:        idx,
		RemoteAddr:  conn.RemoteAddr().String(),
		Status:      model.SessionStatusActive,
		ConnectedAt: now,
	}

	sess := session.New(conn, id, s.registry, session.Config{
		Username: s.cfg.Username,
		Password: s.cfg.Password,
		Prompt:   s.cfg.Prompt,
		Banner:   s.cfg.Banner,
	})

	as := &activeSession{sess: sess, rec: rec}

	sess.Events.Authenticated = func(username string) {
		s.mu.Lock()
		rec.Username = username
		s.mu.Unlock()
		if s.hooks.Authenticated != nil {
			s.hooks.Authenticated(id, username)
		}
	}
	sess.Events.CommandExecuted = func(line string, code int) {
		if s.hooks.CommandExecuted != nil {
			s.hooks.CommandExecuted(id, line, code)
		}
	}
	if s.hooks.Tap != nil {
		sess.Tap = s.hooks.Tap(*rec)
	}

	s.mu.Lock()
	s.sessions[id] = as
	s.mu.Unlock()

	if s.hooks.SessionOpened != nil {
		s.hooks.SessionOpened(*rec)
	}

	log.Printf("connection from %s -> slot %d (%s)", rec.RemoteAddr, idx, id)

	sl := &s.slots[idx]
	sl.sess = sess
	sl.done = make(chan struct{})
	sl.active.Store(true)

	go s.sessionLoop(idx, as)
}

func (s *Server) sessionLoop(idx int, as *activeSession) {
	as.sess.Run()

	sl := &s.slots[idx]
	sl.active.Store(false)

	status := model.SessionStatusClosed
	if as.kicked.Load() {
		status = model.SessionStatusKicked
	}
	now := time.Now()

	s.mu.Lock()
	as.rec.Status = status
	as.rec.DisconnectedAt = &now
	delete(s.sessions, as.rec.ID)
	s.mu.Unlock()

	if s.hooks.SessionClosed != nil {
		s.hooks.SessionClosed(as.rec.ID, status)
	}

	log.Printf("slot %d session ended (%s)", idx, status)
	close(sl.done)
}

// Sessions returns a snapshot of all live sessions.
func (s *Server) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Session, 0, len(s.sessions))
	for _, as := range s.sessions {
		out = append(out, *as.rec)
	}
	return out
}

// Session returns a snapshot of one live session.
func (s *Server) Session(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	as, ok := s.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return *as.rec, true
}

// Kick forcibly disconnects a session.
func (s *Server) Kick(id string) error {
	s.mu.Lock()
	as, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		return model.ErrSessionNotFound
	}
	as.kicked.Store(true)
	as.sess.Stop()
	return nil
}

// Broadcast sends data to every active session. Paused sessions drop the
// data rather than queue it.
func (s *Server) Broadcast(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.active.Load() {
			sl.sess.Send(data)
		}
	}
}

// BroadcastPrintf formats text and broadcasts it to every active session.
func (s *Server) BroadcastPrintf(format string, args ...any) {
	s.Broadcast([]byte(fmt.Sprintf(format, args...)))
}

// ActiveCount returns the number of live sessions.
func (s *Server) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
