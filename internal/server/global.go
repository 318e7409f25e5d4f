package server

import "sync"

// The current server instance backs the process-wide broadcast facility.
// It is set on Start and cleared on Stop; broadcasting while no server is
// running is a no-op, not an error.
var (
	currentMu sync.RWMutex
	current   *Server
)

func setCurrent(s *Server) {
	currentMu.Lock()
	current = s
	currentMu.Unlock()
}

func clearCurrent(s *Server) {
	currentMu.Lock()
	if current == s {
		current = nil
	}
	currentMu.Unlock()
}

// Printf broadcasts formatted text to every session of the running server.
// Usable from any goroutine, including ones outside any session.
func Printf(format string, args ...any) {
	currentMu.RLock()
	s := current
	currentMu.RUnlock()

	if s != nil {
		s.BroadcastPrintf(format, args...)
	}
}
