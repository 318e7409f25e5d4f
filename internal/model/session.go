package model

import "time"

// SessionStatus represents the status of a telnet session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
	SessionStatusKicked SessionStatus = "kicked"
)

// Session represents one telnet connection and its lifecycle record.
type Session struct {
	ID             string        `json:"id"`
	Slot           int           `json:"slot"`
	RemoteAddr     string        `json:"remoteAddr"`
	Username       string        `json:"username,omitempty"`
	Status         SessionStatus `json:"status"`
	TranscriptPath string        `json:"transcriptPath,omitempty"`
	ConnectedAt    time.Time     `json:"connectedAt"`
	DisconnectedAt *time.Time    `json:"disconnectedAt,omitempty"`
}

// Duration returns how long the session has been (or was) connected.
func (s *Session) Duration() time.Duration {
	if s.DisconnectedAt != nil {
		return s.DisconnectedAt.Sub(s.ConnectedAt)
	}
	return time.Since(s.ConnectedAt)
}

// CommandRecord is one audit-trail entry for an executed command line.
type CommandRecord struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	Line       string    `json:"line"`
	ResultCode int       `json:"resultCode"`
	ExecutedAt time.Time `json:"executedAt"`
}
