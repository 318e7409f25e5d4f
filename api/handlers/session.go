// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/device-diag-shell/backend/internal/command"
	"github.com/device-diag-shell/backend/internal/model"
	"github.com/device-diag-shell/backend/internal/repository"
	"github.com/device-diag-shell/backend/internal/server"
)

// SessionHandler handles HTTP requests for session administration.
type SessionHandler struct {
	srv  *server.Server
	repo *repository.SessionRepository
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(srv *server.Server, repo *repository.SessionRepository) *SessionHandler {
	return &SessionHandler{srv: srv, repo: repo}
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID             string `json:"id"`
	Slot           int    `json:"slot"`
	RemoteAddr     string `json:"remoteAddr"`
	Username       string `json:"username,omitempty"`
	Status         string `json:"status"`
	TranscriptPath string `json:"transcriptPath,omitempty"`
	Duration       string `json:"duration"`
	ConnectedAt    string `json:"connectedAt"`
	DisconnectedAt string `json:"disconnectedAt,omitempty"`
}

// CommandResponse represents one registered shell command.
type CommandResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AuditResponse represents one executed command line.
type AuditResponse struct {
	ID         int64  `json:"id"`
	Line       string `json:"line"`
	ResultCode int    `json:"resultCode"`
	ExecutedAt string `json:"executedAt"`
}

// BroadcastRequest represents the request body for a broadcast.
type BroadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toSessionResponse converts a model.Session to SessionResponse.
func toSessionResponse(s *model.Session) *SessionResponse {
	resp := &SessionResponse{
		ID:             s.ID,
		Slot:           s.Slot,
		RemoteAddr:     s.RemoteAddr,
		Username:       s.Username,
		Status:         string(s.Status),
		TranscriptPath: s.TranscriptPath,
		Duration:       s.Duration().Round(time.Second).String(),
		ConnectedAt:    s.ConnectedAt.Format(time.RFC3339),
	}
	if s.DisconnectedAt != nil {
		resp.DisconnectedAt = s.DisconnectedAt.Format(time.RFC3339)
	}
	return resp
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// List handles GET /api/sessions - lists all sessions, newest first.
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.repo.List(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sessions: "+err.Error())
		return
	}

	response := make([]*SessionResponse, len(sessions))
	for i, sess := range sessions {
		// A record can say active while the live session is already gone
		// (disconnect not yet flushed). Report what the server sees.
		if sess.Status == model.SessionStatusActive {
			if _, live := h.srv.Session(sess.ID); !live {
				sess.Status = model.SessionStatusClosed
			}
		}
		response[i] = toSessionResponse(sess)
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/sessions/:id - gets a specific session.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	if sess.Status == model.SessionStatusActive {
		if _, live := h.srv.Session(sess.ID); !live {
			sess.Status = model.SessionStatusClosed
		}
	}

	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Kick handles DELETE /api/sessions/:id - disconnects a live session.
func (h *SessionHandler) Kick(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.srv.Kick(sessionID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" is not connected")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to kick session: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// Broadcast handles POST /api/broadcast - sends a line to every connected
// session.
func (h *SessionHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if !h.srv.IsRunning() {
		sendError(c, http.StatusServiceUnavailable, "SERVER_NOT_RUNNING", model.ErrServerNotRunning.Error())
		return
	}

	h.srv.BroadcastPrintf("\r\n%s\r\n", req.Message)
	c.JSON(http.StatusOK, gin.H{"delivered": h.srv.ActiveCount()})
}

// Audit handles GET /api/sessions/:id/audit - returns the command audit
// trail for a session.
func (h *SessionHandler) Audit(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := h.repo.GetByID(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	records, err := h.repo.ListCommands(c.Request.Context(), sessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list commands: "+err.Error())
		return
	}

	response := make([]*AuditResponse, len(records))
	for i, rec := range records {
		response[i] = &AuditResponse{
			ID:         rec.ID,
			Line:       rec.Line,
			ResultCode: rec.ResultCode,
			ExecutedAt: rec.ExecutedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetTranscript handles GET /api/sessions/:id/transcript - downloads the
// session transcript.
func (h *SessionHandler) GetTranscript(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	if sess.TranscriptPath == "" {
		sendError(c, http.StatusNotFound, "TRANSCRIPT_NOT_FOUND", "Transcript not found for session "+sessionID)
		return
	}

	c.Header("Content-Type", "application/x-asciicast")
	c.Header("Content-Disposition", "attachment; filename="+sessionID+".cast")
	c.File(sess.TranscriptPath)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Kick)
		sessions.GET("/:id/audit", h.Audit)
		sessions.GET("/:id/transcript", h.GetTranscript)
	}
	rg.POST("/broadcast", h.Broadcast)
}

// CommandHandler exposes the shell's command registry.
type CommandHandler struct {
	registry *command.Registry
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(registry *command.Registry) *CommandHandler {
	return &CommandHandler{registry: registry}
}

// List handles GET /api/commands - lists the registered shell commands.
func (h *CommandHandler) List(c *gin.Context) {
	response := make([]*CommandResponse, 0, h.registry.Count())
	h.registry.ForEach(func(e command.Entry) {
		response = append(response, &CommandResponse{
			Name:        e.Name,
			Description: e.Desc,
		})
	})
	c.JSON(http.StatusOK, response)
}

// RegisterRoutes registers the command handler routes on a Gin router group.
func (h *CommandHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/commands", h.List)
}
