package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/device-diag-shell/backend/internal/model"
	"github.com/device-diag-shell/backend/internal/repository"
	"github.com/device-diag-shell/backend/internal/server"
	"github.com/device-diag-shell/backend/internal/ws"
)

// WebSocketHandler attaches read-only observers to live sessions.
type WebSocketHandler struct {
	srv       *server.Server
	repo      *repository.SessionRepository
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(srv *server.Server, repo *repository.SessionRepository, wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		srv:       srv,
		repo:      repo,
		wsHandler: wsHandler,
	}
}

// Observe handles WS /api/sessions/:id/observe - watches a session's output.
func (h *WebSocketHandler) Observe(c *gin.Context) {
	sessionID := c.Param("id")

	if _, err := h.repo.GetByID(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session "+sessionID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	// Observing makes sense only while the operator is connected.
	if _, live := h.srv.Session(sessionID); !live {
		sendError(c, http.StatusBadRequest, "SESSION_NOT_ACTIVE", "Session is not connected")
		return
	}

	if err := h.wsHandler.HandleConnection(c.Writer, c.Request, sessionID); err != nil {
		// Error already handled by the upgrader.
		return
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sessions/:id/observe", h.Observe)
}
