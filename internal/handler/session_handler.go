package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ethicsline/ethicsline-api/internal/middleware"
	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/response"
)

type sessionService interface {
	Bootstrap(ctx context.Context, sessionID string) (*models.Session, error)
	AcceptPolicy(ctx context.Context, sessionID string) (*models.Session, error)
	End(ctx context.Context, sessionID string) error
}

// SessionHandler exposes the reporter session lifecycle.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(svc sessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// Bootstrap godoc
// @Summary Bootstrap a reporter session
// @Description Reuses the session named by X-Session-ID when it still exists, otherwise creates a fresh session bound to an anonymous principal
// @Tags Session
// @Produce json
// @Param X-Session-ID header string false "Existing session identifier"
// @Success 200 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /session/bootstrap [post]
func (h *SessionHandler) Bootstrap(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	session, err := h.service.Bootstrap(c.Request.Context(), c.GetHeader(middleware.SessionHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// AcceptPolicy godoc
// @Summary Accept the reporting policy
// @Tags Session
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session/policy [post]
func (h *SessionHandler) AcceptPolicy(c *gin.Context) {
	session, err := h.service.AcceptPolicy(c.Request.Context(), c.GetHeader(middleware.SessionHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// End godoc
// @Summary End the reporter session
// @Tags Session
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Success 204 {object} response.Envelope
// @Router /session [delete]
func (h *SessionHandler) End(c *gin.Context) {
	if err := h.service.End(c.Request.Context(), c.GetHeader(middleware.SessionHeader)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
