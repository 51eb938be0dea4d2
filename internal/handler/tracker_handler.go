package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/response"
)

type trackerService interface {
	Lookup(ctx context.Context, protocol string) (dto.TrackerResponse, error)
}

// TrackerHandler serves the public protocol lookup.
type TrackerHandler struct {
	service trackerService
}

// NewTrackerHandler constructs the handler.
func NewTrackerHandler(svc trackerService) *TrackerHandler {
	return &TrackerHandler{service: svc}
}

// Lookup godoc
// @Summary Track a report by protocol
// @Description Returns the reporter-facing view of a case. An unknown protocol answers found=false with HTTP 200.
// @Tags Tracker
// @Produce json
// @Param protocol path string true "Protocol code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /track/{protocol} [get]
func (h *TrackerHandler) Lookup(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	protocol := strings.TrimSpace(c.Param("protocol"))
	result, err := h.service.Lookup(c.Request.Context(), protocol)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
