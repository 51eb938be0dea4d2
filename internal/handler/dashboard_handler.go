package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/service"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/response"
)

// DashboardHandler exposes the reviewer case dashboard.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// OpenView godoc
// @Summary Open a dashboard view
// @Tags Dashboard
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /dashboard/views [post]
func (h *DashboardHandler) OpenView(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	state, err := h.service.OpenView(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, state, nil)
}

// ViewState godoc
// @Summary Current view state
// @Tags Dashboard
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/views/{id} [get]
func (h *DashboardHandler) ViewState(c *gin.Context) {
	state, err := h.service.ViewState(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// CloseView godoc
// @Summary Close a dashboard view
// @Tags Dashboard
// @Produce json
// @Param id path string true "View ID"
// @Success 204 {object} response.Envelope
// @Router /dashboard/views/{id} [delete]
func (h *DashboardHandler) CloseView(c *gin.Context) {
	h.service.CloseView(c.Param("id"))
	response.NoContent(c)
}

// SetFilter godoc
// @Summary Update view search and status filter
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body dto.ViewFilterRequest true "Filter payload"
// @Success 200 {object} response.Envelope
// @Router /dashboard/views/{id}/filter [put]
func (h *DashboardHandler) SetFilter(c *gin.Context) {
	var req dto.ViewFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	state, err := h.service.SetFilter(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Select godoc
// @Summary Toggle case selection in a view
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body dto.SelectionRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Router /dashboard/views/{id}/selection [post]
func (h *DashboardHandler) Select(c *gin.Context) {
	var req dto.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}
	state, err := h.service.Select(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// OpenCase godoc
// @Summary Open a case detail inside a view
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body map[string]string true "Protocol"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/views/{id}/open [put]
func (h *DashboardHandler) OpenCase(c *gin.Context) {
	var payload struct {
		Protocol string `json:"protocol"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid open payload"))
		return
	}
	state, err := h.service.OpenCase(c.Request.Context(), c.Param("id"), strings.TrimSpace(payload.Protocol))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Aggregates godoc
// @Summary Aggregated counts for the current listing
// @Tags Dashboard
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Router /dashboard/views/{id}/aggregates [get]
func (h *DashboardHandler) Aggregates(c *gin.Context) {
	aggregates, err := h.service.Aggregates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aggregates, nil)
}

// SetStatus godoc
// @Summary Change case status
// @Tags Cases
// @Accept json
// @Produce json
// @Param protocol path string true "Protocol"
// @Param payload body dto.StatusUpdateRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{protocol}/status [patch]
func (h *DashboardHandler) SetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	updated, err := h.service.SetStatus(c.Request.Context(), claims, c.Param("protocol"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// AppendNote godoc
// @Summary Append an internal note to a case
// @Tags Cases
// @Accept json
// @Produce json
// @Param protocol path string true "Protocol"
// @Param payload body dto.NoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{protocol}/notes [post]
func (h *DashboardHandler) AppendNote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	updated, err := h.service.AppendNote(c.Request.Context(), claims, c.Param("protocol"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// DeleteCase godoc
// @Summary Delete a case
// @Description Requires confirm=true in the payload, otherwise nothing is deleted.
// @Tags Cases
// @Accept json
// @Produce json
// @Param protocol path string true "Protocol"
// @Param payload body dto.DeleteRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Router /cases/{protocol} [delete]
func (h *DashboardHandler) DeleteCase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delete payload"))
		return
	}
	affected, err := h.service.DeleteOne(c.Request.Context(), claims, c.Param("protocol"), req.Confirm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": affected}, nil)
}

// DeleteSelected godoc
// @Summary Delete every selected case in a view
// @Description Requires confirm=true in the payload, otherwise nothing is deleted.
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body dto.DeleteRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Router /dashboard/views/{id}/selection [delete]
func (h *DashboardHandler) DeleteSelected(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delete payload"))
		return
	}
	affected, err := h.service.DeleteMany(c.Request.Context(), claims, c.Param("id"), req.Confirm)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": affected}, nil)
}

// AttachmentURL godoc
// @Summary Signed URL for a case attachment
// @Tags Cases
// @Produce json
// @Param protocol path string true "Protocol"
// @Param name query string true "Attachment name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{protocol}/attachment-url [get]
func (h *DashboardHandler) AttachmentURL(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "name is required"))
		return
	}
	result, err := h.service.AttachmentURL(c.Request.Context(), c.Param("protocol"), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stream godoc
// @Summary Server-sent case events
// @Description Pushes case_created, status_changed, note_added and case_deleted events as SSE.
// @Tags Dashboard
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /dashboard/stream [get]
func (h *DashboardHandler) Stream(c *gin.Context) {
	stream := h.service.Stream()
	if stream == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "case stream not configured"))
		return
	}
	id, events := stream.Subscribe()
	defer stream.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})
}
