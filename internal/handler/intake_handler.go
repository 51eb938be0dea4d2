package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/middleware"
	"github.com/ethicsline/ethicsline-api/internal/models"
	"github.com/ethicsline/ethicsline-api/internal/service"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/response"
)

type intakeService interface {
	Options() dto.IntakeOptionsResponse
	Start(ctx context.Context, session *models.Session) (dto.WizardStateResponse, error)
	State(ctx context.Context, session *models.Session) (dto.WizardStateResponse, error)
	Advance(ctx context.Context, session *models.Session, event dto.StepEventRequest) (dto.WizardStateResponse, error)
	Back(ctx context.Context, session *models.Session) (dto.WizardStateResponse, error)
	Submit(ctx context.Context, session *models.Session, uploads []service.AttachmentUpload) (dto.SubmitResponse, error)
}

// IntakeHandler wires the report wizard to HTTP endpoints. Every route except
// Options sits behind the session middleware.
type IntakeHandler struct {
	service intakeService
}

// NewIntakeHandler constructs the handler.
func NewIntakeHandler(svc intakeService) *IntakeHandler {
	return &IntakeHandler{service: svc}
}

// Options godoc
// @Summary Intake form options
// @Description Units, categories and limits the wizard enforces
// @Tags Intake
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /intake/options [get]
func (h *IntakeHandler) Options(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.service.Options(), nil)
}

// Start godoc
// @Summary Start a new report wizard
// @Tags Intake
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /intake [post]
func (h *IntakeHandler) Start(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionRequired)
		return
	}
	state, err := h.service.Start(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, state, nil)
}

// State godoc
// @Summary Current wizard state
// @Tags Intake
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /intake [get]
func (h *IntakeHandler) State(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionRequired)
		return
	}
	state, err := h.service.State(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Advance godoc
// @Summary Submit the current step and advance
// @Tags Intake
// @Accept json
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Param payload body dto.StepEventRequest true "Step payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /intake/events [post]
func (h *IntakeHandler) Advance(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionRequired)
		return
	}
	var event dto.StepEventRequest
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid step payload"))
		return
	}
	state, err := h.service.Advance(c.Request.Context(), session, event)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Back godoc
// @Summary Step back in the wizard
// @Tags Intake
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Success 200 {object} response.Envelope
// @Router /intake/back [post]
func (h *IntakeHandler) Back(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionRequired)
		return
	}
	state, err := h.service.Back(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Submit godoc
// @Summary Submit the completed report
// @Description Finalizes the wizard, uploads attachments and persists the case. Files go in the multipart "files" field.
// @Tags Intake
// @Accept multipart/form-data
// @Produce json
// @Param X-Session-ID header string true "Session identifier"
// @Param files formData file false "Attachments"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /intake/submit [post]
func (h *IntakeHandler) Submit(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionRequired)
		return
	}
	uploads, err := h.collectUploads(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Submit(c.Request.Context(), session, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

func (h *IntakeHandler) collectUploads(c *gin.Context) ([]service.AttachmentUpload, error) {
	contentType := c.GetHeader("Content-Type")
	if contentType == "" || c.Request.Body == nil {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}
	headers := form.File["files"]
	uploads := make([]service.AttachmentUpload, 0, len(headers))
	for _, header := range headers {
		src, openErr := header.Open()
		if openErr != nil {
			return nil, appErrors.Wrap(openErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file")
		}
		data, readErr := io.ReadAll(src)
		src.Close() //nolint:errcheck
		if readErr != nil {
			return nil, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file")
		}
		uploads = append(uploads, service.AttachmentUpload{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}
