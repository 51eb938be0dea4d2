package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

type fakeTrackerSrv struct {
	resp         dto.TrackerResponse
	err          error
	lastProtocol string
}

func (f *fakeTrackerSrv) Lookup(_ context.Context, protocol string) (dto.TrackerResponse, error) {
	f.lastProtocol = protocol
	return f.resp, f.err
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestTrackerHandlerFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTrackerSrv{resp: dto.TrackerResponse{Found: true, Protocol: "AB12-CD34", Status: "RECEIVED"}}
	handler := NewTrackerHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/track/AB12-CD34", nil)
	c.Params = gin.Params{{Key: "protocol", Value: "AB12-CD34"}}

	handler.Lookup(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AB12-CD34", srv.lastProtocol)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Data["found"])
	assert.Equal(t, "AB12-CD34", envelope.Data["protocol"])
}

func TestTrackerHandlerUnknownProtocolIsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrackerHandler(&fakeTrackerSrv{resp: dto.TrackerResponse{Found: false}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/track/ZZZZ-ZZZZ", nil)
	c.Params = gin.Params{{Key: "protocol", Value: "ZZZZ-ZZZZ"}}

	handler.Lookup(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, false, envelope.Data["found"])
}

func TestTrackerHandlerServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrackerHandler(&fakeTrackerSrv{err: appErrors.ErrInternal})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/track/AB12-CD34", nil)
	c.Params = gin.Params{{Key: "protocol", Value: "AB12-CD34"}}

	handler.Lookup(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
