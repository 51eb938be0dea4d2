package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/models"
)

type fakeCaseReader struct {
	cases map[string]*models.Case
	err   error
}

func (f *fakeCaseReader) GetByProtocol(ctx context.Context, protocol string) (*models.Case, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.cases[protocol]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func TestTrackerLookupFound(t *testing.T) {
	now := time.Now().UTC()
	reader := &fakeCaseReader{cases: map[string]*models.Case{
		"ABCD-1234": {
			Protocol:    "ABCD-1234",
			Unit:        "FIN",
			Category:    "Fraude",
			Status:      models.StatusUnderReview,
			Attachments: models.AttachmentList{{Name: "evidence.pdf"}},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}}
	svc := NewTrackerService(reader, nil, zap.NewNop())

	res, err := svc.Lookup(context.Background(), "ABCD-1234")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "UNDER_REVIEW", res.Status)
	assert.Equal(t, "Under review", res.StatusLabel)
	assert.Equal(t, 1, res.Attachments)
}

func TestTrackerLookupNotFoundIsNormal(t *testing.T) {
	svc := NewTrackerService(&fakeCaseReader{cases: map[string]*models.Case{}}, nil, zap.NewNop())

	res, err := svc.Lookup(context.Background(), "ZZZZ-9999")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Protocol)
}

func TestTrackerLookupEmptyProtocol(t *testing.T) {
	svc := NewTrackerService(&fakeCaseReader{}, nil, zap.NewNop())
	_, err := svc.Lookup(context.Background(), "")
	assert.Error(t, err)
}

func TestTrackerLookupStoreFailure(t *testing.T) {
	svc := NewTrackerService(&fakeCaseReader{err: errors.New("connection reset")}, nil, zap.NewNop())
	_, err := svc.Lookup(context.Background(), "ABCD-1234")
	assert.Error(t, err)
}
