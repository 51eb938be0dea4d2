package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

type caseReader interface {
	GetByProtocol(ctx context.Context, protocol string) (*models.Case, error)
}

// TrackerService answers reporter protocol lookups. Every lookup is a fresh
// read; an unknown protocol is a normal empty result rather than an error, so
// the endpoint cannot be used to probe which codes exist.
type TrackerService struct {
	cases   caseReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTrackerService constructs the service.
func NewTrackerService(cases caseReader, metrics *MetricsService, logger *zap.Logger) *TrackerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackerService{cases: cases, metrics: metrics, logger: logger}
}

// Lookup fetches the reporter-facing view for a protocol.
func (s *TrackerService) Lookup(ctx context.Context, protocol string) (dto.TrackerResponse, error) {
	if protocol == "" {
		return dto.TrackerResponse{}, appErrors.Clone(appErrors.ErrValidation, "protocol is required")
	}

	start := time.Now()
	c, err := s.cases.GetByProtocol(ctx, protocol)
	s.metrics.ObserveDBQuery("case_lookup", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dto.TrackerResponse{Found: false}, nil
		}
		return dto.TrackerResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up report")
	}

	return dto.TrackerResponse{
		Found:       true,
		Protocol:    c.Protocol,
		Status:      string(c.Status),
		StatusLabel: c.Status.Label(),
		Unit:        c.Unit,
		Category:    c.Category,
		Attachments: len(c.Attachments),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}
