package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/timeout"
)

// protocolAlphabet omits ambiguous characters so protocols survive being
// read over the phone.
const protocolAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type wizardStore interface {
	GetWizard(ctx context.Context, sessionID string) ([]byte, error)
	SaveWizard(ctx context.Context, sessionID string, state []byte) error
	DeleteWizard(ctx context.Context, sessionID string) error
}

type caseWriter interface {
	Create(ctx context.Context, c *models.Case) error
}

type attachmentPipeline interface {
	Process(ctx context.Context, protocol string, uploads []AttachmentUpload) AttachmentResult
	MaxBytes() int64
}

type caseNotifier interface {
	Publish(event CaseEvent)
}

// IntakeService drives the report wizard: starting, advancing, going back
// and the final submission. Wizard state lives server-side in the session
// store, so a reporter can resume after a page reload.
type IntakeService struct {
	sessions     sessionStore
	wizards      wizardStore
	cases        caseWriter
	attachments  attachmentPipeline
	stream       caseNotifier
	metrics      *MetricsService
	logger       *zap.Logger
	rules        WizardRules
	writeTimeout time.Duration
}

// NewIntakeService constructs the service.
func NewIntakeService(sessions sessionStore, wizards wizardStore, cases caseWriter, attachments attachmentPipeline, stream caseNotifier, metrics *MetricsService, logger *zap.Logger, rules WizardRules, writeTimeout time.Duration) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		sessions:     sessions,
		wizards:      wizards,
		cases:        cases,
		attachments:  attachments,
		stream:       stream,
		metrics:      metrics,
		logger:       logger,
		rules:        rules,
		writeTimeout: writeTimeout,
	}
}

// Options exposes the fixed intake enumerations and limits.
func (s *IntakeService) Options() dto.IntakeOptionsResponse {
	return dto.IntakeOptionsResponse{
		Units:                s.rules.Units,
		Categories:           s.rules.Categories,
		MinDescriptionLength: s.rules.MinDescriptionLength,
		MaxAttachmentBytes:   s.attachments.MaxBytes(),
	}
}

// Start begins a fresh wizard for the session, replacing any abandoned one.
// The reporting policy must have been accepted first.
func (s *IntakeService) Start(ctx context.Context, session *models.Session) (dto.WizardStateResponse, error) {
	if !session.PolicyAccepted() {
		return dto.WizardStateResponse{}, appErrors.ErrPolicyNotAccepted
	}
	wizard := NewWizard()
	if err := s.saveWizard(ctx, session.ID, wizard); err != nil {
		return dto.WizardStateResponse{}, err
	}
	return wizard.Snapshot(), nil
}

// State returns the wizard as it stands for the session.
func (s *IntakeService) State(ctx context.Context, session *models.Session) (dto.WizardStateResponse, error) {
	wizard, err := s.loadWizard(ctx, session.ID)
	if err != nil {
		return dto.WizardStateResponse{}, err
	}
	return wizard.Snapshot(), nil
}

// Advance applies one step event and persists the wizard.
func (s *IntakeService) Advance(ctx context.Context, session *models.Session, event dto.StepEventRequest) (dto.WizardStateResponse, error) {
	wizard, err := s.loadWizard(ctx, session.ID)
	if err != nil {
		return dto.WizardStateResponse{}, err
	}
	if err := wizard.Advance(event, s.rules); err != nil {
		return dto.WizardStateResponse{}, err
	}
	if err := s.saveWizard(ctx, session.ID, wizard); err != nil {
		return dto.WizardStateResponse{}, err
	}
	return wizard.Snapshot(), nil
}

// Back rewinds the wizard one step, keeping collected data.
func (s *IntakeService) Back(ctx context.Context, session *models.Session) (dto.WizardStateResponse, error) {
	wizard, err := s.loadWizard(ctx, session.ID)
	if err != nil {
		return dto.WizardStateResponse{}, err
	}
	wizard.Back()
	if err := s.saveWizard(ctx, session.ID, wizard); err != nil {
		return dto.WizardStateResponse{}, err
	}
	return wizard.Snapshot(), nil
}

// Submit finalizes the report: it refuses duplicate submissions within the
// session, generates the protocol, runs the attachment pipeline and writes
// the case under the write deadline. The wizard is discarded on success.
func (s *IntakeService) Submit(ctx context.Context, session *models.Session, uploads []AttachmentUpload) (dto.SubmitResponse, error) {
	wizard, err := s.loadWizard(ctx, session.ID)
	if err != nil {
		return dto.SubmitResponse{}, err
	}
	if !wizard.Complete() {
		return dto.SubmitResponse{}, appErrors.Clone(appErrors.ErrValidation, "the report is not complete yet")
	}

	fingerprint, err := wizard.Fingerprint()
	if err != nil {
		return dto.SubmitResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint report")
	}
	if session.LastFingerprint != "" && session.LastFingerprint == fingerprint {
		s.metrics.RecordDuplicate()
		return dto.SubmitResponse{}, appErrors.ErrDuplicateSubmission
	}

	protocol, err := generateProtocol()
	if err != nil {
		return dto.SubmitResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate protocol")
	}

	c, err := wizard.ToCase(protocol, session.PrincipalID)
	if err != nil {
		return dto.SubmitResponse{}, err
	}

	// Record the fingerprint up front so a concurrent re-submit of the
	// same answers is refused while this one is in flight.
	session.LastFingerprint = fingerprint
	if err := s.sessions.Save(ctx, session); err != nil {
		return dto.SubmitResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission fingerprint")
	}

	attachResult := s.attachments.Process(ctx, protocol, uploads)
	c.Attachments = attachResult.Uploaded

	err = timeout.Do(ctx, s.writeTimeout, "case write", func(ctx context.Context) error {
		return s.cases.Create(ctx, c)
	})
	if err != nil {
		s.clearFingerprint(ctx, session)
		if timeout.IsDeadline(err) {
			s.logger.Error("case write deadline exceeded", zap.String("protocol", protocol))
			return dto.SubmitResponse{}, appErrors.Clone(appErrors.ErrTimeout, "the report could not be stored in time")
		}
		return dto.SubmitResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	if err := s.wizards.DeleteWizard(ctx, session.ID); err != nil {
		s.logger.Warn("failed to discard wizard state", zap.String("session_id", session.ID), zap.Error(err))
	}

	if s.stream != nil {
		s.stream.Publish(CaseEvent{Type: EventCaseCreated, Protocols: []string{protocol}, Case: c})
	}

	s.metrics.RecordSubmission()
	s.metrics.RecordAttachments(len(attachResult.Uploaded), len(attachResult.Excluded), len(attachResult.Failed))

	s.logger.Info("report submitted",
		zap.String("protocol", protocol),
		zap.Bool("anonymous", c.Anonymous),
		zap.Int("attachments_uploaded", len(attachResult.Uploaded)),
		zap.Int("attachments_excluded", len(attachResult.Excluded)),
		zap.Int("attachments_failed", len(attachResult.Failed)))

	return dto.SubmitResponse{
		Protocol:            protocol,
		AttachmentsUploaded: len(attachResult.Uploaded),
		AttachmentsExcluded: len(attachResult.Excluded),
		AttachmentsFailed:   len(attachResult.Failed),
		Warning:             attachmentWarning(attachResult),
	}, nil
}

// clearFingerprint drops the idempotency record after a failed write so the
// reporter can retry from the final step.
func (s *IntakeService) clearFingerprint(ctx context.Context, session *models.Session) {
	session.LastFingerprint = ""
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("failed to clear submission fingerprint", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (s *IntakeService) loadWizard(ctx context.Context, sessionID string) (*Wizard, error) {
	raw, err := s.wizards.GetWizard(ctx, sessionID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no report in progress for this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report state")
	}
	return DecodeWizard(raw)
}

func (s *IntakeService) saveWizard(ctx context.Context, sessionID string, wizard *Wizard) error {
	raw, err := wizard.Encode()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode report state")
	}
	if err := s.wizards.SaveWizard(ctx, sessionID, raw); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report state")
	}
	return nil
}

func generateProtocol() (string, error) {
	left, err := gonanoid.Generate(protocolAlphabet, 4)
	if err != nil {
		return "", err
	}
	right, err := gonanoid.Generate(protocolAlphabet, 4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", left, right), nil
}

func attachmentWarning(result AttachmentResult) string {
	var parts []string
	if n := len(result.Excluded); n > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s) exceeded the size limit and were not uploaded", n))
	}
	if n := len(result.Failed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s) could not be uploaded", n))
	}
	return strings.Join(parts, "; ")
}
