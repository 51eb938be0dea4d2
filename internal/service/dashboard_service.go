package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

type dashboardCaseRepo interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, error)
	GetByProtocol(ctx context.Context, protocol string) (*models.Case, error)
	UpdateStatus(ctx context.Context, protocol string, status models.CaseStatus, updatedAt time.Time) error
	AppendNote(ctx context.Context, protocol string, note models.Note, updatedAt time.Time) error
	Delete(ctx context.Context, protocol string) error
	DeleteMany(ctx context.Context, protocols []string) (int64, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type attachmentSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

type blobCleaner interface {
	Cleanup(protocol string) error
}

// dashboardView is the per-reviewer working state: filter, selection and the
// currently open case. It lives in memory; losing it on restart only resets
// the reviewer's filters.
type dashboardView struct {
	id        string
	userID    string
	search    string
	status    models.CaseStatus
	selection map[string]struct{}
	openCase  string
	touchedAt time.Time
}

// DashboardService serves the reviewer console: listing with per-view filter
// and selection state, derived aggregates, case mutations and the live
// change stream.
type DashboardService struct {
	cases  dashboardCaseRepo
	audits auditWriter
	stream *CaseStream
	signer attachmentSigner
	blobs  blobCleaner
	logger *zap.Logger

	mu      sync.Mutex
	views   map[string]*dashboardView
	viewTTL time.Duration
}

// NewDashboardService constructs the service.
func NewDashboardService(cases dashboardCaseRepo, audits auditWriter, stream *CaseStream, signer attachmentSigner, blobs blobCleaner, logger *zap.Logger, viewTTL time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if viewTTL <= 0 {
		viewTTL = time.Hour
	}
	return &DashboardService{
		cases:   cases,
		audits:  audits,
		stream:  stream,
		signer:  signer,
		blobs:   blobs,
		logger:  logger,
		views:   make(map[string]*dashboardView),
		viewTTL: viewTTL,
	}
}

// Stream exposes the change hub for SSE subscriptions.
func (s *DashboardService) Stream() *CaseStream {
	return s.stream
}

// OpenView registers a fresh view for the reviewer and returns its state.
func (s *DashboardService) OpenView(ctx context.Context, userID string) (dto.ViewStateResponse, error) {
	view := &dashboardView{
		id:        uuid.NewString(),
		userID:    userID,
		selection: make(map[string]struct{}),
		touchedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.pruneLocked()
	s.views[view.id] = view
	s.mu.Unlock()

	return s.viewState(ctx, view)
}

// CloseView discards a view.
func (s *DashboardService) CloseView(viewID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, viewID)
}

// ViewState re-lists the collection under the view's filter and reconciles
// the selection: entries whose case no longer exists are dropped, everything
// else is preserved even when filtered out of sight.
func (s *DashboardService) ViewState(ctx context.Context, viewID string) (dto.ViewStateResponse, error) {
	view, err := s.getView(viewID)
	if err != nil {
		return dto.ViewStateResponse{}, err
	}
	return s.viewState(ctx, view)
}

// SetFilter updates the view's free-text search and status filter.
func (s *DashboardService) SetFilter(ctx context.Context, viewID string, req dto.ViewFilterRequest) (dto.ViewStateResponse, error) {
	if req.Status != "" && !models.ValidStatus(req.Status) {
		return dto.ViewStateResponse{}, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	view, err := s.getView(viewID)
	if err != nil {
		return dto.ViewStateResponse{}, err
	}

	s.mu.Lock()
	view.search = req.Search
	view.status = req.Status
	s.mu.Unlock()

	return s.viewState(ctx, view)
}

// Select toggles membership of the given protocols in the view's selection.
func (s *DashboardService) Select(ctx context.Context, viewID string, req dto.SelectionRequest) (dto.ViewStateResponse, error) {
	view, err := s.getView(viewID)
	if err != nil {
		return dto.ViewStateResponse{}, err
	}

	s.mu.Lock()
	for _, protocol := range req.Protocols {
		if req.Selected {
			view.selection[protocol] = struct{}{}
		} else {
			delete(view.selection, protocol)
		}
	}
	s.mu.Unlock()

	return s.viewState(ctx, view)
}

// OpenCase marks a case as open in the view; an empty protocol closes it.
func (s *DashboardService) OpenCase(ctx context.Context, viewID, protocol string) (dto.ViewStateResponse, error) {
	view, err := s.getView(viewID)
	if err != nil {
		return dto.ViewStateResponse{}, err
	}
	if protocol != "" {
		if _, err := s.cases.GetByProtocol(ctx, protocol); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dto.ViewStateResponse{}, appErrors.Clone(appErrors.ErrNotFound, "case not found")
			}
			return dto.ViewStateResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
		}
	}

	s.mu.Lock()
	view.openCase = protocol
	s.mu.Unlock()

	return s.viewState(ctx, view)
}

// Aggregates recomputes the derived counters for the filtered set. Bucket
// widths scale linearly so the highest count renders at full width.
func (s *DashboardService) Aggregates(ctx context.Context, viewID string) (dto.AggregatesResponse, error) {
	view, err := s.getView(viewID)
	if err != nil {
		return dto.AggregatesResponse{}, err
	}

	cases, err := s.listFor(ctx, view)
	if err != nil {
		return dto.AggregatesResponse{}, err
	}

	statusCounts := make(map[models.CaseStatus]int)
	categoryCounts := make(map[string]int)
	unitCounts := make(map[string]int)
	for i := range cases {
		statusCounts[cases[i].Status]++
		categoryCounts[cases[i].Category]++
		unitCounts[cases[i].Unit]++
	}

	byStatus := make([]dto.Bucket, 0, 4)
	for _, status := range []models.CaseStatus{models.StatusReceived, models.StatusUnderReview, models.StatusInContact, models.StatusResolved} {
		byStatus = append(byStatus, dto.Bucket{Key: string(status), Label: status.Label(), Count: statusCounts[status]})
	}
	scaleBuckets(byStatus)

	return dto.AggregatesResponse{
		Total:      len(cases),
		ByStatus:   byStatus,
		ByCategory: countBuckets(categoryCounts),
		ByUnit:     countBuckets(unitCounts),
	}, nil
}

// SetStatus mutates only the status and updatedAt of a case.
func (s *DashboardService) SetStatus(ctx context.Context, claims *models.JWTClaims, protocol string, req dto.StatusUpdateRequest) (*models.Case, error) {
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}

	before, err := s.cases.GetByProtocol(ctx, protocol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	now := time.Now().UTC()
	if err := s.cases.UpdateStatus(ctx, protocol, req.Status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.audit(ctx, claims, models.AuditActionStatusChange, protocol,
		map[string]interface{}{"status": before.Status},
		map[string]interface{}{"status": req.Status})

	updated := *before
	updated.Status = req.Status
	updated.UpdatedAt = now
	s.publish(CaseEvent{Type: EventStatusChanged, Protocols: []string{protocol}, Case: &updated})
	return &updated, nil
}

// AppendNote appends one annotation; existing notes are never rewritten.
func (s *DashboardService) AppendNote(ctx context.Context, claims *models.JWTClaims, protocol string, req dto.NoteRequest) (*models.Case, error) {
	if req.Text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "note text is required")
	}

	author := "reviewer"
	if claims != nil {
		author = claims.Email
	}
	now := time.Now().UTC()
	note := models.Note{Timestamp: now, Author: author, Text: req.Text}

	if err := s.cases.AppendNote(ctx, protocol, note, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append note")
	}

	s.audit(ctx, claims, models.AuditActionNoteAppend, protocol, nil,
		map[string]interface{}{"text": req.Text})

	updated, err := s.cases.GetByProtocol(ctx, protocol)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload case")
	}
	s.publish(CaseEvent{Type: EventNoteAdded, Protocols: []string{protocol}, Case: updated})
	return updated, nil
}

// DeleteOne removes a single case. Without explicit confirmation nothing
// happens and zero is returned.
func (s *DashboardService) DeleteOne(ctx context.Context, claims *models.JWTClaims, protocol string, confirm bool) (int64, error) {
	if !confirm {
		return 0, nil
	}

	if err := s.cases.Delete(ctx, protocol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete case")
	}

	s.cleanupBlobs(protocol)
	s.dropFromSelections(protocol)
	s.audit(ctx, claims, models.AuditActionCaseDelete, protocol, nil, nil)
	s.publish(CaseEvent{Type: EventCaseDeleted, Protocols: []string{protocol}})
	return 1, nil
}

// DeleteMany removes the view's current selection. Without confirmation, or
// with an empty selection, it is a no-op that leaves the selection intact.
func (s *DashboardService) DeleteMany(ctx context.Context, claims *models.JWTClaims, viewID string, confirm bool) (int64, error) {
	view, err := s.getView(viewID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	protocols := make([]string, 0, len(view.selection))
	for protocol := range view.selection {
		protocols = append(protocols, protocol)
	}
	s.mu.Unlock()
	sort.Strings(protocols)

	if !confirm || len(protocols) == 0 {
		return 0, nil
	}

	affected, err := s.cases.DeleteMany(ctx, protocols)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete cases")
	}

	for _, protocol := range protocols {
		s.cleanupBlobs(protocol)
	}
	s.dropFromSelections(protocols...)
	s.audit(ctx, claims, models.AuditActionBulkDelete, "", nil,
		map[string]interface{}{"protocols": protocols, "deleted": affected})
	s.publish(CaseEvent{Type: EventCaseDeleted, Protocols: protocols})
	return affected, nil
}

// AttachmentURL resolves a download token for one attachment. A stored token
// that still verifies is reused; otherwise the path is re-signed.
func (s *DashboardService) AttachmentURL(ctx context.Context, protocol, name string) (dto.AttachmentURLResponse, error) {
	c, err := s.cases.GetByProtocol(ctx, protocol)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dto.AttachmentURLResponse{}, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return dto.AttachmentURLResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}

	for _, attachment := range c.Attachments {
		if attachment.Name != name {
			continue
		}
		if attachment.URL != "" {
			if _, _, expiresAt, err := s.signer.Parse(attachment.URL, false); err == nil {
				return dto.AttachmentURLResponse{URL: attachment.URL, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)}, nil
			}
		}
		token, expiresAt, err := s.signer.Generate(protocol, attachment.StoragePath)
		if err != nil {
			return dto.AttachmentURLResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url")
		}
		return dto.AttachmentURLResponse{URL: token, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)}, nil
	}
	return dto.AttachmentURLResponse{}, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
}

func (s *DashboardService) viewState(ctx context.Context, view *dashboardView) (dto.ViewStateResponse, error) {
	cases, err := s.listFor(ctx, view)
	if err != nil {
		return dto.ViewStateResponse{}, err
	}

	existing := make(map[string]struct{}, len(cases))
	for i := range cases {
		existing[cases[i].Protocol] = struct{}{}
	}

	s.mu.Lock()
	view.touchedAt = time.Now().UTC()
	// Selections for cases that vanished from the collection are dropped;
	// cases merely hidden by the current filter keep their selection, so
	// only an unfiltered listing may prune.
	if view.search == "" && view.status == "" {
		for protocol := range view.selection {
			if _, ok := existing[protocol]; !ok {
				delete(view.selection, protocol)
			}
		}
	}
	selection := make([]string, 0, len(view.selection))
	for protocol := range view.selection {
		selection = append(selection, protocol)
	}
	openCase := view.openCase
	search := view.search
	status := view.status
	id := view.id
	s.mu.Unlock()

	sort.Strings(selection)
	return dto.ViewStateResponse{
		ViewID:    id,
		Search:    search,
		Status:    status,
		Selection: selection,
		OpenCase:  openCase,
		Cases:     cases,
	}, nil
}

func (s *DashboardService) listFor(ctx context.Context, view *dashboardView) ([]models.Case, error) {
	s.mu.Lock()
	filter := models.CaseFilter{Search: view.search, Status: view.status}
	s.mu.Unlock()

	cases, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cases")
	}
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].LastTouched().After(cases[j].LastTouched())
	})
	return cases, nil
}

func (s *DashboardService) getView(viewID string) (*dashboardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	view, ok := s.views[viewID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "dashboard view not found")
	}
	return view, nil
}

func (s *DashboardService) pruneLocked() {
	cutoff := time.Now().UTC().Add(-s.viewTTL)
	for id, view := range s.views {
		if view.touchedAt.Before(cutoff) {
			delete(s.views, id)
		}
	}
}

func (s *DashboardService) dropFromSelections(protocols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, view := range s.views {
		for _, protocol := range protocols {
			delete(view.selection, protocol)
			if view.openCase == protocol {
				view.openCase = ""
			}
		}
	}
}

func (s *DashboardService) cleanupBlobs(protocol string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Cleanup(protocol); err != nil {
		s.logger.Warn("failed to clean up case blobs", zap.String("protocol", protocol), zap.Error(err))
	}
}

func (s *DashboardService) publish(event CaseEvent) {
	if s.stream != nil {
		s.stream.Publish(event)
	}
}

func (s *DashboardService) audit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, oldValues, newValues map[string]interface{}) {
	if s.audits == nil {
		return
	}
	log := &models.AuditLog{Action: action, Resource: "case"}
	if claims != nil {
		log.UserID = &claims.UserID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if oldValues != nil {
		if raw, err := json.Marshal(oldValues); err == nil {
			log.OldValues = raw
		}
	}
	if newValues != nil {
		if raw, err := json.Marshal(newValues); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func countBuckets(counts map[string]int) []dto.Bucket {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buckets := make([]dto.Bucket, 0, len(keys))
	for _, key := range keys {
		buckets = append(buckets, dto.Bucket{Key: key, Count: counts[key]})
	}
	scaleBuckets(buckets)
	return buckets
}

// scaleBuckets assigns bar widths so the highest count maps to 100.
func scaleBuckets(buckets []dto.Bucket) {
	max := 0
	for i := range buckets {
		if buckets[i].Count > max {
			max = buckets[i].Count
		}
	}
	if max == 0 {
		return
	}
	for i := range buckets {
		buckets[i].Width = buckets[i].Count * 100 / max
	}
}
