package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

type memCaseRepo struct {
	mu    sync.Mutex
	cases map[string]*models.Case
}

func newMemCaseRepo(cases ...*models.Case) *memCaseRepo {
	repo := &memCaseRepo{cases: make(map[string]*models.Case)}
	for _, c := range cases {
		repo.cases[c.Protocol] = c
	}
	return repo
}

func (m *memCaseRepo) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Case
	for _, c := range m.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			haystack := strings.ToLower(c.Protocol + " " + c.Unit + " " + c.Category + " " + c.Answers.Location + " " + c.Answers.Description)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCaseRepo) GetByProtocol(ctx context.Context, protocol string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[protocol]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *memCaseRepo) UpdateStatus(ctx context.Context, protocol string, status models.CaseStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[protocol]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	c.UpdatedAt = updatedAt
	return nil
}

func (m *memCaseRepo) AppendNote(ctx context.Context, protocol string, note models.Note, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[protocol]
	if !ok {
		return sql.ErrNoRows
	}
	c.Notes = append(c.Notes, note)
	c.UpdatedAt = updatedAt
	return nil
}

func (m *memCaseRepo) Delete(ctx context.Context, protocol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[protocol]; !ok {
		return sql.ErrNoRows
	}
	delete(m.cases, protocol)
	return nil
}

func (m *memCaseRepo) DeleteMany(ctx context.Context, protocols []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, protocol := range protocols {
		if _, ok := m.cases[protocol]; ok {
			delete(m.cases, protocol)
			affected++
		}
	}
	return affected, nil
}

type memAuditWriter struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (m *memAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

type dashSigner struct{}

func (dashSigner) Generate(resourceID, relPath string) (string, time.Time, error) {
	return "signed:" + resourceID + ":" + relPath, time.Now().Add(time.Hour), nil
}

func (dashSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	if strings.HasPrefix(token, "signed:") {
		return "", "", time.Now().Add(time.Hour), nil
	}
	return "", "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid token")
}

func dashboardCase(protocol, unit, category string, status models.CaseStatus, touched time.Time) *models.Case {
	return &models.Case{
		Protocol: protocol,
		Unit:     unit,
		Category: category,
		Answers: models.AnswersRecord{
			IncidentDate: "2026-08-01",
			Recurrence:   models.RecurrenceSingle,
			Location:     "warehouse",
			Description:  "description of the incident in enough detail",
		},
		Anonymous: true,
		Status:    status,
		CreatedAt: touched,
		UpdatedAt: touched,
	}
}

func newDashboardHarness(t *testing.T, cases ...*models.Case) (*DashboardService, *memCaseRepo, *memAuditWriter) {
	t.Helper()
	repo := newMemCaseRepo(cases...)
	audits := &memAuditWriter{}
	stream := NewCaseStream(16, zap.NewNop())
	svc := NewDashboardService(repo, audits, stream, dashSigner{}, nil, zap.NewNop(), time.Hour)
	return svc, repo, audits
}

func reviewerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Email: "reviewer@example.com", Role: models.RoleReviewer}
}

func TestDashboardViewFilterAndSort(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	svc, _, _ := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("BBBB-2222", "OPS", "Outros", models.StatusResolved, base.Add(30*time.Minute)),
		dashboardCase("CCCC-3333", "FIN", "Assédio", models.StatusReceived, base.Add(10*time.Minute)),
	)

	view, err := svc.OpenView(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, view.Cases, 3)
	// Most recently touched first.
	assert.Equal(t, "BBBB-2222", view.Cases[0].Protocol)

	state, err := svc.SetFilter(context.Background(), view.ViewID, dto.ViewFilterRequest{Search: "fraude"})
	require.NoError(t, err)
	require.Len(t, state.Cases, 1)
	assert.Equal(t, "AAAA-1111", state.Cases[0].Protocol)

	state, err = svc.SetFilter(context.Background(), view.ViewID, dto.ViewFilterRequest{Status: models.StatusReceived})
	require.NoError(t, err)
	assert.Len(t, state.Cases, 2)
}

func TestDashboardSelectionSurvivesFiltering(t *testing.T) {
	base := time.Now().UTC()
	svc, _, _ := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("BBBB-2222", "OPS", "Outros", models.StatusResolved, base),
	)

	view, err := svc.OpenView(context.Background(), "user-1")
	require.NoError(t, err)

	state, err := svc.Select(context.Background(), view.ViewID, dto.SelectionRequest{Protocols: []string{"AAAA-1111"}, Selected: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA-1111"}, state.Selection)

	// Filtering the selected case out of sight keeps it selected.
	state, err = svc.SetFilter(context.Background(), view.ViewID, dto.ViewFilterRequest{Status: models.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA-1111"}, state.Selection)
}

func TestDashboardSelectionDroppedWhenCaseRemoved(t *testing.T) {
	base := time.Now().UTC()
	svc, _, _ := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("BBBB-2222", "OPS", "Outros", models.StatusResolved, base),
	)

	view, err := svc.OpenView(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = svc.Select(context.Background(), view.ViewID, dto.SelectionRequest{Protocols: []string{"AAAA-1111", "BBBB-2222"}, Selected: true})
	require.NoError(t, err)

	_, err = svc.DeleteOne(context.Background(), reviewerClaims(), "AAAA-1111", true)
	require.NoError(t, err)

	state, err := svc.ViewState(context.Background(), view.ViewID)
	require.NoError(t, err)
	assert.Equal(t, []string{"BBBB-2222"}, state.Selection)
}

func TestDashboardSetStatusTouchesOnlyStatusAndUpdatedAt(t *testing.T) {
	created := time.Now().UTC().Add(-time.Hour)
	svc, repo, audits := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, created),
	)

	updated, err := svc.SetStatus(context.Background(), reviewerClaims(), "AAAA-1111", dto.StatusUpdateRequest{Status: models.StatusUnderReview})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, updated.Status)

	stored, err := repo.GetByProtocol(context.Background(), "AAAA-1111")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, stored.Status)
	assert.Equal(t, created.Unix(), stored.CreatedAt.Unix())
	assert.True(t, stored.UpdatedAt.After(created))
	assert.Equal(t, "FIN", stored.Unit)

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionStatusChange, audits.logs[0].Action)
}

func TestDashboardSetStatusRejectsUnknown(t *testing.T) {
	svc, _, _ := newDashboardHarness(t, dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, time.Now().UTC()))
	_, err := svc.SetStatus(context.Background(), reviewerClaims(), "AAAA-1111", dto.StatusUpdateRequest{Status: "ARCHIVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDashboardAppendNoteIsAppendOnly(t *testing.T) {
	svc, repo, _ := newDashboardHarness(t, dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, time.Now().UTC()))

	_, err := svc.AppendNote(context.Background(), reviewerClaims(), "AAAA-1111", dto.NoteRequest{Text: "first"})
	require.NoError(t, err)
	updated, err := svc.AppendNote(context.Background(), reviewerClaims(), "AAAA-1111", dto.NoteRequest{Text: "second"})
	require.NoError(t, err)

	require.Len(t, updated.Notes, 2)
	assert.Equal(t, "first", updated.Notes[0].Text)
	assert.Equal(t, "second", updated.Notes[1].Text)
	assert.Equal(t, "reviewer@example.com", updated.Notes[0].Author)

	stored, err := repo.GetByProtocol(context.Background(), "AAAA-1111")
	require.NoError(t, err)
	assert.Len(t, stored.Notes, 2)
}

func TestDashboardBulkDeleteWithoutConfirmIsNoop(t *testing.T) {
	base := time.Now().UTC()
	svc, _, _ := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("BBBB-2222", "OPS", "Outros", models.StatusResolved, base),
	)

	view, err := svc.OpenView(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = svc.Select(context.Background(), view.ViewID, dto.SelectionRequest{Protocols: []string{"AAAA-1111", "BBBB-2222"}, Selected: true})
	require.NoError(t, err)

	deleted, err := svc.DeleteMany(context.Background(), reviewerClaims(), view.ViewID, false)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	state, err := svc.ViewState(context.Background(), view.ViewID)
	require.NoError(t, err)
	assert.Len(t, state.Cases, 2)
	assert.Len(t, state.Selection, 2)
}

func TestDashboardBulkDeleteWithConfirm(t *testing.T) {
	base := time.Now().UTC()
	svc, _, audits := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("BBBB-2222", "OPS", "Outros", models.StatusResolved, base),
		dashboardCase("CCCC-3333", "TI", "Outros", models.StatusReceived, base),
	)

	view, err := svc.OpenView(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = svc.Select(context.Background(), view.ViewID, dto.SelectionRequest{Protocols: []string{"AAAA-1111", "BBBB-2222"}, Selected: true})
	require.NoError(t, err)

	deleted, err := svc.DeleteMany(context.Background(), reviewerClaims(), view.ViewID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	state, err := svc.ViewState(context.Background(), view.ViewID)
	require.NoError(t, err)
	assert.Len(t, state.Cases, 1)
	assert.Empty(t, state.Selection)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionBulkDelete, audits.logs[0].Action)
}

func TestDashboardAggregates(t *testing.T) {
	base := time.Now().UTC()
	svc, _, _ := newDashboardHarness(t,
		dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("BBBB-2222", "FIN", "Fraude", models.StatusReceived, base),
		dashboardCase("CCCC-3333", "OPS", "Outros", models.StatusResolved, base),
	)

	view, err := svc.OpenView(context.Background(), "user-1")
	require.NoError(t, err)

	agg, err := svc.Aggregates(context.Background(), view.ViewID)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Total)

	statusSum := 0
	var receivedWidth int
	for _, bucket := range agg.ByStatus {
		statusSum += bucket.Count
		if bucket.Key == string(models.StatusReceived) {
			receivedWidth = bucket.Width
		}
	}
	assert.Equal(t, 3, statusSum)
	assert.Equal(t, 100, receivedWidth, "the largest bucket renders at full width")

	categorySum := 0
	for _, bucket := range agg.ByCategory {
		categorySum += bucket.Count
	}
	assert.Equal(t, 3, categorySum)
}

func TestDashboardStreamReceivesMutations(t *testing.T) {
	svc, _, _ := newDashboardHarness(t, dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, time.Now().UTC()))

	id, events := svc.Stream().Subscribe()
	defer svc.Stream().Unsubscribe(id)

	_, err := svc.SetStatus(context.Background(), reviewerClaims(), "AAAA-1111", dto.StatusUpdateRequest{Status: models.StatusInContact})
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, EventStatusChanged, event.Type)
		assert.Equal(t, []string{"AAAA-1111"}, event.Protocols)
	case <-time.After(time.Second):
		t.Fatal("expected a stream event")
	}
}

func TestDashboardAttachmentURLResigning(t *testing.T) {
	c := dashboardCase("AAAA-1111", "FIN", "Fraude", models.StatusReceived, time.Now().UTC())
	c.Attachments = models.AttachmentList{{Name: "evidence.pdf", StoragePath: "cases/AAAA-1111/1-evidence.pdf", URL: "stale-token"}}
	svc, _, _ := newDashboardHarness(t, c)

	res, err := svc.AttachmentURL(context.Background(), "AAAA-1111", "evidence.pdf")
	require.NoError(t, err)
	assert.Contains(t, res.URL, "signed:AAAA-1111")

	_, err = svc.AttachmentURL(context.Background(), "AAAA-1111", "missing.txt")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDashboardUnknownView(t *testing.T) {
	svc, _, _ := newDashboardHarness(t)
	_, err := svc.ViewState(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
