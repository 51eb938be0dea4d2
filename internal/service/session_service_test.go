package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

type fakePrincipalStore struct {
	mu         sync.Mutex
	principals map[string]*models.Principal
	createErr  error
	delay      time.Duration
	touched    []string
}

func newFakePrincipalStore() *fakePrincipalStore {
	return &fakePrincipalStore{principals: make(map[string]*models.Principal)}
}

func (f *fakePrincipalStore) Create(ctx context.Context) (*models.Principal, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Principal{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), LastSeenAt: time.Now().UTC()}
	f.principals[p.ID] = p
	return p, nil
}

func (f *fakePrincipalStore) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.principals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakePrincipalStore) Touch(ctx context.Context, id string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func TestSessionBootstrapCreatesSessionAndPrincipal(t *testing.T) {
	sessions := newFakeSessionStore()
	principals := newFakePrincipalStore()
	svc := NewSessionService(sessions, principals, zap.NewNop(), time.Second)

	session, err := svc.Bootstrap(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.PrincipalID)
	assert.False(t, session.PolicyAccepted())

	stored, err := sessions.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.PrincipalID, stored.PrincipalID)
}

func TestSessionBootstrapReusesExistingSession(t *testing.T) {
	sessions := newFakeSessionStore()
	principals := newFakePrincipalStore()
	svc := NewSessionService(sessions, principals, zap.NewNop(), time.Second)

	first, err := svc.Bootstrap(context.Background(), "")
	require.NoError(t, err)

	second, err := svc.Bootstrap(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PrincipalID, second.PrincipalID)
	assert.Contains(t, principals.touched, first.PrincipalID)
}

func TestSessionBootstrapUnknownIDStartsFresh(t *testing.T) {
	sessions := newFakeSessionStore()
	principals := newFakePrincipalStore()
	svc := NewSessionService(sessions, principals, zap.NewNop(), time.Second)

	session, err := svc.Bootstrap(context.Background(), "expired-session")
	require.NoError(t, err)
	assert.NotEqual(t, "expired-session", session.ID)
	assert.NotEmpty(t, session.PrincipalID)
}

func TestSessionBootstrapDeadline(t *testing.T) {
	sessions := newFakeSessionStore()
	principals := newFakePrincipalStore()
	principals.delay = 200 * time.Millisecond
	svc := NewSessionService(sessions, principals, zap.NewNop(), 20*time.Millisecond)

	_, err := svc.Bootstrap(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimeout.Code, appErrors.FromError(err).Code)
}

func TestSessionRequire(t *testing.T) {
	sessions := newFakeSessionStore()
	svc := NewSessionService(sessions, newFakePrincipalStore(), zap.NewNop(), time.Second)

	_, err := svc.Require(context.Background(), "")
	assert.Equal(t, appErrors.ErrSessionRequired.Code, appErrors.FromError(err).Code)

	_, err = svc.Require(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrSessionRequired.Code, appErrors.FromError(err).Code)

	session, err := svc.Bootstrap(context.Background(), "")
	require.NoError(t, err)
	got, err := svc.Require(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
}

func TestSessionAcceptPolicy(t *testing.T) {
	sessions := newFakeSessionStore()
	svc := NewSessionService(sessions, newFakePrincipalStore(), zap.NewNop(), time.Second)

	session, err := svc.Bootstrap(context.Background(), "")
	require.NoError(t, err)

	accepted, err := svc.AcceptPolicy(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, accepted.PolicyAccepted())

	// Accepting twice keeps the original timestamp.
	again, err := svc.AcceptPolicy(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, accepted.PolicyAcceptedAt.Unix(), again.PolicyAcceptedAt.Unix())
}

func TestSessionEnd(t *testing.T) {
	sessions := newFakeSessionStore()
	svc := NewSessionService(sessions, newFakePrincipalStore(), zap.NewNop(), time.Second)

	session, err := svc.Bootstrap(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, svc.End(context.Background(), session.ID))

	_, err = svc.Require(context.Background(), session.ID)
	assert.Equal(t, appErrors.ErrSessionRequired.Code, appErrors.FromError(err).Code)
}
