package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/timeout"
)

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

type principalStore interface {
	Create(ctx context.Context) (*models.Principal, error)
	GetByID(ctx context.Context, id string) (*models.Principal, error)
	Touch(ctx context.Context, id string, ts time.Time) error
}

// SessionService bootstraps reporter sessions. A session binds an anonymous
// principal and carries the policy-acceptance flag; write operations refuse
// to run without one.
type SessionService struct {
	sessions         sessionStore
	principals       principalStore
	logger           *zap.Logger
	bootstrapTimeout time.Duration
}

// NewSessionService constructs the service.
func NewSessionService(sessions sessionStore, principals principalStore, logger *zap.Logger, bootstrapTimeout time.Duration) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:         sessions,
		principals:       principals,
		logger:           logger,
		bootstrapTimeout: bootstrapTimeout,
	}
}

// Bootstrap resolves an existing session or creates a fresh one with a new
// anonymous principal. The whole sequence runs under the bootstrap deadline;
// when it fires the reporter gets a timeout error instead of hanging.
func (s *SessionService) Bootstrap(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := timeout.Guard(ctx, s.bootstrapTimeout, "session bootstrap", func(ctx context.Context) (*models.Session, error) {
		return s.bootstrap(ctx, sessionID)
	})
	if err != nil {
		if timeout.IsDeadline(err) {
			s.logger.Warn("session bootstrap deadline exceeded", zap.String("session_id", sessionID))
			return nil, appErrors.Clone(appErrors.ErrTimeout, "session could not be prepared in time")
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) bootstrap(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID != "" {
		session, err := s.sessions.Get(ctx, sessionID)
		if err == nil {
			if err := s.ensurePrincipal(ctx, session); err != nil {
				return nil, err
			}
			if err := s.sessions.Save(ctx, session); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh session")
			}
			return session, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
	}

	principal, err := s.principals.Create(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create principal")
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		PrincipalID: principal.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return session, nil
}

func (s *SessionService) ensurePrincipal(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.PrincipalID != "" {
		if _, err := s.principals.GetByID(ctx, session.PrincipalID); err == nil {
			if err := s.principals.Touch(ctx, session.PrincipalID, now); err != nil {
				s.logger.Warn("failed to touch principal", zap.String("principal_id", session.PrincipalID), zap.Error(err))
			}
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load principal")
		}
	}

	principal, err := s.principals.Create(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create principal")
	}
	session.PrincipalID = principal.ID
	return nil
}

// Require returns the session for the given ID or a session-required error.
func (s *SessionService) Require(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, appErrors.ErrSessionRequired
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.ErrSessionRequired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// AcceptPolicy marks the reporting policy as acknowledged for the session.
func (s *SessionService) AcceptPolicy(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.Require(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PolicyAccepted() {
		return session, nil
	}
	now := time.Now().UTC()
	session.PolicyAcceptedAt = &now
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist policy acceptance")
	}
	return session, nil
}

// End removes the session and any wizard state bound to it.
func (s *SessionService) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end session")
	}
	return nil
}
