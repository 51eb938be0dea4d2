package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

// SessionRepository stores reporter session state in Redis: the explicit
// session record (policy flag, principal binding, last fingerprint) and the
// serialized intake wizard, each under the session TTL.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionRepository{client: client, ttl: ttl}
}

func sessionKey(id string) string { return "session:" + id }
func wizardKey(id string) string  { return "wizard:" + id }

// Get loads a session record. A missing key yields ErrCacheMiss.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// Save persists a session record, refreshing its TTL.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", session.ID, err)
	}
	return nil
}

// Delete removes a session record and any wizard bound to it.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id), wizardKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}

// GetWizard loads the serialized wizard state for a session.
func (r *SessionRepository) GetWizard(ctx context.Context, sessionID string) ([]byte, error) {
	raw, err := r.client.Get(ctx, wizardKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get wizard %s: %w", sessionID, err)
	}
	return raw, nil
}

// SaveWizard persists the serialized wizard state under the session TTL.
func (r *SessionRepository) SaveWizard(ctx context.Context, sessionID string, state []byte) error {
	if err := r.client.Set(ctx, wizardKey(sessionID), state, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set wizard %s: %w", sessionID, err)
	}
	return nil
}

// DeleteWizard removes the wizard state once a submission completes.
func (r *SessionRepository) DeleteWizard(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, wizardKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete wizard %s: %w", sessionID, err)
	}
	return nil
}
