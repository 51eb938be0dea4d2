package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ethicsline/ethicsline-api/internal/models"
)

// PrincipalRepository persists anonymous reporter identities. It is the
// identity-provider collaborator behind session bootstrap.
type PrincipalRepository struct {
	db *sqlx.DB
}

// NewPrincipalRepository constructs the repository.
func NewPrincipalRepository(db *sqlx.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// Create inserts a fresh anonymous principal.
func (r *PrincipalRepository) Create(ctx context.Context) (*models.Principal, error) {
	now := time.Now().UTC()
	p := &models.Principal{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	const query = `INSERT INTO principals (id, created_at, last_seen_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.CreatedAt, p.LastSeenAt); err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}
	return p, nil
}

// GetByID returns a principal by identifier.
func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	const query = `SELECT id, created_at, last_seen_at FROM principals WHERE id = $1 LIMIT 1`
	var p models.Principal
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return &p, nil
}

// Touch refreshes the last_seen_at timestamp.
func (r *PrincipalRepository) Touch(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE principals SET last_seen_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("touch principal: %w", err)
	}
	return nil
}
