package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ethicsline/ethicsline-api/internal/models"
)

const caseColumns = `protocol, unit, category, answers, anonymous, contact, attachments, status, notes, principal_id, created_at, updated_at`

// CaseRepository persists case documents in the "cases" table.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository constructs the repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts a new case row. The protocol is supplied by the caller and
// never regenerated here.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.Status == "" {
		c.Status = models.StatusReceived
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	const query = `INSERT INTO cases (protocol, unit, category, answers, anonymous, contact, attachments, status, notes, principal_id, created_at, updated_at)
VALUES (:protocol, :unit, :category, :answers, :anonymous, :contact, :attachments, :status, :notes, :principal_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetByProtocol returns one case by its protocol code. Callers receive
// sql.ErrNoRows unchanged so they can treat not-found as a normal result.
func (r *CaseRepository) GetByProtocol(ctx context.Context, protocol string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE protocol = $1 LIMIT 1`
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, protocol); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("decode case: %w", err)
	}
	return &c, nil
}

// List returns cases matching the filter, most recently touched first.
func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		n := len(args) + 1
		query += fmt.Sprintf(` AND (LOWER(protocol) LIKE $%d OR LOWER(unit) LIKE $%d OR LOWER(category) LIKE $%d
 OR LOWER(answers->>'location') LIKE $%d OR LOWER(answers->>'description') LIKE $%d)`, n, n, n, n, n)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	query += " ORDER BY GREATEST(updated_at, created_at) DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	var cases []models.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	for i := range cases {
		if err := cases[i].Validate(); err != nil {
			return nil, fmt.Errorf("decode case: %w", err)
		}
	}
	return cases, nil
}

// UpdateStatus mutates only the status and updated_at columns.
func (r *CaseRepository) UpdateStatus(ctx context.Context, protocol string, status models.CaseStatus, updatedAt time.Time) error {
	const query = `UPDATE cases SET status = $2, updated_at = $3 WHERE protocol = $1`
	res, err := r.db.ExecContext(ctx, query, protocol, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	return requireRow(res, "update case status")
}

// AppendNote appends one note to the notes array and refreshes updated_at.
// The JSONB concatenation never rewrites existing entries.
func (r *CaseRepository) AppendNote(ctx context.Context, protocol string, note models.Note, updatedAt time.Time) error {
	payload, err := json.Marshal([]models.Note{note})
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	const query = `UPDATE cases SET notes = COALESCE(notes, '[]'::jsonb) || $2::jsonb, updated_at = $3 WHERE protocol = $1`
	res, err := r.db.ExecContext(ctx, query, protocol, payload, updatedAt)
	if err != nil {
		return fmt.Errorf("append case note: %w", err)
	}
	return requireRow(res, "append case note")
}

// Delete removes one case row entirely.
func (r *CaseRepository) Delete(ctx context.Context, protocol string) error {
	const query = `DELETE FROM cases WHERE protocol = $1`
	res, err := r.db.ExecContext(ctx, query, protocol)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	return requireRow(res, "delete case")
}

// DeleteMany removes the given protocols and returns how many rows went away.
func (r *CaseRepository) DeleteMany(ctx context.Context, protocols []string) (int64, error) {
	if len(protocols) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM cases WHERE protocol IN (?)`, protocols)
	if err != nil {
		return 0, fmt.Errorf("build bulk delete: %w", err)
	}
	query = r.db.Rebind(query)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete cases: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk delete cases: %w", err)
	}
	return affected, nil
}

func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
