package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicsline/ethicsline-api/internal/models"
)

func newCaseMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func caseRows(t *testing.T, protocols ...string) *sqlmock.Rows {
	t.Helper()
	rows := sqlmock.NewRows([]string{"protocol", "unit", "category", "answers", "anonymous", "contact", "attachments", "status", "notes", "principal_id", "created_at", "updated_at"})
	answers, err := json.Marshal(models.Answers{
		IncidentDate: "2026-08-01",
		Recurrence:   models.RecurrenceSingle,
		Location:     "warehouse",
		Description:  "something happened",
	})
	require.NoError(t, err)
	for _, p := range protocols {
		rows.AddRow(p, "AGG", "Fraude", answers, true, nil, []byte("[]"), "RECEIVED", []byte("[]"), "principal-1", time.Now(), time.Now())
	}
	return rows
}

func TestCaseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectExec("INSERT INTO cases").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c := &models.Case{
		Protocol: "ABCD-1234",
		Unit:     "AGG",
		Category: "Fraude",
		Answers: models.AnswersRecord{
			IncidentDate: "2026-08-01",
			Recurrence:   models.RecurrenceSingle,
			Location:     "warehouse",
			Description:  "long enough description",
		},
		Anonymous:   true,
		PrincipalID: "principal-1",
	}
	err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, c.Status)
	assert.False(t, c.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryGetByProtocolNotFound(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM cases WHERE protocol").
		WithArgs("MISSING").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByProtocol(context.Background(), "MISSING")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryGetByProtocolRejectsMalformedRow(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	rows := sqlmock.NewRows([]string{"protocol", "unit", "category", "answers", "anonymous", "contact", "attachments", "status", "notes", "principal_id", "created_at", "updated_at"}).
		AddRow("ABCD-1234", "", "", []byte(`{}`), false, nil, []byte("[]"), "RECEIVED", []byte("[]"), "p1", time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM cases WHERE protocol").
		WithArgs("ABCD-1234").
		WillReturnRows(rows)

	_, err := repo.GetByProtocol(context.Background(), "ABCD-1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode case")
}

func TestCaseRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM cases WHERE 1=1 AND status = (.+) AND \\(LOWER\\(protocol\\) LIKE").
		WithArgs(models.StatusReceived, "%warehouse%").
		WillReturnRows(caseRows(t, "ABCD-1234", "EFGH-5678"))

	cases, err := repo.List(context.Background(), models.CaseFilter{Status: models.StatusReceived, Search: "Warehouse"})
	require.NoError(t, err)
	assert.Len(t, cases, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryUpdateStatusTouchesOnlyStatusAndUpdatedAt(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE cases SET status = \\$2, updated_at = \\$3 WHERE protocol = \\$1").
		WithArgs("ABCD-1234", models.StatusResolved, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "ABCD-1234", models.StatusResolved, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectExec("UPDATE cases SET status").
		WithArgs("MISSING", models.StatusResolved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "MISSING", models.StatusResolved, time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCaseRepositoryAppendNoteConcatenates(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectExec("UPDATE cases SET notes = COALESCE\\(notes, '\\[\\]'::jsonb\\) \\|\\| \\$2::jsonb, updated_at = \\$3").
		WithArgs("ABCD-1234", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	note := models.Note{Timestamp: time.Now().UTC(), Author: "reviewer@example.com", Text: "called the reporter"}
	err := repo.AppendNote(context.Background(), "ABCD-1234", note, time.Now().UTC())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepositoryDeleteMany(t *testing.T) {
	db, mock, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	mock.ExpectExec("DELETE FROM cases WHERE protocol IN").
		WithArgs("ABCD-1234", "EFGH-5678").
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.DeleteMany(context.Background(), []string{"ABCD-1234", "EFGH-5678"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)
}

func TestCaseRepositoryDeleteManyEmptyIsNoop(t *testing.T) {
	db, _, cleanup := newCaseMock(t)
	defer cleanup()
	repo := NewCaseRepository(db)

	affected, err := repo.DeleteMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, affected)
}
