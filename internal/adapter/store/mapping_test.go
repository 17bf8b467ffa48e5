package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

var mappingColumnNames = []string{
	"id", "commit_id", "timesheet_entry_id", "mapped_by", "mapping_date",
	"mapping_method", "description", "confidence_score", "company_id",
	"commit_hash", "commit_message", "author_name", "commit_date", "repository_id",
	"name", "project_id", "user_name", "entry_date", "hours",
}

func mappingRow(id string) *sqlmock.Rows {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(mappingColumnNames).AddRow(
		id, "commit-1", "entry-1", "user-1", now,
		"manual", "linked by hand", 0.0, "company-1",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "fix: login crash", "Dev", now, "repo-1",
		"PROJ-7: login fixes", "PROJ-7", "Dev", now, 4.5,
	)
}

func TestCreateMapping(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("commit-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO mappings").
		WillReturnRows(sqlmock.NewRows([]string{"id", "mapping_date"}).
			AddRow("mapping-1", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)))
	mock.ExpectExec("UPDATE commits SET is_mapped = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT (.+) FROM mappings m").
		WithArgs("mapping-1", "company-1").
		WillReturnRows(mappingRow("mapping-1"))

	m, err := s.CreateMapping(context.Background(), &domain.Mapping{
		CommitID:         "commit-1",
		TimesheetEntryID: "entry-1",
		MappedBy:         "user-1",
		Method:           domain.MappingMethodManual,
		CompanyID:        "company-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "mapping-1", m.ID)
	assert.Equal(t, "PROJ-7", m.ProjectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMappingConflictNamesEntry(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("commit-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("PROJ-7: login fixes"))
	mock.ExpectRollback()

	_, err := s.CreateMapping(context.Background(), &domain.Mapping{CommitID: "commit-1", CompanyID: "company-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrConflict)
	assert.Contains(t, err.Error(), "PROJ-7: login fixes")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMappingClearsCommit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM mappings").
		WithArgs("mapping-1").
		WillReturnRows(sqlmock.NewRows([]string{"commit_id"}).AddRow("commit-1"))
	mock.ExpectExec("UPDATE commits SET is_mapped = FALSE").
		WithArgs("commit-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.DeleteMapping(context.Background(), "mapping-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMappingNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM mappings").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.DeleteMapping(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
