package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

const timesheetColumns = `id, name, project_id, project_name, task_id, task_name,
	user_id, user_email, user_name, entry_date, hours, company_id, active`

func scanTimesheetEntry(row interface{ Scan(...any) error }) (*domain.TimesheetEntry, error) {
	var t domain.TimesheetEntry
	err := row.Scan(
		&t.ID, &t.Name, &t.ProjectID, &t.ProjectName, &t.TaskID, &t.TaskName,
		&t.UserID, &t.UserEmail, &t.UserName, &t.Date, &t.Hours, &t.CompanyID, &t.Active,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTimesheetEntry returns one timesheet entry by its external ID.
func (s *PostgresStore) GetTimesheetEntry(ctx context.Context, id string) (*domain.TimesheetEntry, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheet_entries WHERE id = $1`

	t, err := scanTimesheetEntry(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFoundf("timesheet entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get timesheet entry: %w", err)
	}
	return t, nil
}

// FindCandidateEntries returns active entries with a project set, within a
// company and date window, optionally restricted to one project. These are
// the pairing candidates for suggestion scoring.
func (s *PostgresStore) FindCandidateEntries(ctx context.Context, companyID, projectID string, from, to time.Time) ([]domain.TimesheetEntry, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheet_entries
	          WHERE company_id = $1 AND active AND project_id <> ''
	            AND entry_date >= $2 AND entry_date <= $3`
	args := []interface{}{companyID, from, to}

	if projectID != "" {
		query += ` AND project_id = $4`
		args = append(args, projectID)
	}
	query += ` ORDER BY entry_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidate entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimesheetEntry
	for rows.Next() {
		t, err := scanTimesheetEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timesheet entry: %w", err)
		}
		entries = append(entries, *t)
	}
	return entries, nil
}

// ListTimesheetEntries returns a company's entries, optionally bounded by
// date, newest first.
func (s *PostgresStore) ListTimesheetEntries(ctx context.Context, companyID string, from, to *time.Time) ([]domain.TimesheetEntry, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheet_entries WHERE company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if from != nil {
		query += fmt.Sprintf(" AND entry_date >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		query += fmt.Sprintf(" AND entry_date <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}
	query += " ORDER BY entry_date DESC LIMIT 500"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timesheet entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimesheetEntry
	for rows.Next() {
		t, err := scanTimesheetEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timesheet entry: %w", err)
		}
		entries = append(entries, *t)
	}
	return entries, nil
}
