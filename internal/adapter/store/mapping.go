package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// mappingColumns joins the mapping row with its commit and timesheet entry
// for the denormalized display projections.
const mappingColumns = `m.id, m.commit_id, m.timesheet_entry_id, m.mapped_by, m.mapping_date,
	m.mapping_method, m.description, m.confidence_score, m.company_id,
	c.commit_hash, c.commit_message, c.author_name, c.commit_date, c.repository_id,
	t.name, t.project_id, t.user_name, t.entry_date, t.hours`

const mappingFrom = ` FROM mappings m
	JOIN commits c ON c.id = m.commit_id
	JOIN timesheet_entries t ON t.id = m.timesheet_entry_id`

func scanMapping(row interface{ Scan(...any) error }) (*domain.Mapping, error) {
	var m domain.Mapping
	err := row.Scan(
		&m.ID, &m.CommitID, &m.TimesheetEntryID, &m.MappedBy, &m.MappingDate,
		&m.Method, &m.Description, &m.ConfidenceScore, &m.CompanyID,
		&m.CommitHash, &m.CommitMessage, &m.CommitAuthor, &m.CommitDate, &m.RepositoryID,
		&m.TimesheetName, &m.ProjectID, &m.TimesheetUser, &m.TimesheetDate, &m.TimesheetHrs,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMapping inserts the link and marks the commit mapped in one
// transaction. A commit that already holds a mapping yields a conflict
// error naming the linked timesheet entry.
func (s *PostgresStore) CreateMapping(ctx context.Context, m *domain.Mapping) (*domain.Mapping, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mapping tx: %w", err)
	}
	defer tx.Rollback()

	var existingEntry string
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(NULLIF(t.name, ''), m.timesheet_entry_id)
		FROM mappings m
		JOIN timesheet_entries t ON t.id = m.timesheet_entry_id
		WHERE m.commit_id = $1
		FOR UPDATE OF m`, m.CommitID).Scan(&existingEntry)
	if err == nil {
		return nil, port.Conflictf("commit is already mapped to timesheet entry %q", existingEntry)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check existing mapping: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO mappings (commit_id, timesheet_entry_id, mapped_by, mapping_method, description, confidence_score, company_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, mapping_date`,
		m.CommitID, m.TimesheetEntryID, m.MappedBy, m.Method, m.Description, m.ConfidenceScore, m.CompanyID,
	).Scan(&m.ID, &m.MappingDate)
	if isUniqueViolation(err) {
		return nil, port.Conflictf("commit is already mapped")
	}
	if err != nil {
		return nil, fmt.Errorf("insert mapping: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE commits SET is_mapped = TRUE, mapped_by = $1, mapping_date = $2, updated_at = NOW()
		WHERE id = $3`,
		m.MappedBy, m.MappingDate, m.CommitID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark commit mapped: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mapping tx: %w", err)
	}
	return s.GetMapping(ctx, m.CompanyID, m.ID)
}

// GetMapping returns a mapping by ID with its display projections,
// scoped to a company.
func (s *PostgresStore) GetMapping(ctx context.Context, companyID, id string) (*domain.Mapping, error) {
	query := `SELECT ` + mappingColumns + mappingFrom + ` WHERE m.id = $1 AND m.company_id = $2`

	m, err := scanMapping(s.db.QueryRowContext(ctx, query, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFoundf("mapping %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return m, nil
}

// GetMappingByCommit returns the mapping held by a commit, if any.
func (s *PostgresStore) GetMappingByCommit(ctx context.Context, commitID string) (*domain.Mapping, error) {
	query := `SELECT ` + mappingColumns + mappingFrom + ` WHERE m.commit_id = $1`

	m, err := scanMapping(s.db.QueryRowContext(ctx, query, commitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFoundf("no mapping for commit %s", commitID)
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping by commit: %w", err)
	}
	return m, nil
}

// DeleteMapping removes the link and clears the commit's mapped flag in
// one transaction.
func (s *PostgresStore) DeleteMapping(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unmap tx: %w", err)
	}
	defer tx.Rollback()

	var commitID string
	err = tx.QueryRowContext(ctx, `DELETE FROM mappings WHERE id = $1 RETURNING commit_id`, id).Scan(&commitID)
	if errors.Is(err, sql.ErrNoRows) {
		return port.NotFoundf("mapping %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE commits SET is_mapped = FALSE, mapped_by = '', mapping_date = NULL, updated_at = NOW()
		WHERE id = $1`, commitID)
	if err != nil {
		return fmt.Errorf("clear commit mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unmap tx: %w", err)
	}
	return nil
}

// ListMappings returns mappings for a company matching the filter, newest
// first.
func (s *PostgresStore) ListMappings(ctx context.Context, companyID string, f domain.MappingStatsFilter) ([]domain.Mapping, error) {
	query := `SELECT ` + mappingColumns + mappingFrom + ` WHERE m.company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if f.ProjectID != "" {
		query += fmt.Sprintf(" AND t.project_id = $%d", argIdx)
		args = append(args, f.ProjectID)
		argIdx++
	}
	if f.UserID != "" {
		query += fmt.Sprintf(" AND m.mapped_by = $%d", argIdx)
		args = append(args, f.UserID)
		argIdx++
	}
	if f.DateFrom != nil {
		query += fmt.Sprintf(" AND m.mapping_date >= $%d", argIdx)
		args = append(args, *f.DateFrom)
		argIdx++
	}
	if f.DateTo != nil {
		query += fmt.Sprintf(" AND m.mapping_date <= $%d", argIdx)
		args = append(args, *f.DateTo)
		argIdx++
	}

	query += " ORDER BY m.mapping_date DESC LIMIT 500"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []domain.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}
	return mappings, nil
}

// GetMappingStatistics aggregates mapping activity for a company.
func (s *PostgresStore) GetMappingStatistics(ctx context.Context, companyID string, f domain.MappingStatsFilter) (*domain.MappingStatistics, error) {
	where := ` WHERE m.company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if f.ProjectID != "" {
		where += fmt.Sprintf(" AND t.project_id = $%d", argIdx)
		args = append(args, f.ProjectID)
		argIdx++
	}
	if f.UserID != "" {
		where += fmt.Sprintf(" AND m.mapped_by = $%d", argIdx)
		args = append(args, f.UserID)
		argIdx++
	}
	if f.DateFrom != nil {
		where += fmt.Sprintf(" AND m.mapping_date >= $%d", argIdx)
		args = append(args, *f.DateFrom)
		argIdx++
	}
	if f.DateTo != nil {
		where += fmt.Sprintf(" AND m.mapping_date <= $%d", argIdx)
		args = append(args, *f.DateTo)
		argIdx++
	}

	stats := domain.MappingStatistics{Methods: map[domain.MappingMethod]int{}}

	totals := `SELECT COUNT(*),
	                  COUNT(DISTINCT m.commit_id),
	                  COUNT(DISTINCT m.timesheet_entry_id),
	                  COUNT(DISTINCT t.project_id),
	                  COALESCE(SUM(t.hours), 0)` + mappingFrom + where
	err := s.db.QueryRowContext(ctx, totals, args...).Scan(
		&stats.TotalMappings, &stats.UniqueCommits, &stats.UniqueTimesheets,
		&stats.UniqueProjects, &stats.TotalHoursMapped,
	)
	if err != nil {
		return nil, fmt.Errorf("mapping totals: %w", err)
	}

	methods := `SELECT m.mapping_method, COUNT(*)` + mappingFrom + where + ` GROUP BY m.mapping_method`
	rows, err := s.db.QueryContext(ctx, methods, args...)
	if err != nil {
		return nil, fmt.Errorf("mapping methods: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var method domain.MappingMethod
		var count int
		if err := rows.Scan(&method, &count); err != nil {
			return nil, fmt.Errorf("scan mapping method: %w", err)
		}
		stats.Methods[method] = count
	}

	mappers := `SELECT m.mapped_by, COALESCE(MAX(u.name), ''), COUNT(*), COALESCE(SUM(t.hours), 0)` +
		mappingFrom + ` LEFT JOIN users u ON u.id::text = m.mapped_by` + where +
		` GROUP BY m.mapped_by ORDER BY COUNT(*) DESC LIMIT 5`
	mrows, err := s.db.QueryContext(ctx, mappers, args...)
	if err != nil {
		return nil, fmt.Errorf("top mappers: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var ms domain.MapperStats
		if err := mrows.Scan(&ms.UserID, &ms.UserName, &ms.MappingCount, &ms.HoursMapped); err != nil {
			return nil, fmt.Errorf("scan mapper stats: %w", err)
		}
		stats.TopMappers = append(stats.TopMappers, ms)
	}

	projects := `SELECT t.project_id, COUNT(*), COALESCE(SUM(t.hours), 0), COUNT(DISTINCT m.commit_id)` +
		mappingFrom + where + ` GROUP BY t.project_id ORDER BY COUNT(*) DESC`
	prows, err := s.db.QueryContext(ctx, projects, args...)
	if err != nil {
		return nil, fmt.Errorf("project breakdown: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var ps domain.ProjectMappingStats
		if err := prows.Scan(&ps.ProjectID, &ps.MappingCount, &ps.HoursMapped, &ps.CommitCount); err != nil {
			return nil, fmt.Errorf("scan project stats: %w", err)
		}
		stats.ProjectBreakdown = append(stats.ProjectBreakdown, ps)
	}

	return &stats, nil
}
