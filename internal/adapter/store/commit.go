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

const commitColumns = `id, repository_id, company_id, commit_hash, short_hash, author_name, author_email,
	committer_name, committer_email, commit_message, short_message, commit_date, author_date,
	branch_name, files_changed, lines_added, lines_deleted, total_changes, commit_type,
	is_mapped, mapped_by, mapping_date, commit_url, created_at, updated_at`

func scanCommit(row interface{ Scan(...any) error }) (*domain.Commit, error) {
	var c domain.Commit
	var mappedBy sql.NullString
	err := row.Scan(
		&c.ID, &c.RepositoryID, &c.CompanyID, &c.Hash, &c.ShortHash,
		&c.AuthorName, &c.AuthorEmail, &c.CommitterName, &c.CommitterEmail,
		&c.Message, &c.ShortMessage, &c.CommitDate, &c.AuthorDate,
		&c.Branch, &c.FilesChanged, &c.LinesAdded, &c.LinesDeleted,
		&c.TotalChanges, &c.CommitType, &c.IsMapped, &mappedBy,
		&c.MappingDate, &c.CommitURL, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.MappedBy = mappedBy.String
	return &c, nil
}

// UpsertCommit inserts or updates a commit by (hash, repository). Metadata
// is refreshed on conflict; the mapping flags are never touched so a
// re-sync cannot unmap a commit. Reports whether a new row was created.
func (s *PostgresStore) UpsertCommit(ctx context.Context, c *domain.Commit) (bool, error) {
	// xmax = 0 only on freshly inserted rows, distinguishing insert from update.
	query := `
		INSERT INTO commits
			(repository_id, company_id, commit_hash, short_hash, author_name, author_email,
			 committer_name, committer_email, commit_message, short_message, commit_date, author_date,
			 branch_name, files_changed, lines_added, lines_deleted, total_changes, commit_type, commit_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (commit_hash, repository_id) DO UPDATE SET
			author_name = EXCLUDED.author_name,
			author_email = EXCLUDED.author_email,
			committer_name = EXCLUDED.committer_name,
			committer_email = EXCLUDED.committer_email,
			commit_message = EXCLUDED.commit_message,
			short_message = EXCLUDED.short_message,
			commit_date = EXCLUDED.commit_date,
			author_date = EXCLUDED.author_date,
			branch_name = EXCLUDED.branch_name,
			files_changed = EXCLUDED.files_changed,
			lines_added = EXCLUDED.lines_added,
			lines_deleted = EXCLUDED.lines_deleted,
			total_changes = EXCLUDED.total_changes,
			commit_type = EXCLUDED.commit_type,
			commit_url = EXCLUDED.commit_url,
			updated_at = NOW()
		RETURNING id, (xmax = 0)`

	var created bool
	err := s.db.QueryRowContext(ctx, query,
		c.RepositoryID, c.CompanyID, c.Hash, c.ShortHash, c.AuthorName, c.AuthorEmail,
		c.CommitterName, c.CommitterEmail, c.Message, c.ShortMessage, c.CommitDate, c.AuthorDate,
		c.Branch, c.FilesChanged, c.LinesAdded, c.LinesDeleted, c.TotalChanges, c.CommitType, c.CommitURL,
	).Scan(&c.ID, &created)
	if err != nil {
		return false, fmt.Errorf("upsert commit: %w", err)
	}
	return created, nil
}

// GetCommit returns a commit by ID, scoped to a company.
func (s *PostgresStore) GetCommit(ctx context.Context, companyID, id string) (*domain.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits WHERE id = $1 AND company_id = $2`

	c, err := scanCommit(s.db.QueryRowContext(ctx, query, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFoundf("commit %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get commit: %w", err)
	}
	return c, nil
}

// SearchCommits returns commits matching every set filter, newest first.
func (s *PostgresStore) SearchCommits(ctx context.Context, companyID, repositoryID string, f domain.CommitFilter) ([]domain.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits WHERE company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if repositoryID != "" {
		query += fmt.Sprintf(" AND repository_id = $%d", argIdx)
		args = append(args, repositoryID)
		argIdx++
	}
	if f.SearchTerm != "" {
		query += fmt.Sprintf(" AND (commit_message ILIKE $%d OR commit_hash ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+f.SearchTerm+"%")
		argIdx++
	}
	if f.Branch != "" {
		query += fmt.Sprintf(" AND branch_name = $%d", argIdx)
		args = append(args, f.Branch)
		argIdx++
	}
	if f.Author != "" {
		query += fmt.Sprintf(" AND (author_name ILIKE $%d OR author_email ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+f.Author+"%")
		argIdx++
	}
	if f.DateFrom != nil {
		query += fmt.Sprintf(" AND commit_date >= $%d", argIdx)
		args = append(args, *f.DateFrom)
		argIdx++
	}
	if f.DateTo != nil {
		query += fmt.Sprintf(" AND commit_date <= $%d", argIdx)
		args = append(args, *f.DateTo)
		argIdx++
	}
	if f.CommitType != "" {
		query += fmt.Sprintf(" AND commit_type = $%d", argIdx)
		args = append(args, f.CommitType)
		argIdx++
	}
	switch f.MappedStatus {
	case "mapped":
		query += " AND is_mapped"
	case "unmapped":
		query += " AND NOT is_mapped"
	}

	query += " ORDER BY commit_date DESC LIMIT 500"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search commits: %w", err)
	}
	defer rows.Close()

	var commits []domain.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		commits = append(commits, *c)
	}
	return commits, nil
}

// ListUnmappedCommits returns every unmapped commit in a repository,
// newest first.
func (s *PostgresStore) ListUnmappedCommits(ctx context.Context, companyID, repositoryID string) ([]domain.Commit, error) {
	return s.SearchCommits(ctx, companyID, repositoryID, domain.CommitFilter{MappedStatus: "unmapped"})
}

// GetCommitStatistics aggregates commit counts for a repository within an
// optional date range.
func (s *PostgresStore) GetCommitStatistics(ctx context.Context, companyID, repositoryID string, from, to *time.Time) (*domain.CommitStatistics, error) {
	where := " WHERE company_id = $1"
	args := []interface{}{companyID}
	argIdx := 2

	if repositoryID != "" {
		where += fmt.Sprintf(" AND repository_id = $%d", argIdx)
		args = append(args, repositoryID)
		argIdx++
	}
	if from != nil {
		where += fmt.Sprintf(" AND commit_date >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		where += fmt.Sprintf(" AND commit_date <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE is_mapped),
	                 COUNT(*) FILTER (WHERE NOT is_mapped),
	                 COUNT(DISTINCT author_email),
	                 COALESCE(SUM(lines_added), 0),
	                 COALESCE(SUM(lines_deleted), 0),
	                 COALESCE(SUM(files_changed), 0)
	          FROM commits` + where

	stats := domain.CommitStatistics{CommitTypes: map[domain.CommitType]int{}}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalCommits, &stats.MappedCommits, &stats.UnmappedCommits,
		&stats.UniqueAuthors, &stats.TotalLinesAdded, &stats.TotalLinesDeleted,
		&stats.TotalFilesChanged,
	)
	if err != nil {
		return nil, fmt.Errorf("commit statistics: %w", err)
	}

	typeQuery := `SELECT commit_type, COUNT(*) FROM commits` + where + ` GROUP BY commit_type`
	rows, err := s.db.QueryContext(ctx, typeQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("commit type breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ domain.CommitType
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan commit type: %w", err)
		}
		stats.CommitTypes[typ] = count
	}
	return &stats, nil
}
