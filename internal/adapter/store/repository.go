package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

const repositoryColumns = `id, company_id, name, platform, url, access_token, private, owner, repo_name,
	default_branch, project_id, connection_status, connection_error, last_sync_date, created_at, updated_at`

func scanRepository(row interface{ Scan(...any) error }) (*domain.Repository, error) {
	var r domain.Repository
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.Name, &r.Platform, &r.URL, &r.AccessToken,
		&r.Private, &r.Owner, &r.RepoName, &r.DefaultBranch, &r.ProjectID,
		&r.ConnectionStatus, &r.ConnectionError, &r.LastSyncDate,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateRepository inserts a new repository record. A duplicate URL within
// the same company returns a conflict error.
func (s *PostgresStore) CreateRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error) {
	query := `INSERT INTO repositories
	          (company_id, name, platform, url, access_token, private, owner, repo_name, default_branch, project_id, connection_status, connection_error)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING ` + repositoryColumns

	row := s.db.QueryRowContext(ctx, query,
		r.CompanyID, r.Name, r.Platform, r.URL, r.AccessToken, r.Private,
		r.Owner, r.RepoName, r.DefaultBranch, r.ProjectID, r.ConnectionStatus, r.ConnectionError,
	)
	repo, err := scanRepository(row)
	if isUniqueViolation(err) {
		return nil, port.Conflictf("repository %s is already registered for this company", r.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	return repo, nil
}

// GetRepository returns a repository by ID, scoped to a company.
func (s *PostgresStore) GetRepository(ctx context.Context, companyID, id string) (*domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE id = $1 AND company_id = $2`

	repo, err := scanRepository(s.db.QueryRowContext(ctx, query, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFoundf("repository %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return repo, nil
}

// ListRepositories returns all repositories for a company, newest first.
func (s *PostgresStore) ListRepositories(ctx context.Context, companyID string) ([]domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE company_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []domain.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}
	return repos, nil
}

// UpdateRepository persists the mutable settings of an existing repository.
func (s *PostgresStore) UpdateRepository(ctx context.Context, r *domain.Repository) error {
	query := `UPDATE repositories
	          SET name = $1,
	              access_token = $2,
	              default_branch = $3,
	              project_id = $4,
	              updated_at = NOW()
	          WHERE id = $5 AND company_id = $6`
	result, err := s.db.ExecContext(ctx, query, r.Name, r.AccessToken, r.DefaultBranch, r.ProjectID, r.ID, r.CompanyID)
	if err != nil {
		return fmt.Errorf("update repository: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return port.NotFoundf("repository %s not found", r.ID)
	}
	return nil
}

// UpdateConnection records the outcome of a connection test. An empty
// defaultBranch leaves the stored branch untouched.
func (s *PostgresStore) UpdateConnection(ctx context.Context, id, status, connError, defaultBranch string) error {
	query := `UPDATE repositories
	          SET connection_status = $1,
	              connection_error = $2,
	              default_branch = COALESCE(NULLIF($3, ''), default_branch),
	              updated_at = NOW()
	          WHERE id = $4`
	_, err := s.db.ExecContext(ctx, query, status, connError, defaultBranch, id)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	return nil
}

// SetLastSyncDate records when a sync pass completed.
func (s *PostgresStore) SetLastSyncDate(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE repositories SET last_sync_date = $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("set last sync date: %w", err)
	}
	return nil
}

// DeleteRepository removes a repository; its commits and their mappings
// cascade away with it.
func (s *PostgresStore) DeleteRepository(ctx context.Context, companyID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return port.NotFoundf("repository %s not found", id)
	}
	return nil
}

// GetRepositoryStats returns the commit rollup for one repository.
func (s *PostgresStore) GetRepositoryStats(ctx context.Context, id string) (*domain.RepositoryStats, error) {
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE is_mapped),
	                 COUNT(*) FILTER (WHERE NOT is_mapped)
	          FROM commits WHERE repository_id = $1`

	var stats domain.RepositoryStats
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&stats.TotalCommits, &stats.MappedCommits, &stats.UnmappedCommits,
	)
	if err != nil {
		return nil, fmt.Errorf("repository stats: %w", err)
	}
	return &stats, nil
}
