package port

import (
	"context"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
)

// RepositoryStore persists configured repositories. Every query is scoped
// by an explicit company (tenant) ID.
type RepositoryStore interface {
	CreateRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error)
	GetRepository(ctx context.Context, companyID, id string) (*domain.Repository, error)
	ListRepositories(ctx context.Context, companyID string) ([]domain.Repository, error)
	// UpdateRepository persists the mutable settings (name, token, default
	// branch, linked project) of an existing row.
	UpdateRepository(ctx context.Context, r *domain.Repository) error
	UpdateConnection(ctx context.Context, id, status, connError, defaultBranch string) error
	SetLastSyncDate(ctx context.Context, id string, at time.Time) error
	DeleteRepository(ctx context.Context, companyID, id string) error
	GetRepositoryStats(ctx context.Context, id string) (*domain.RepositoryStats, error)
}

// CommitStore persists canonical commit records.
type CommitStore interface {
	// UpsertCommit inserts or updates by (hash, repository), recomputing
	// derived fields. Reports whether a new row was created.
	UpsertCommit(ctx context.Context, c *domain.Commit) (created bool, err error)
	GetCommit(ctx context.Context, companyID, id string) (*domain.Commit, error)
	SearchCommits(ctx context.Context, companyID, repositoryID string, f domain.CommitFilter) ([]domain.Commit, error)
	ListUnmappedCommits(ctx context.Context, companyID, repositoryID string) ([]domain.Commit, error)
	GetCommitStatistics(ctx context.Context, companyID, repositoryID string, from, to *time.Time) (*domain.CommitStatistics, error)
}

// MappingStore persists commit↔timesheet links. CreateMapping and
// DeleteMapping are atomic with the commit mapped-flag update.
type MappingStore interface {
	// CreateMapping inserts the link and marks the commit mapped in one
	// transaction. Returns a conflict error naming the already-linked
	// timesheet entry if the commit holds a mapping.
	CreateMapping(ctx context.Context, m *domain.Mapping) (*domain.Mapping, error)
	GetMapping(ctx context.Context, companyID, id string) (*domain.Mapping, error)
	GetMappingByCommit(ctx context.Context, commitID string) (*domain.Mapping, error)
	// DeleteMapping removes the link and, when no mapping remains for the
	// commit, clears its mapped flag, mapped-by and mapping date.
	DeleteMapping(ctx context.Context, id string) error
	ListMappings(ctx context.Context, companyID string, f domain.MappingStatsFilter) ([]domain.Mapping, error)
	GetMappingStatistics(ctx context.Context, companyID string, f domain.MappingStatsFilter) (*domain.MappingStatistics, error)
}

// TimesheetStore reads externally owned timesheet entries.
type TimesheetStore interface {
	GetTimesheetEntry(ctx context.Context, id string) (*domain.TimesheetEntry, error)
	// FindCandidateEntries returns active entries with a project set, in
	// the given company, optionally restricted to one project, dated
	// within [from, to].
	FindCandidateEntries(ctx context.Context, companyID, projectID string, from, to time.Time) ([]domain.TimesheetEntry, error)
	ListTimesheetEntries(ctx context.Context, companyID string, from, to *time.Time) ([]domain.TimesheetEntry, error)
}

// UserStore reads user records.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}
