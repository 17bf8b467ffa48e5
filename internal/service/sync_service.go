package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// SyncService pulls remote commits into the local commit store.
type SyncService struct {
	repos       port.RepositoryStore
	commits     port.CommitStore
	platforms   PlatformResolver
	authz       port.Authorizer
	commitLimit int
}

// NewSyncService creates a sync service with a per-pass fetch ceiling.
func NewSyncService(repos port.RepositoryStore, commits port.CommitStore, platforms PlatformResolver, authz port.Authorizer, commitLimit int) *SyncService {
	if commitLimit <= 0 {
		commitLimit = 200
	}
	return &SyncService{repos: repos, commits: commits, platforms: platforms, authz: authz, commitLimit: commitLimit}
}

// SyncResult reports one sync pass.
type SyncResult struct {
	RepositoryID   string    `json:"repository_id"`
	Branch         string    `json:"branch"`
	TotalProcessed int       `json:"total_processed"`
	Created        int       `json:"created"`
	Updated        int       `json:"updated"`
	ErrorCount     int       `json:"error_count"`
	SyncedAt       time.Time `json:"synced_at"`
}

// SyncRepositoryCommits fetches recent commits on a branch and upserts them.
// Per-commit failures are counted and skipped; only a repository-level fetch
// failure aborts the pass and leaves lastSyncDate untouched.
func (s *SyncService) SyncRepositoryCommits(ctx context.Context, actor *domain.UserContext, repositoryID, branch string) (*SyncResult, error) {
	if err := s.authz.Authorize(actor, port.ActionSyncRepository, nil); err != nil {
		return nil, err
	}
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, repositoryID)
	if err != nil {
		return nil, err
	}
	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}

	if branch == "" {
		branch = repo.DefaultBranch
	}

	remotes, err := client.FetchCommits(ctx, repo.URL, repo.AccessToken, port.CommitQuery{
		Branch: branch,
		Limit:  s.commitLimit,
	})
	if err != nil {
		return nil, err
	}

	result := &SyncResult{RepositoryID: repo.ID, Branch: branch}
	now := time.Now().UTC()
	for _, rc := range remotes {
		if !domain.ValidHash(rc.SHA) {
			slog.Warn("skipping commit with malformed hash", "repo_id", repo.ID, "sha", rc.SHA)
			result.ErrorCount++
			continue
		}
		if rc.CommitDate.After(now.Add(5 * time.Minute)) {
			slog.Warn("skipping commit dated in the future", "repo_id", repo.ID, "sha", rc.SHA, "commit_date", rc.CommitDate)
			result.ErrorCount++
			continue
		}
		commit := &domain.Commit{
			RepositoryID:   repo.ID,
			CompanyID:      repo.CompanyID,
			Hash:           rc.SHA,
			AuthorName:     rc.AuthorName,
			AuthorEmail:    rc.AuthorEmail,
			CommitterName:  rc.CommitterName,
			CommitterEmail: rc.CommitterEmail,
			Message:        rc.Message,
			CommitDate:     rc.CommitDate,
			AuthorDate:     rc.AuthorDate,
			Branch:         branch,
			FilesChanged:   rc.FilesChanged,
			LinesAdded:     rc.Additions,
			LinesDeleted:   rc.Deletions,
		}
		commit.Derive(repo.Platform, repo.URL)

		created, err := s.commits.UpsertCommit(ctx, commit)
		if err != nil {
			slog.Warn("commit upsert failed", "repo_id", repo.ID, "sha", rc.SHA, "error", err)
			result.ErrorCount++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	result.TotalProcessed = len(remotes)
	result.SyncedAt = time.Now().UTC()

	if err := s.repos.SetLastSyncDate(ctx, repo.ID, result.SyncedAt); err != nil {
		slog.Error("record last sync date", "repo_id", repo.ID, "error", err)
	}
	slog.Info("sync complete",
		"repo_id", repo.ID, "branch", branch,
		"processed", result.TotalProcessed, "created", result.Created,
		"updated", result.Updated, "errors", result.ErrorCount)
	return result, nil
}
