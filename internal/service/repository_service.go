package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-timesheet-mapper/internal/adapter/platform"
	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// PlatformResolver returns the client for a repository URL's platform.
type PlatformResolver interface {
	ClientFor(repoURL string) (port.PlatformClient, error)
}

// RepositoryService manages repository registration and remote queries.
type RepositoryService struct {
	repos     port.RepositoryStore
	commits   port.CommitStore
	platforms PlatformResolver
	authz     port.Authorizer
}

// NewRepositoryService creates a new repository service.
func NewRepositoryService(repos port.RepositoryStore, commits port.CommitStore, platforms PlatformResolver, authz port.Authorizer) *RepositoryService {
	return &RepositoryService{repos: repos, commits: commits, platforms: platforms, authz: authz}
}

// CreateRepositoryInput is the payload for registering a repository.
type CreateRepositoryInput struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	AccessToken string `json:"access_token"`
	ProjectID   string `json:"project_id"`
}

// CreateRepository validates the URL, probes the remote, and persists the
// repository. A failed probe still registers the record with its error so
// the connection can be fixed and retested.
func (s *RepositoryService) CreateRepository(ctx context.Context, actor *domain.UserContext, in CreateRepositoryInput) (*domain.Repository, error) {
	if err := s.authz.Authorize(actor, port.ActionManageRepository, nil); err != nil {
		return nil, err
	}

	info, err := platform.ValidateRepositoryURL(in.URL)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = info.Owner + "/" + info.RepoName
	}

	repo := &domain.Repository{
		CompanyID:        actor.CompanyID,
		Name:             name,
		Platform:         info.Platform,
		URL:              info.NormalizedURL,
		AccessToken:      in.AccessToken,
		Owner:            info.Owner,
		RepoName:         info.RepoName,
		DefaultBranch:    "main",
		ProjectID:        in.ProjectID,
		ConnectionStatus: domain.ConnectionNotTested,
	}

	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}
	remote, err := client.TestConnection(ctx, repo.URL, repo.AccessToken)
	if err != nil {
		slog.Warn("connection test failed on create", "url", repo.URL, "error", err)
		repo.ConnectionStatus = domain.ConnectionFailed
		repo.ConnectionError = err.Error()
	} else {
		repo.ConnectionStatus = domain.ConnectionConnected
		repo.Private = remote.Private
		if remote.DefaultBranch != "" {
			repo.DefaultBranch = remote.DefaultBranch
		}
	}
	if repo.Private && strings.TrimSpace(repo.AccessToken) == "" {
		return nil, port.Validf("private repository %s requires an access token", repo.Name)
	}

	created, err := s.repos.CreateRepository(ctx, repo)
	if err != nil {
		return nil, err
	}
	slog.Info("repository registered", "repo_id", created.ID, "platform", created.Platform, "status", created.ConnectionStatus)
	return created, nil
}

// UpdateRepositoryInput carries the mutable repository settings. Nil fields
// are left unchanged; a non-nil empty ProjectID unlinks the project.
type UpdateRepositoryInput struct {
	Name          *string `json:"name"`
	AccessToken   *string `json:"access_token"`
	DefaultBranch *string `json:"default_branch"`
	ProjectID     *string `json:"project_id"`
}

// UpdateRepository changes a repository's settings.
func (s *RepositoryService) UpdateRepository(ctx context.Context, actor *domain.UserContext, id string, in UpdateRepositoryInput) (*domain.Repository, error) {
	if err := s.authz.Authorize(actor, port.ActionManageRepository, nil); err != nil {
		return nil, err
	}
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		repo.Name = strings.TrimSpace(*in.Name)
	}
	if in.AccessToken != nil {
		repo.AccessToken = *in.AccessToken
	}
	if in.DefaultBranch != nil && *in.DefaultBranch != "" {
		repo.DefaultBranch = *in.DefaultBranch
	}
	if in.ProjectID != nil {
		repo.ProjectID = *in.ProjectID
	}
	if repo.Private && strings.TrimSpace(repo.AccessToken) == "" {
		return nil, port.Validf("private repository %s requires an access token", repo.Name)
	}

	if err := s.repos.UpdateRepository(ctx, repo); err != nil {
		return nil, err
	}
	slog.Info("repository updated", "repo_id", repo.ID, "by", actor.UserID)
	return repo, nil
}

// GetRepository returns one repository in the actor's company.
func (s *RepositoryService) GetRepository(ctx context.Context, actor *domain.UserContext, id string) (*domain.Repository, error) {
	return s.repos.GetRepository(ctx, actor.CompanyID, id)
}

// ListRepositories returns the actor's company repositories.
func (s *RepositoryService) ListRepositories(ctx context.Context, actor *domain.UserContext) ([]domain.Repository, error) {
	return s.repos.ListRepositories(ctx, actor.CompanyID)
}

// DeleteRepository removes a repository and, by cascade, its commits and
// their mappings.
func (s *RepositoryService) DeleteRepository(ctx context.Context, actor *domain.UserContext, id string) error {
	if err := s.authz.Authorize(actor, port.ActionManageRepository, nil); err != nil {
		return err
	}
	if err := s.repos.DeleteRepository(ctx, actor.CompanyID, id); err != nil {
		return err
	}
	slog.Info("repository deleted", "repo_id", id, "by", actor.UserID)
	return nil
}

// TestConnection probes the remote and records the outcome, adopting the
// remote default branch when it differs.
func (s *RepositoryService) TestConnection(ctx context.Context, actor *domain.UserContext, id string) (*port.RepositoryInfo, error) {
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}

	remote, err := client.TestConnection(ctx, repo.URL, repo.AccessToken)
	if err != nil {
		if uerr := s.repos.UpdateConnection(ctx, repo.ID, domain.ConnectionFailed, err.Error(), ""); uerr != nil {
			slog.Error("record failed connection", "repo_id", repo.ID, "error", uerr)
		}
		return nil, err
	}
	if err := s.repos.UpdateConnection(ctx, repo.ID, domain.ConnectionConnected, "", remote.DefaultBranch); err != nil {
		return nil, fmt.Errorf("record connection: %w", err)
	}
	return remote, nil
}

// ListBranches returns the remote branches of a repository.
func (s *RepositoryService) ListBranches(ctx context.Context, actor *domain.UserContext, id string) ([]port.Branch, error) {
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}
	return client.ListBranches(ctx, repo.URL, repo.AccessToken)
}

// SearchRemoteCommits searches the platform for commits matching query.
func (s *RepositoryService) SearchRemoteCommits(ctx context.Context, actor *domain.UserContext, id, query string, limit int) ([]port.RemoteCommit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, port.Validf("search query must not be empty")
	}
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}
	return client.SearchCommits(ctx, repo.URL, query, repo.AccessToken, limit)
}

// GetRepositoryInfo returns rich remote metadata for a repository.
func (s *RepositoryService) GetRepositoryInfo(ctx context.Context, actor *domain.UserContext, id string) (*port.RepositoryInfo, error) {
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}
	return client.GetRepositoryInfo(ctx, repo.URL, repo.AccessToken)
}

// GetRepositoryStats returns the stored commit rollup for a repository.
func (s *RepositoryService) GetRepositoryStats(ctx context.Context, actor *domain.UserContext, id string) (*domain.RepositoryStats, error) {
	if _, err := s.repos.GetRepository(ctx, actor.CompanyID, id); err != nil {
		return nil, err
	}
	return s.repos.GetRepositoryStats(ctx, id)
}

// SearchCommits searches stored commits for a repository.
func (s *RepositoryService) SearchCommits(ctx context.Context, actor *domain.UserContext, id string, f domain.CommitFilter) ([]domain.Commit, error) {
	if _, err := s.repos.GetRepository(ctx, actor.CompanyID, id); err != nil {
		return nil, err
	}
	return s.commits.SearchCommits(ctx, actor.CompanyID, id, f)
}

// GetCommitStatistics aggregates stored commit counts for a repository.
func (s *RepositoryService) GetCommitStatistics(ctx context.Context, actor *domain.UserContext, id string, f domain.CommitFilter) (*domain.CommitStatistics, error) {
	if _, err := s.repos.GetRepository(ctx, actor.CompanyID, id); err != nil {
		return nil, err
	}
	return s.commits.GetCommitStatistics(ctx, actor.CompanyID, id, f.DateFrom, f.DateTo)
}

// GetCommitDiff returns the remote diff for a stored commit.
func (s *RepositoryService) GetCommitDiff(ctx context.Context, actor *domain.UserContext, commitID string) (*port.CommitDiff, error) {
	commit, err := s.commits.GetCommit(ctx, actor.CompanyID, commitID)
	if err != nil {
		return nil, err
	}
	repo, err := s.repos.GetRepository(ctx, actor.CompanyID, commit.RepositoryID)
	if err != nil {
		return nil, err
	}
	client, err := s.platforms.ClientFor(repo.URL)
	if err != nil {
		return nil, err
	}
	return client.GetCommitDiff(ctx, repo.URL, commit.Hash, repo.AccessToken)
}

// GetCommit returns a stored commit in the actor's company.
func (s *RepositoryService) GetCommit(ctx context.Context, actor *domain.UserContext, commitID string) (*domain.Commit, error) {
	return s.commits.GetCommit(ctx, actor.CompanyID, commitID)
}
