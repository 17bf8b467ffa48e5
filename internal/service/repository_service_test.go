package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

func repositoryFixture() (*RepositoryService, *fakeRepoStore, *fakePlatformClient) {
	repos := newFakeRepoStore()
	commits := newFakeCommitStore()
	client := &fakePlatformClient{}
	svc := NewRepositoryService(repos, commits, &fakeResolver{client: client}, NewPolicy())
	return svc, repos, client
}

func TestCreateRepository(t *testing.T) {
	svc, _, _ := repositoryFixture()

	repo, err := svc.CreateRepository(context.Background(), adminActor, CreateRepositoryInput{
		URL:         "https://github.com/acme/widget.git",
		AccessToken: "secret",
		ProjectID:   "PROJ-7",
	})
	require.NoError(t, err)

	assert.Equal(t, "acme/widget", repo.Name)
	assert.Equal(t, domain.PlatformGitHub, repo.Platform)
	assert.Equal(t, "https://github.com/acme/widget", repo.URL)
	assert.Equal(t, "co-1", repo.CompanyID)
	assert.Equal(t, domain.ConnectionConnected, repo.ConnectionStatus)
	assert.Equal(t, "develop", repo.DefaultBranch)
	assert.True(t, repo.Private)
}

func TestCreateRepositoryProbeFailureStillRegisters(t *testing.T) {
	svc, _, client := repositoryFixture()
	client.connErr = port.Platformf(port.CodePlatformAuth, "GitHub authentication failed")

	repo, err := svc.CreateRepository(context.Background(), adminActor, CreateRepositoryInput{
		URL: "https://github.com/acme/widget",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionFailed, repo.ConnectionStatus)
	assert.Contains(t, repo.ConnectionError, "authentication failed")
	assert.Equal(t, "main", repo.DefaultBranch)
}

func TestCreateRepositoryValidation(t *testing.T) {
	svc, _, _ := repositoryFixture()

	_, err := svc.CreateRepository(context.Background(), adminActor, CreateRepositoryInput{
		URL: "ftp://github.com/acme/widget",
	})
	assert.ErrorIs(t, err, port.ErrValidation)

	_, err = svc.CreateRepository(context.Background(), mapperActor, CreateRepositoryInput{
		URL: "https://github.com/acme/widget",
	})
	assert.ErrorIs(t, err, port.ErrPermission)
}

func TestCreateRepositoryPrivateRequiresToken(t *testing.T) {
	svc, repos, _ := repositoryFixture()

	// The probe reports the repository as private; without a token the
	// record is rejected, not registered.
	_, err := svc.CreateRepository(context.Background(), adminActor, CreateRepositoryInput{
		URL: "https://github.com/acme/widget",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrValidation)
	assert.Contains(t, err.Error(), "access token")
	assert.Empty(t, repos.repos)
}

func TestUpdateRepositoryPrivateKeepsToken(t *testing.T) {
	svc, repos, _ := repositoryFixture()
	repos.repos["repo-1"] = &domain.Repository{
		ID: "repo-1", CompanyID: "co-1", Name: "acme/widget",
		URL: "https://github.com/acme/widget", AccessToken: "secret", Private: true,
	}

	empty := ""
	_, err := svc.UpdateRepository(context.Background(), adminActor, "repo-1", UpdateRepositoryInput{
		AccessToken: &empty,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrValidation)
	assert.Equal(t, "secret", repos.repos["repo-1"].AccessToken)

	rotated := "new-secret"
	repo, err := svc.UpdateRepository(context.Background(), adminActor, "repo-1", UpdateRepositoryInput{
		AccessToken: &rotated,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-secret", repo.AccessToken)
}

func TestTestConnectionRecordsOutcome(t *testing.T) {
	svc, repos, client := repositoryFixture()
	repos.repos["repo-1"] = &domain.Repository{
		ID: "repo-1", CompanyID: "co-1",
		URL: "https://github.com/acme/widget", DefaultBranch: "main",
		ConnectionStatus: domain.ConnectionNotTested,
	}

	info, err := svc.TestConnection(context.Background(), mapperActor, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, "acme/widget", info.FullName)
	assert.Equal(t, domain.ConnectionConnected, repos.repos["repo-1"].ConnectionStatus)
	// The remote default branch is adopted.
	assert.Equal(t, "develop", repos.repos["repo-1"].DefaultBranch)

	client.connErr = port.Platformf(port.CodePlatformServer, "GitHub server error (502)")
	_, err = svc.TestConnection(context.Background(), mapperActor, "repo-1")
	require.Error(t, err)
	assert.Equal(t, domain.ConnectionFailed, repos.repos["repo-1"].ConnectionStatus)
	assert.Contains(t, repos.repos["repo-1"].ConnectionError, "server error")
}

func TestUpdateRepository(t *testing.T) {
	svc, repos, _ := repositoryFixture()
	repos.repos["repo-1"] = &domain.Repository{
		ID: "repo-1", CompanyID: "co-1", Name: "acme/widget",
		URL: "https://github.com/acme/widget", AccessToken: "old-token",
		DefaultBranch: "main", ProjectID: "PROJ-7",
	}

	name := "widget backend"
	project := ""
	repo, err := svc.UpdateRepository(context.Background(), adminActor, "repo-1", UpdateRepositoryInput{
		Name:      &name,
		ProjectID: &project,
	})
	require.NoError(t, err)

	assert.Equal(t, "widget backend", repo.Name)
	// Nil fields stay put; an explicit empty project unlinks it.
	assert.Equal(t, "old-token", repo.AccessToken)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Empty(t, repo.ProjectID)

	_, err = svc.UpdateRepository(context.Background(), mapperActor, "repo-1", UpdateRepositoryInput{})
	assert.ErrorIs(t, err, port.ErrPermission)
}

func TestDeleteRepositoryRequiresAdmin(t *testing.T) {
	svc, repos, _ := repositoryFixture()
	repos.repos["repo-1"] = &domain.Repository{ID: "repo-1", CompanyID: "co-1", URL: "https://github.com/acme/widget"}

	err := svc.DeleteRepository(context.Background(), mapperActor, "repo-1")
	assert.ErrorIs(t, err, port.ErrPermission)

	require.NoError(t, svc.DeleteRepository(context.Background(), adminActor, "repo-1"))
	_, err = svc.GetRepository(context.Background(), adminActor, "repo-1")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestSearchRemoteCommitsRequiresQuery(t *testing.T) {
	svc, repos, _ := repositoryFixture()
	repos.repos["repo-1"] = &domain.Repository{ID: "repo-1", CompanyID: "co-1", URL: "https://github.com/acme/widget"}

	_, err := svc.SearchRemoteCommits(context.Background(), mapperActor, "repo-1", "   ", 10)
	assert.ErrorIs(t, err, port.ErrValidation)
}

func TestGetRepositoryTenantScope(t *testing.T) {
	svc, repos, _ := repositoryFixture()
	repos.repos["repo-1"] = &domain.Repository{ID: "repo-1", CompanyID: "co-2", URL: "https://github.com/acme/widget"}

	_, err := svc.GetRepository(context.Background(), mapperActor, "repo-1")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
