package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

var (
	adminActor  = &domain.UserContext{UserID: "admin-1", Role: domain.RoleAdmin, CompanyID: "co-1"}
	mapperActor = &domain.UserContext{UserID: "mapper-1", Role: domain.RoleMapper, CompanyID: "co-1"}
	viewerActor = &domain.UserContext{UserID: "viewer-1", Role: domain.RoleViewer, CompanyID: "co-1"}
)

func syncFixture(remotes []port.RemoteCommit) (*SyncService, *fakeRepoStore, *fakeCommitStore, *fakePlatformClient) {
	repos := newFakeRepoStore(&domain.Repository{
		ID:            "repo-1",
		CompanyID:     "co-1",
		Platform:      domain.PlatformGitHub,
		URL:           "https://github.com/acme/widget",
		DefaultBranch: "main",
	})
	commits := newFakeCommitStore()
	client := &fakePlatformClient{commits: remotes}
	svc := NewSyncService(repos, commits, &fakeResolver{client: client}, NewPolicy(), 200)
	return svc, repos, commits, client
}

func remoteCommit(sha, message string, date time.Time) port.RemoteCommit {
	return port.RemoteCommit{
		SHA:         sha,
		Message:     message,
		AuthorName:  "Dev",
		AuthorEmail: "dev@acme.test",
		CommitDate:  date,
		AuthorDate:  date,
	}
}

func TestSyncRepositoryCommits(t *testing.T) {
	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, repos, commits, client := syncFixture([]port.RemoteCommit{
		remoteCommit("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "fix: login crash", day),
		remoteCommit("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "feat: add search", day.Add(time.Hour)),
	})

	result, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "repo-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.ErrorCount)

	// Empty branch falls back to the repository default.
	assert.Equal(t, "main", result.Branch)
	assert.Equal(t, "main", client.lastQuery.Branch)
	assert.Equal(t, 200, client.lastQuery.Limit)
	assert.False(t, repos.lastSync["repo-1"].IsZero())

	stored, err := commits.GetCommit(context.Background(), "co-1", "commit-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CommitTypeBugfix, stored.CommitType)
	assert.Equal(t, "aaaaaaaa", stored.ShortHash)
}

func TestSyncIsIdempotent(t *testing.T) {
	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _, commits, _ := syncFixture([]port.RemoteCommit{
		remoteCommit("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "fix: login crash", day),
	})

	_, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "repo-1", "main")
	require.NoError(t, err)

	// A mapping created between passes survives the re-sync.
	commits.commits["commit-1"].IsMapped = true
	commits.commits["commit-1"].MappedBy = "mapper-1"

	result, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "repo-1", "main")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.True(t, commits.commits["commit-1"].IsMapped)
	assert.Equal(t, "mapper-1", commits.commits["commit-1"].MappedBy)
}

func TestSyncFetchFailureAborts(t *testing.T) {
	svc, repos, _, client := syncFixture(nil)
	client.fetchErr = port.Platformf(port.CodePlatformAuth, "GitHub authentication failed")

	_, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "repo-1", "main")
	require.Error(t, err)

	_, recorded := repos.lastSync["repo-1"]
	assert.False(t, recorded)
}

func TestSyncCountsCommitErrors(t *testing.T) {
	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, repos, commits, _ := syncFixture([]port.RemoteCommit{
		remoteCommit("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "fix: login crash", day),
		remoteCommit("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "feat: add search", day),
	})
	commits.upsertErr = port.Integrityf("boom")

	result, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "repo-1", "main")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, 0, result.Created)

	// Per-commit failures do not abort the pass.
	assert.False(t, repos.lastSync["repo-1"].IsZero())
}

func TestSyncRejectsInvalidRemoteCommits(t *testing.T) {
	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _, commits, _ := syncFixture([]port.RemoteCommit{
		remoteCommit("not-a-sha", "fix: bad hash", day),
		remoteCommit("cccccccccccccccccccccccccccccccccccccccc", "feat: from the future", time.Now().UTC().Add(48*time.Hour)),
		remoteCommit("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "fix: login crash", day),
	})

	result, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "repo-1", "main")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, 1, result.Created)
	assert.Len(t, commits.commits, 1)
}

func TestSyncAuthorization(t *testing.T) {
	svc, _, _, _ := syncFixture(nil)

	_, err := svc.SyncRepositoryCommits(context.Background(), viewerActor, "repo-1", "main")
	assert.ErrorIs(t, err, port.ErrPermission)

	_, err = svc.SyncRepositoryCommits(context.Background(), nil, "repo-1", "main")
	assert.ErrorIs(t, err, port.ErrPermission)
}

func TestSyncUnknownRepository(t *testing.T) {
	svc, _, _, _ := syncFixture(nil)

	_, err := svc.SyncRepositoryCommits(context.Background(), mapperActor, "missing", "main")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
