package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

const repoURL = "https://github.com/acme/widget"

func newGitHubTestClient(t *testing.T, handler http.Handler) *GitHubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewGitHubClient(5*time.Second, 2)
	c.BaseURL = srv.URL
	return c
}

func TestGitHubTestConnection(t *testing.T) {
	c := newGitHubTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widget", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"name":"widget","full_name":"acme/widget","private":true,"default_branch":"develop","stargazers_count":7}`)
	}))

	info, err := c.TestConnection(context.Background(), repoURL, "secret")
	require.NoError(t, err)
	assert.Equal(t, "acme/widget", info.FullName)
	assert.True(t, info.Private)
	assert.Equal(t, "develop", info.DefaultBranch)
	assert.Equal(t, 7, info.Stars)
}

func TestGitHubErrorMapping(t *testing.T) {
	cases := []struct {
		status   int
		body     string
		wantCode string
	}{
		{http.StatusUnauthorized, `{"message":"Bad credentials"}`, port.CodePlatformAuth},
		{http.StatusForbidden, `{"message":"API rate limit exceeded"}`, port.CodePlatformRateLimit},
		{http.StatusForbidden, `{"message":"Resource protected"}`, port.CodePlatformAuth},
		{http.StatusNotFound, `{"message":"Not Found"}`, port.CodePlatformNotFound},
		{http.StatusBadGateway, ``, port.CodePlatformServer},
	}
	for _, tc := range cases {
		c := newGitHubTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, tc.body)
		}))

		_, err := c.TestConnection(context.Background(), repoURL, "secret")
		require.Error(t, err)
		var typed *port.Error
		require.ErrorAs(t, err, &typed, "status %d", tc.status)
		assert.Equal(t, tc.wantCode, typed.Code, "status %d body %s", tc.status, tc.body)
	}
}

func TestGitHubFetchCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[{"sha":"aaa"},{"sha":"bbb"},{"sha":"ccc"}]`)
	})
	mux.HandleFunc("/repos/acme/widget/commits/", func(w http.ResponseWriter, r *http.Request) {
		sha := strings.TrimPrefix(r.URL.Path, "/repos/acme/widget/commits/")
		if sha == "bbb" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{
			"sha": %q,
			"html_url": "https://github.com/acme/widget/commit/%s",
			"commit": {
				"message": "feat: change %s",
				"author": {"name": "Dev", "email": "dev@acme.test", "date": "2024-03-15T10:00:00Z"},
				"committer": {"name": "Dev", "email": "dev@acme.test", "date": "2024-03-15T10:00:00Z"}
			},
			"stats": {"additions": 5, "deletions": 2},
			"files": [{"filename": "a.go", "status": "modified", "additions": 5, "deletions": 2}]
		}`, sha, sha, sha)
	})
	c := newGitHubTestClient(t, mux)

	commits, err := c.FetchCommits(context.Background(), repoURL, "secret", port.CommitQuery{Branch: "main", Limit: 10})
	require.NoError(t, err)
	require.Len(t, commits, 3)

	// Page order preserved despite concurrent detail fetches.
	assert.Equal(t, "aaa", commits[0].SHA)
	assert.Equal(t, "bbb", commits[1].SHA)
	assert.Equal(t, "ccc", commits[2].SHA)

	assert.Equal(t, "feat: change aaa", commits[0].Message)
	assert.Equal(t, 5, commits[0].Additions)
	assert.Equal(t, 2, commits[0].Deletions)
	assert.Equal(t, 1, commits[0].FilesChanged)

	// Failed detail fetch degrades to a placeholder, not an error.
	assert.Equal(t, "Unable to fetch detailed information", commits[1].Message)
	assert.Equal(t, "Unknown", commits[1].AuthorName)
	assert.Equal(t, "https://github.com/acme/widget/commit/bbb", commits[1].WebURL)
}

func TestGitHubFetchCommitsHonorsLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[{"sha":"aaa"},{"sha":"bbb"}]`)
	})
	mux.HandleFunc("/repos/acme/widget/commits/", func(w http.ResponseWriter, r *http.Request) {
		sha := strings.TrimPrefix(r.URL.Path, "/repos/acme/widget/commits/")
		fmt.Fprintf(w, `{"sha": %q, "commit": {"message": "m", "author": {"date": "2024-03-15T10:00:00Z"}, "committer": {"date": "2024-03-15T10:00:00Z"}}}`, sha)
	})
	c := newGitHubTestClient(t, mux)

	commits, err := c.FetchCommits(context.Background(), repoURL, "", port.CommitQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestGitHubSearchCommits(t *testing.T) {
	c := newGitHubTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/commits", r.URL.Path)
		assert.Equal(t, "login repo:acme/widget", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"items":[{"sha":"aaa","commit":{"message":"feat: login","author":{"date":"2024-03-15T10:00:00Z"},"committer":{"date":"2024-03-15T10:00:00Z"}}}]}`)
	}))

	commits, err := c.SearchCommits(context.Background(), repoURL, "login", "secret", 20)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "feat: login", commits[0].Message)
}

func TestGitHubGetCommitDiff(t *testing.T) {
	c := newGitHubTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"sha": "aaa",
			"commit": {"message": "m", "author": {"date": "2024-03-15T10:00:00Z"}, "committer": {"date": "2024-03-15T10:00:00Z"}},
			"stats": {"additions": 3, "deletions": 1},
			"files": [
				{"filename": "a.go", "status": "modified", "additions": 2, "deletions": 1, "patch": "@@ -1 +1 @@"},
				{"filename": "b.go", "status": "added", "additions": 1, "deletions": 0}
			]
		}`)
	}))

	diff, err := c.GetCommitDiff(context.Background(), repoURL, "aaa", "secret")
	require.NoError(t, err)
	assert.Equal(t, 2, diff.TotalFiles)
	assert.Equal(t, 3, diff.TotalAdditions)
	assert.Equal(t, 1, diff.TotalDeletions)
	assert.Equal(t, "added", diff.Files[1].Status)
}
