package port

import (
	"context"
	"time"
)

// Branch is one remote branch head.
type Branch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commit_sha"`
	Protected bool   `json:"protected"`
}

// RemoteCommit is the canonical commit representation normalized from a
// platform API response.
type RemoteCommit struct {
	SHA            string    `json:"sha"`
	Message        string    `json:"message"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	AuthorDate     time.Time `json:"author_date"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	CommitDate     time.Time `json:"commit_date"`
	Additions      int       `json:"additions"`
	Deletions      int       `json:"deletions"`
	FilesChanged   int       `json:"files_changed"`
	WebURL         string    `json:"web_url"`
}

// DiffFile is one file's change within a commit diff.
type DiffFile struct {
	Path      string `json:"path"`
	OldPath   string `json:"old_path,omitempty"`
	Status    string `json:"status"` // added, removed, modified, renamed
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// CommitDiff is the full diff summary for one commit.
type CommitDiff struct {
	TotalFiles     int        `json:"total_files"`
	TotalAdditions int        `json:"total_additions"`
	TotalDeletions int        `json:"total_deletions"`
	Files          []DiffFile `json:"files"`
}

// Contributor is one of a repository's top contributors.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

// RepositoryInfo is structured metadata about a remote repository.
type RepositoryInfo struct {
	Name            string         `json:"name"`
	FullName        string         `json:"full_name"`
	Description     string         `json:"description"`
	Private         bool           `json:"private"`
	DefaultBranch   string         `json:"default_branch"`
	WebURL          string         `json:"web_url"`
	Stars           int            `json:"stars"`
	Forks           int            `json:"forks"`
	OpenIssues      int            `json:"open_issues"`
	Size            int            `json:"size"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	// Languages maps language name to the platform's size measure:
	// bytes of code on GitHub, rounded percentage on GitLab.
	Languages       map[string]int `json:"languages"`
	TopContributors []Contributor  `json:"top_contributors"`
}

// CommitQuery narrows a FetchCommits call.
type CommitQuery struct {
	Branch string
	Since  *time.Time
	Until  *time.Time
	Author string
	Limit  int
}

// PlatformClient talks to one remote Git hosting platform's REST API.
// Every call takes the repository URL and an access token (empty for
// public repositories) and honors the context deadline.
type PlatformClient interface {
	// TestConnection performs a single repository-info GET and reports
	// whether the repository is reachable with the given credentials.
	TestConnection(ctx context.Context, repoURL, token string) (*RepositoryInfo, error)

	// ListBranches returns every branch, paginating until a short page.
	ListBranches(ctx context.Context, repoURL, token string) ([]Branch, error)

	// FetchCommits lists commits on a branch and enriches each with a
	// per-commit detail fetch. A failed detail fetch yields a placeholder
	// record rather than aborting the batch.
	FetchCommits(ctx context.Context, repoURL, token string, q CommitQuery) ([]RemoteCommit, error)

	// GetCommitDiff returns file-level change details for one commit.
	GetCommitDiff(ctx context.Context, repoURL, sha, token string) (*CommitDiff, error)

	// SearchCommits finds commits matching query. Platforms without a
	// native search API fall back to client-side filtering of recent
	// commits; that fallback is best-effort, not exhaustive.
	SearchCommits(ctx context.Context, repoURL, query, token string, limit int) ([]RemoteCommit, error)

	// GetRepositoryInfo returns rich repository metadata.
	GetRepositoryInfo(ctx context.Context, repoURL, token string) (*RepositoryInfo, error)
}
