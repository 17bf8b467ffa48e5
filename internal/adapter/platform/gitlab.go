package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// GitLabClient talks to the GitLab REST v4 API. The API base URL is derived
// from each repository URL, so self-hosted instances work without extra
// configuration.
type GitLabClient struct {
	http    *http.Client
	workers int
}

// NewGitLabClient creates a client with the given request timeout and
// detail-fetch worker count.
func NewGitLabClient(timeout time.Duration, workers int) *GitLabClient {
	return &GitLabClient{
		http:    &http.Client{Timeout: timeout},
		workers: workers,
	}
}

// gitlabTarget splits a repository URL into the instance API base and the
// URL-encoded project path GitLab expects in /projects/:id routes.
func gitlabTarget(repoURL string) (apiBase, projectPath string, err error) {
	u, perr := url.Parse(repoURL)
	if perr != nil || u.Host == "" {
		return "", "", port.Validf("invalid GitLab repository URL: %s", repoURL)
	}
	path := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	if path == "" || !strings.Contains(path, "/") {
		return "", "", port.Validf("GitLab repository URL must include namespace and project")
	}
	return u.Scheme + "://" + u.Host + "/api/v4", url.PathEscape(path), nil
}

func (c *GitLabClient) get(ctx context.Context, token, rawURL string, query url.Values, out any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build gitlab request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Private-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return port.Platformf(port.CodePlatformTimeout, "GitLab request timed out")
		}
		return port.Platformf(port.CodePlatform, "GitLab request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return gitlabError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gitlab response: %w", err)
	}
	return nil
}

func gitlabError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Error
	if msg == "" && payload.Message != nil {
		msg = fmt.Sprint(payload.Message)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return port.Platformf(port.CodePlatformAuth, "GitLab authentication failed; check the access token")
	case http.StatusForbidden:
		return port.Platformf(port.CodePlatformAuth, "GitLab access forbidden: %s", msg)
	case http.StatusNotFound:
		return port.Platformf(port.CodePlatformNotFound, "GitLab project not found or not accessible")
	case http.StatusTooManyRequests:
		retry := resp.Header.Get("Retry-After")
		return port.Platformf(port.CodePlatformRateLimit, "GitLab rate limit exceeded (retry after %ss)", retry)
	}
	if resp.StatusCode >= 500 {
		return port.Platformf(port.CodePlatformServer, "GitLab server error (%d)", resp.StatusCode)
	}
	return port.Platformf(port.CodePlatform, "GitLab request failed (%d): %s", resp.StatusCode, msg)
}

type gitlabProject struct {
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	Description       string `json:"description"`
	Visibility        string `json:"visibility"`
	DefaultBranch     string `json:"default_branch"`
	WebURL            string `json:"web_url"`
	StarCount         int    `json:"star_count"`
	ForksCount        int    `json:"forks_count"`
	OpenIssuesCount   int    `json:"open_issues_count"`
	CreatedAt         string `json:"created_at"`
	LastActivityAt    string `json:"last_activity_at"`
}

type gitlabCommit struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	AuthorName     string `json:"author_name"`
	AuthorEmail    string `json:"author_email"`
	AuthoredDate   string `json:"authored_date"`
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`
	CommittedDate  string `json:"committed_date"`
	WebURL         string `json:"web_url"`
	Stats          *struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
}

type gitlabDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

func (d gitlabDiff) status() string {
	switch {
	case d.NewFile:
		return "added"
	case d.DeletedFile:
		return "removed"
	case d.RenamedFile:
		return "renamed"
	}
	return "modified"
}

// countDiffLines counts added and removed lines in a unified diff body,
// skipping the +++/--- file headers.
func countDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

func (gc *gitlabCommit) toRemote(repoURL string) port.RemoteCommit {
	webURL := gc.WebURL
	if webURL == "" {
		webURL = strings.TrimSuffix(repoURL, "/") + "/-/commit/" + gc.ID
	}
	rc := port.RemoteCommit{
		SHA:            gc.ID,
		Message:        gc.Message,
		AuthorName:     gc.AuthorName,
		AuthorEmail:    gc.AuthorEmail,
		AuthorDate:     parseGitDate(gc.AuthoredDate),
		CommitterName:  gc.CommitterName,
		CommitterEmail: gc.CommitterEmail,
		CommitDate:     parseGitDate(gc.CommittedDate),
		WebURL:         webURL,
	}
	if rc.Message == "" {
		rc.Message = gc.Title
	}
	if gc.Stats != nil {
		rc.Additions = gc.Stats.Additions
		rc.Deletions = gc.Stats.Deletions
	}
	return rc
}

// TestConnection fetches the project record to verify reachability and
// token validity.
func (c *GitLabClient) TestConnection(ctx context.Context, repoURL, token string) (*port.RepositoryInfo, error) {
	base, project, err := gitlabTarget(repoURL)
	if err != nil {
		return nil, err
	}
	var gp gitlabProject
	if err := c.get(ctx, token, base+"/projects/"+project, nil, &gp); err != nil {
		return nil, err
	}
	return &port.RepositoryInfo{
		Name:          gp.Name,
		FullName:      gp.PathWithNamespace,
		Description:   gp.Description,
		Private:       gp.Visibility != "public",
		DefaultBranch: gp.DefaultBranch,
		WebURL:        gp.WebURL,
		Stars:         gp.StarCount,
		Forks:         gp.ForksCount,
		OpenIssues:    gp.OpenIssuesCount,
		CreatedAt:     gp.CreatedAt,
		UpdatedAt:     gp.LastActivityAt,
	}, nil
}

// ListBranches pages through /repository/branches until a short page.
func (c *GitLabClient) ListBranches(ctx context.Context, repoURL, token string) ([]port.Branch, error) {
	base, project, err := gitlabTarget(repoURL)
	if err != nil {
		return nil, err
	}
	var branches []port.Branch
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", fmt.Sprint(perPage))
		q.Set("page", fmt.Sprint(page))
		var batch []struct {
			Name   string `json:"name"`
			Commit struct {
				ID string `json:"id"`
			} `json:"commit"`
			Protected bool `json:"protected"`
		}
		if err := c.get(ctx, token, base+"/projects/"+project+"/repository/branches", q, &batch); err != nil {
			return nil, err
		}
		for _, b := range batch {
			branches = append(branches, port.Branch{Name: b.Name, CommitSHA: b.Commit.ID, Protected: b.Protected})
		}
		if len(batch) < perPage {
			return branches, nil
		}
	}
}

// FetchCommits lists commits page by page, then enriches each page with
// concurrent per-commit detail fetches for change statistics and file
// counts. Detail failures degrade to placeholder records.
func (c *GitLabClient) FetchCommits(ctx context.Context, repoURL, token string, q port.CommitQuery) ([]port.RemoteCommit, error) {
	base, project, err := gitlabTarget(repoURL)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = perPage
	}

	var commits []port.RemoteCommit
	for page := 1; len(commits) < limit; page++ {
		params := url.Values{}
		params.Set("per_page", fmt.Sprint(min(limit-len(commits), perPage)))
		params.Set("page", fmt.Sprint(page))
		if q.Branch != "" {
			params.Set("ref_name", q.Branch)
		}
		if q.Since != nil {
			params.Set("since", q.Since.UTC().Format(time.RFC3339))
		}
		if q.Until != nil {
			params.Set("until", q.Until.UTC().Format(time.RFC3339))
		}
		if q.Author != "" {
			params.Set("author", q.Author)
		}

		var batch []gitlabCommit
		if err := c.get(ctx, token, base+"/projects/"+project+"/repository/commits", params, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		shas := make([]string, len(batch))
		for i, gc := range batch {
			shas[i] = gc.ID
		}
		details := fetchDetails(ctx, shas, c.workers, func(ctx context.Context, sha string) (port.RemoteCommit, error) {
			rc, err := c.fetchDetail(ctx, base, project, repoURL, token, sha)
			if err != nil {
				slog.Warn("gitlab commit detail fetch failed", "sha", sha, "error", err)
				return placeholderCommit(sha, strings.TrimSuffix(repoURL, "/")+"/-/commit/"+sha), err
			}
			return rc, nil
		})
		commits = append(commits, details...)

		if len(batch) < perPage {
			break
		}
	}

	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

// fetchDetail resolves one commit with stats plus its diff for the file
// count. Line counts come from the stats block when the instance provides
// it, otherwise from counting diff lines.
func (c *GitLabClient) fetchDetail(ctx context.Context, base, project, repoURL, token, sha string) (port.RemoteCommit, error) {
	var gc gitlabCommit
	commitURL := base + "/projects/" + project + "/repository/commits/" + sha
	q := url.Values{}
	q.Set("stats", "true")
	if err := c.get(ctx, token, commitURL, q, &gc); err != nil {
		return port.RemoteCommit{}, err
	}
	rc := gc.toRemote(repoURL)

	var diffs []gitlabDiff
	if err := c.get(ctx, token, commitURL+"/diff", nil, &diffs); err != nil {
		slog.Warn("gitlab commit diff fetch failed", "sha", sha, "error", err)
		return rc, nil
	}
	rc.FilesChanged = len(diffs)
	if gc.Stats == nil {
		for _, d := range diffs {
			add, del := countDiffLines(d.Diff)
			rc.Additions += add
			rc.Deletions += del
		}
	}
	return rc, nil
}

// GetCommitDiff returns file-level changes from the commit diff endpoint.
// Per-file line counts are derived from the diff text and may undercount
// on truncated diffs.
func (c *GitLabClient) GetCommitDiff(ctx context.Context, repoURL, sha, token string) (*port.CommitDiff, error) {
	base, project, err := gitlabTarget(repoURL)
	if err != nil {
		return nil, err
	}
	var diffs []gitlabDiff
	if err := c.get(ctx, token, base+"/projects/"+project+"/repository/commits/"+sha+"/diff", nil, &diffs); err != nil {
		return nil, err
	}
	diff := &port.CommitDiff{TotalFiles: len(diffs)}
	for _, d := range diffs {
		add, del := countDiffLines(d.Diff)
		file := port.DiffFile{
			Path:      d.NewPath,
			Status:    d.status(),
			Additions: add,
			Deletions: del,
			Patch:     d.Diff,
		}
		if d.RenamedFile {
			file.OldPath = d.OldPath
		}
		diff.Files = append(diff.Files, file)
		diff.TotalAdditions += add
		diff.TotalDeletions += del
	}
	return diff, nil
}

// SearchCommits filters recent commits client side, since GitLab has no
// repository-scoped commit message search. It scans up to three times the
// requested limit, capped, so results are best-effort over recent history.
func (c *GitLabClient) SearchCommits(ctx context.Context, repoURL, query, token string, limit int) ([]port.RemoteCommit, error) {
	if limit <= 0 {
		limit = 20
	}
	scan := min(limit*searchFanout, searchScanCap)

	base, project, err := gitlabTarget(repoURL)
	if err != nil {
		return nil, err
	}
	var recent []gitlabCommit
	params := url.Values{}
	params.Set("per_page", fmt.Sprint(min(scan, perPage)))
	for page := 1; len(recent) < scan; page++ {
		params.Set("page", fmt.Sprint(page))
		var batch []gitlabCommit
		if err := c.get(ctx, token, base+"/projects/"+project+"/repository/commits", params, &batch); err != nil {
			return nil, err
		}
		recent = append(recent, batch...)
		if len(batch) < perPage {
			break
		}
	}

	needle := strings.ToLower(query)
	var matches []port.RemoteCommit
	for _, gc := range recent {
		if len(matches) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(gc.Message), needle) ||
			strings.Contains(strings.ToLower(gc.Title), needle) ||
			strings.HasPrefix(strings.ToLower(gc.ID), needle) {
			matches = append(matches, gc.toRemote(repoURL))
		}
	}
	return matches, nil
}

// GetRepositoryInfo combines the project record with its language breakdown
// and most active members.
func (c *GitLabClient) GetRepositoryInfo(ctx context.Context, repoURL, token string) (*port.RepositoryInfo, error) {
	base, project, err := gitlabTarget(repoURL)
	if err != nil {
		return nil, err
	}
	info, err := c.TestConnection(ctx, repoURL, token)
	if err != nil {
		return nil, err
	}

	langs := map[string]float64{}
	if err := c.get(ctx, token, base+"/projects/"+project+"/languages", nil, &langs); err != nil {
		slog.Warn("gitlab languages fetch failed", "repo", repoURL, "error", err)
	} else {
		// GitLab reports percentages, not byte counts.
		info.Languages = map[string]int{}
		for name, pct := range langs {
			info.Languages[name] = int(math.Round(pct))
		}
	}

	q := url.Values{}
	q.Set("per_page", "5")
	var members []struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, token, base+"/projects/"+project+"/members/all", q, &members); err != nil {
		slog.Warn("gitlab members fetch failed", "repo", repoURL, "error", err)
	} else {
		for _, m := range members {
			info.TopContributors = append(info.TopContributors, port.Contributor{Login: m.Username, AvatarURL: m.AvatarURL})
		}
	}
	return info, nil
}
