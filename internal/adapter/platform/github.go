package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// GitHubClient talks to the GitHub REST v3 API with a personal access
// token. BaseURL is overridable for tests.
type GitHubClient struct {
	BaseURL string
	http    *http.Client
	workers int
}

// NewGitHubClient creates a client with the given request timeout and
// detail-fetch worker count.
func NewGitHubClient(timeout time.Duration, workers int) *GitHubClient {
	return &GitHubClient{
		BaseURL: "https://api.github.com",
		http:    &http.Client{Timeout: timeout},
		workers: workers,
	}
}

func githubOwnerRepo(repoURL string) (string, string, error) {
	info, err := ValidateRepositoryURL(repoURL)
	if err != nil {
		return "", "", err
	}
	return info.Owner, info.RepoName, nil
}

// get performs an authenticated GET and decodes the JSON body into out.
func (c *GitHubClient) get(ctx context.Context, token, path string, query url.Values, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return port.Platformf(port.CodePlatformTimeout, "GitHub request timed out")
		}
		return port.Platformf(port.CodePlatform, "GitHub request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

// apiError maps a non-2xx GitHub response to a typed platform error.
func (c *GitHubClient) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return port.Platformf(port.CodePlatformAuth, "GitHub authentication failed; check the access token")
	case resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(msg), "rate limit"):
		reset := resp.Header.Get("X-RateLimit-Reset")
		return port.Platformf(port.CodePlatformRateLimit, "GitHub rate limit exceeded (resets at %s)", reset)
	case resp.StatusCode == http.StatusForbidden:
		return port.Platformf(port.CodePlatformAuth, "GitHub access forbidden: %s", msg)
	case resp.StatusCode == http.StatusNotFound:
		return port.Platformf(port.CodePlatformNotFound, "GitHub repository not found or not accessible")
	case resp.StatusCode >= 500:
		return port.Platformf(port.CodePlatformServer, "GitHub server error (%d)", resp.StatusCode)
	}
	return port.Platformf(port.CodePlatform, "GitHub request failed (%d): %s", resp.StatusCode, msg)
}

type githubRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	OpenIssues    int    `json:"open_issues_count"`
	Size          int    `json:"size"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
		Committer struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []struct {
		Filename         string `json:"filename"`
		PreviousFilename string `json:"previous_filename"`
		Status           string `json:"status"`
		Additions        int    `json:"additions"`
		Deletions        int    `json:"deletions"`
		Patch            string `json:"patch"`
	} `json:"files"`
}

func (gc *githubCommit) toRemote(repoURL string) port.RemoteCommit {
	webURL := gc.HTMLURL
	if webURL == "" {
		webURL = strings.TrimSuffix(repoURL, "/") + "/commit/" + gc.SHA
	}
	return port.RemoteCommit{
		SHA:            gc.SHA,
		Message:        gc.Commit.Message,
		AuthorName:     gc.Commit.Author.Name,
		AuthorEmail:    gc.Commit.Author.Email,
		AuthorDate:     parseGitDate(gc.Commit.Author.Date),
		CommitterName:  gc.Commit.Committer.Name,
		CommitterEmail: gc.Commit.Committer.Email,
		CommitDate:     parseGitDate(gc.Commit.Committer.Date),
		Additions:      gc.Stats.Additions,
		Deletions:      gc.Stats.Deletions,
		FilesChanged:   len(gc.Files),
		WebURL:         webURL,
	}
}

// TestConnection fetches the repository record to verify reachability and
// token validity.
func (c *GitHubClient) TestConnection(ctx context.Context, repoURL, token string) (*port.RepositoryInfo, error) {
	owner, repo, err := githubOwnerRepo(repoURL)
	if err != nil {
		return nil, err
	}
	var gr githubRepo
	if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &gr); err != nil {
		return nil, err
	}
	return &port.RepositoryInfo{
		Name:          gr.Name,
		FullName:      gr.FullName,
		Description:   gr.Description,
		Private:       gr.Private,
		DefaultBranch: gr.DefaultBranch,
		WebURL:        gr.HTMLURL,
		Stars:         gr.Stars,
		Forks:         gr.Forks,
		OpenIssues:    gr.OpenIssues,
		Size:          gr.Size,
		CreatedAt:     gr.CreatedAt,
		UpdatedAt:     gr.UpdatedAt,
	}, nil
}

// ListBranches pages through /branches until a short page.
func (c *GitHubClient) ListBranches(ctx context.Context, repoURL, token string) ([]port.Branch, error) {
	owner, repo, err := githubOwnerRepo(repoURL)
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
				SHA string `json:"sha"`
			} `json:"commit"`
			Protected bool `json:"protected"`
		}
		if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s/branches", owner, repo), q, &batch); err != nil {
			return nil, err
		}
		for _, b := range batch {
			branches = append(branches, port.Branch{Name: b.Name, CommitSHA: b.Commit.SHA, Protected: b.Protected})
		}
		if len(batch) < perPage {
			return branches, nil
		}
	}
}

// FetchCommits lists commit SHAs page by page, then enriches each page with
// concurrent per-commit detail fetches. Detail failures degrade to
// placeholder records.
func (c *GitHubClient) FetchCommits(ctx context.Context, repoURL, token string, q port.CommitQuery) ([]port.RemoteCommit, error) {
	owner, repo, err := githubOwnerRepo(repoURL)
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
			params.Set("sha", q.Branch)
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

		var batch []githubCommit
		if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s/commits", owner, repo), params, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		shas := make([]string, len(batch))
		for i, gc := range batch {
			shas[i] = gc.SHA
		}
		details := fetchDetails(ctx, shas, c.workers, func(ctx context.Context, sha string) (port.RemoteCommit, error) {
			var detail githubCommit
			if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, sha), nil, &detail); err != nil {
				slog.Warn("github commit detail fetch failed", "sha", sha, "error", err)
				return placeholderCommit(sha, strings.TrimSuffix(repoURL, "/")+"/commit/"+sha), err
			}
			return detail.toRemote(repoURL), nil
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

// GetCommitDiff returns file-level changes from the single-commit endpoint.
func (c *GitHubClient) GetCommitDiff(ctx context.Context, repoURL, sha, token string) (*port.CommitDiff, error) {
	owner, repo, err := githubOwnerRepo(repoURL)
	if err != nil {
		return nil, err
	}
	var gc githubCommit
	if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, sha), nil, &gc); err != nil {
		return nil, err
	}
	diff := &port.CommitDiff{
		TotalFiles:     len(gc.Files),
		TotalAdditions: gc.Stats.Additions,
		TotalDeletions: gc.Stats.Deletions,
	}
	for _, f := range gc.Files {
		diff.Files = append(diff.Files, port.DiffFile{
			Path:      f.Filename,
			OldPath:   f.PreviousFilename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}
	return diff, nil
}

// SearchCommits uses GitHub's native commit search scoped to the repository.
func (c *GitHubClient) SearchCommits(ctx context.Context, repoURL, query, token string, limit int) ([]port.RemoteCommit, error) {
	owner, repo, err := githubOwnerRepo(repoURL)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > perPage {
		limit = perPage
	}
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s repo:%s/%s", query, owner, repo))
	params.Set("per_page", fmt.Sprint(limit))
	params.Set("sort", "committer-date")
	params.Set("order", "desc")

	var result struct {
		Items []githubCommit `json:"items"`
	}
	if err := c.get(ctx, token, "/search/commits", params, &result); err != nil {
		return nil, err
	}
	commits := make([]port.RemoteCommit, 0, len(result.Items))
	for _, item := range result.Items {
		commits = append(commits, item.toRemote(repoURL))
	}
	return commits, nil
}

// GetRepositoryInfo combines the repository record with its language
// breakdown and top contributors.
func (c *GitHubClient) GetRepositoryInfo(ctx context.Context, repoURL, token string) (*port.RepositoryInfo, error) {
	owner, repo, err := githubOwnerRepo(repoURL)
	if err != nil {
		return nil, err
	}
	info, err := c.TestConnection(ctx, repoURL, token)
	if err != nil {
		return nil, err
	}

	langs := map[string]int{}
	if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s/languages", owner, repo), nil, &langs); err != nil {
		slog.Warn("github languages fetch failed", "repo", repoURL, "error", err)
	} else {
		info.Languages = langs
	}

	q := url.Values{}
	q.Set("per_page", "5")
	var contributors []struct {
		Login         string `json:"login"`
		Contributions int    `json:"contributions"`
		AvatarURL     string `json:"avatar_url"`
	}
	if err := c.get(ctx, token, fmt.Sprintf("/repos/%s/%s/contributors", owner, repo), q, &contributors); err != nil {
		slog.Warn("github contributors fetch failed", "repo", repoURL, "error", err)
	} else {
		for _, u := range contributors {
			info.TopContributors = append(info.TopContributors, port.Contributor{
				Login:         u.Login,
				Contributions: u.Contributions,
				AvatarURL:     u.AvatarURL,
			})
		}
	}
	return info, nil
}
