package platform

import (
	"net/url"
	"strings"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// selfHostedPrefixes are hostname patterns that commonly front self-hosted
// GitLab instances. Matching one is a heuristic guess, not authoritative;
// explicit platform selection on the repository overrides it.
var selfHostedPrefixes = []string{"git.", "source.", "code.", "dev."}

// DetectPlatform guesses the hosting platform from a repository URL's host.
func DetectPlatform(repoURL string) domain.Platform {
	u, err := url.Parse(strings.ToLower(repoURL))
	if err != nil {
		return domain.PlatformUnknown
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "" {
		return domain.PlatformUnknown
	}

	switch {
	case strings.Contains(host, "github.com"):
		return domain.PlatformGitHub
	case strings.Contains(host, "gitlab"):
		return domain.PlatformGitLab
	}

	for _, prefix := range selfHostedPrefixes {
		if strings.HasPrefix(host, prefix) {
			return domain.PlatformGitLab
		}
	}
	return domain.PlatformUnknown
}

// URLInfo is the result of validating a repository URL.
type URLInfo struct {
	Platform      domain.Platform `json:"platform"`
	Owner         string          `json:"owner"`
	RepoName      string          `json:"repo_name"`
	NormalizedURL string          `json:"normalized_url"`
}

// ValidateRepositoryURL checks that repoURL is an http(s) URL on a known
// platform with at least owner and repository path segments, and returns
// the parsed pieces with trailing slash and .git suffix stripped.
func ValidateRepositoryURL(repoURL string) (*URLInfo, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return nil, port.Validf("invalid repository URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, port.Validf("repository URL must use HTTP or HTTPS")
	}
	if u.Host == "" {
		return nil, port.Validf("repository URL has no host")
	}

	platform := DetectPlatform(repoURL)
	if platform == domain.PlatformUnknown {
		return nil, port.Validf("unsupported Git platform; supported: GitHub, GitLab")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, port.Validf("repository URL must include owner and repository name")
	}

	return &URLInfo{
		Platform:      platform,
		Owner:         parts[0],
		RepoName:      strings.TrimSuffix(parts[1], ".git"),
		NormalizedURL: strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git"),
	}, nil
}

// Resolver dispatches platform operations to the client matching a
// repository URL.
type Resolver struct {
	github port.PlatformClient
	gitlab port.PlatformClient
}

// NewResolver creates a resolver over the two platform clients.
func NewResolver(github, gitlab port.PlatformClient) *Resolver {
	return &Resolver{github: github, gitlab: gitlab}
}

// ClientFor returns the platform client for a repository URL, or a
// validation error for unknown platforms.
func (r *Resolver) ClientFor(repoURL string) (port.PlatformClient, error) {
	switch DetectPlatform(repoURL) {
	case domain.PlatformGitHub:
		return r.github, nil
	case domain.PlatformGitLab:
		return r.gitlab, nil
	}
	return nil, port.Validf("unsupported Git platform for URL %s; supported: GitHub, GitLab", repoURL)
}
