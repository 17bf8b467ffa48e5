package domain

import "time"

// Platform identifies a remote Git hosting service.
type Platform string

const (
	PlatformGitHub  Platform = "github"
	PlatformGitLab  Platform = "gitlab"
	PlatformUnknown Platform = "unknown"
)

// Connection status constants.
const (
	ConnectionNotTested = "not_tested"
	ConnectionConnected = "connected"
	ConnectionFailed    = "failed"
)

// Repository represents a configured remote Git repository.
type Repository struct {
	ID               string     `json:"id"                db:"id"`
	CompanyID        string     `json:"company_id"        db:"company_id"`
	Name             string     `json:"name"              db:"name"`
	Platform         Platform   `json:"platform"          db:"platform"`
	URL              string     `json:"url"               db:"url"`
	AccessToken      string     `json:"-"                 db:"access_token"` // never serialized to JSON
	Private          bool       `json:"private"           db:"private"`
	Owner            string     `json:"owner"             db:"owner"`
	RepoName         string     `json:"repo_name"         db:"repo_name"`
	DefaultBranch    string     `json:"default_branch"    db:"default_branch"`
	ProjectID        string     `json:"project_id"        db:"project_id"`
	ConnectionStatus string     `json:"connection_status" db:"connection_status"`
	ConnectionError  string     `json:"connection_error"  db:"connection_error"`
	LastSyncDate     *time.Time `json:"last_sync_date"    db:"last_sync_date"`
	CreatedAt        time.Time  `json:"created_at"        db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"        db:"updated_at"`
}

// RepositoryStats is the commit rollup shown alongside a repository.
type RepositoryStats struct {
	TotalCommits    int `json:"total_commits"`
	MappedCommits   int `json:"mapped_commits"`
	UnmappedCommits int `json:"unmapped_commits"`
}
