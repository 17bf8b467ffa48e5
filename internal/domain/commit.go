package domain

import (
	"regexp"
	"strings"
	"time"
)

// CommitType buckets a commit by its conventional-commit message prefix.
type CommitType string

const (
	CommitTypeFeature  CommitType = "feature"
	CommitTypeBugfix   CommitType = "bugfix"
	CommitTypeRefactor CommitType = "refactor"
	CommitTypeDocs     CommitType = "docs"
	CommitTypeTest     CommitType = "test"
	CommitTypeChore    CommitType = "chore"
	CommitTypeOther    CommitType = "other"
)

// CommitTypes lists every classification bucket, in display order.
var CommitTypes = []CommitType{
	CommitTypeFeature, CommitTypeBugfix, CommitTypeRefactor,
	CommitTypeDocs, CommitTypeTest, CommitTypeChore, CommitTypeOther,
}

// Commit is one persisted commit record, unique per (hash, repository).
type Commit struct {
	ID             string     `json:"id"              db:"id"`
	RepositoryID   string     `json:"repository_id"   db:"repository_id"`
	CompanyID      string     `json:"company_id"      db:"company_id"`
	Hash           string     `json:"hash"            db:"commit_hash"`
	ShortHash      string     `json:"short_hash"      db:"short_hash"`
	AuthorName     string     `json:"author_name"     db:"author_name"`
	AuthorEmail    string     `json:"author_email"    db:"author_email"`
	CommitterName  string     `json:"committer_name"  db:"committer_name"`
	CommitterEmail string     `json:"committer_email" db:"committer_email"`
	Message        string     `json:"message"         db:"commit_message"`
	ShortMessage   string     `json:"short_message"   db:"short_message"`
	CommitDate     time.Time  `json:"commit_date"     db:"commit_date"`
	AuthorDate     time.Time  `json:"author_date"     db:"author_date"`
	Branch         string     `json:"branch"          db:"branch_name"`
	FilesChanged   int        `json:"files_changed"   db:"files_changed"`
	LinesAdded     int        `json:"lines_added"     db:"lines_added"`
	LinesDeleted   int        `json:"lines_deleted"   db:"lines_deleted"`
	TotalChanges   int        `json:"total_changes"   db:"total_changes"`
	CommitType     CommitType `json:"commit_type"     db:"commit_type"`
	IsMapped       bool       `json:"is_mapped"       db:"is_mapped"`
	MappedBy       string     `json:"mapped_by"       db:"mapped_by"`
	MappingDate    *time.Time `json:"mapping_date"    db:"mapping_date"`
	CommitURL      string     `json:"commit_url"      db:"commit_url"`
	CreatedAt      time.Time  `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"      db:"updated_at"`
}

var hashPattern = regexp.MustCompile(`^[a-f0-9]{40}$`)

// ValidHash reports whether hash is a full lowercase SHA-1 commit hash.
func ValidHash(hash string) bool {
	return hashPattern.MatchString(hash)
}

// ShortHash returns the first 8 characters of a full commit hash.
func ShortHash(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}

// ShortMessage returns the first line of a commit message, truncated to 100
// characters.
func ShortMessage(message string) string {
	line := message
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if runes := []rune(line); len(runes) > 100 {
		line = string(runes[:100])
	}
	return line
}

// typePrefixes maps message prefixes to commit types, checked in order:
// the first bucket with a matching prefix wins.
var typePrefixes = []struct {
	typ      CommitType
	prefixes []string
}{
	{CommitTypeFeature, []string{"feat:", "feature:"}},
	{CommitTypeBugfix, []string{"fix:", "bugfix:", "bug:"}},
	{CommitTypeRefactor, []string{"refactor:", "refact:"}},
	{CommitTypeDocs, []string{"docs:", "doc:", "documentation"}},
	{CommitTypeTest, []string{"test:", "tests:"}},
	{CommitTypeChore, []string{"chore:", "style:", "ci:"}},
}

// ClassifyCommitType buckets a commit message by conventional-commit prefix.
func ClassifyCommitType(message string) CommitType {
	lower := strings.ToLower(message)
	for _, bucket := range typePrefixes {
		for _, prefix := range bucket.prefixes {
			if strings.Contains(lower, prefix) {
				return bucket.typ
			}
		}
	}
	return CommitTypeOther
}

// CommitWebURL builds the platform-specific web link for a commit.
func CommitWebURL(platform Platform, repoURL, hash string) string {
	base := strings.TrimSuffix(repoURL, "/")
	switch platform {
	case PlatformGitHub:
		return base + "/commit/" + hash
	case PlatformGitLab:
		return base + "/-/commit/" + hash
	}
	return ""
}

// Derive recomputes every derived field from the commit's source fields.
// Called on the store's write path; the entity itself stays a plain struct.
func (c *Commit) Derive(platform Platform, repoURL string) {
	c.ShortHash = ShortHash(c.Hash)
	c.ShortMessage = ShortMessage(c.Message)
	c.TotalChanges = c.LinesAdded + c.LinesDeleted
	c.CommitType = ClassifyCommitType(c.Message)
	c.CommitURL = CommitWebURL(platform, repoURL, c.Hash)
}

// CommitFilter is the conjunctive filter set for commit searches.
type CommitFilter struct {
	SearchTerm   string     // substring on message OR hash
	Branch       string     // exact
	Author       string     // substring on name OR email
	DateFrom     *time.Time
	DateTo       *time.Time
	CommitType   CommitType // exact; empty = all
	MappedStatus string     // "mapped", "unmapped", or "" for all
}

// CommitStatistics aggregates commit counts for a repository or date range.
type CommitStatistics struct {
	TotalCommits      int                `json:"total_commits"`
	MappedCommits     int                `json:"mapped_commits"`
	UnmappedCommits   int                `json:"unmapped_commits"`
	UniqueAuthors     int                `json:"unique_authors"`
	TotalLinesAdded   int                `json:"total_lines_added"`
	TotalLinesDeleted int                `json:"total_lines_deleted"`
	TotalFilesChanged int                `json:"total_files_changed"`
	CommitTypes       map[CommitType]int `json:"commit_types"`
}
