package domain

import "time"

// MappingMethod records how a mapping was created.
type MappingMethod string

const (
	MappingMethodManual    MappingMethod = "manual"
	MappingMethodBulk      MappingMethod = "bulk"
	MappingMethodAutomatic MappingMethod = "automatic"
	MappingMethodImport    MappingMethod = "import"
)

// MappingMethods lists every creation method.
var MappingMethods = []MappingMethod{
	MappingMethodManual, MappingMethodBulk, MappingMethodAutomatic, MappingMethodImport,
}

// Mapping links one commit to one timesheet entry. A commit holds at most
// one mapping at any time.
type Mapping struct {
	ID               string        `json:"id"                 db:"id"`
	CommitID         string        `json:"commit_id"          db:"commit_id"`
	TimesheetEntryID string        `json:"timesheet_entry_id" db:"timesheet_entry_id"`
	MappedBy         string        `json:"mapped_by"          db:"mapped_by"`
	MappingDate      time.Time     `json:"mapping_date"       db:"mapping_date"`
	Method           MappingMethod `json:"method"             db:"mapping_method"`
	Description      string        `json:"description"        db:"description"`
	ConfidenceScore  float64       `json:"confidence_score"   db:"confidence_score"`

	// Denormalized projections for display and reporting only.
	CommitHash    string    `json:"commit_hash"    db:"commit_hash"`
	CommitMessage string    `json:"commit_message" db:"commit_message"`
	CommitAuthor  string    `json:"commit_author"  db:"commit_author"`
	CommitDate    time.Time `json:"commit_date"    db:"commit_date"`
	RepositoryID  string    `json:"repository_id"  db:"repository_id"`
	TimesheetName string    `json:"timesheet_name" db:"timesheet_name"`
	ProjectID     string    `json:"project_id"     db:"project_id"`
	TimesheetUser string    `json:"timesheet_user" db:"timesheet_user"`
	TimesheetDate time.Time `json:"timesheet_date" db:"timesheet_date"`
	TimesheetHrs  float64   `json:"timesheet_hours" db:"timesheet_hours"`
	CompanyID     string    `json:"company_id"     db:"company_id"`
}

// MappingValidation is the continuously recomputed validity state of a mapping.
type MappingValidation struct {
	MappingID string   `json:"mapping_id"`
	IsValid   bool     `json:"is_valid"`
	Errors    []string `json:"errors"`
}

// BulkMappingResult reports the outcome of a bulk create, per commit.
type BulkMappingResult struct {
	CreatedCount int                  `json:"created_count"`
	FailedCount  int                  `json:"failed_count"`
	SkippedCount int                  `json:"skipped_count"`
	Created      []BulkMappingDetail  `json:"created_mappings"`
	Failed       []BulkMappingFailure `json:"failed_mappings"`
	Skipped      []BulkMappingSkip    `json:"skipped_mappings"`
}

// BulkMappingDetail identifies a mapping created during a bulk operation.
type BulkMappingDetail struct {
	MappingID  string `json:"mapping_id"`
	CommitID   string `json:"commit_id"`
	CommitHash string `json:"commit_hash"`
}

// BulkMappingFailure records why a commit could not be mapped.
type BulkMappingFailure struct {
	CommitID   string `json:"commit_id"`
	CommitHash string `json:"commit_hash,omitempty"`
	Error      string `json:"error"`
}

// BulkMappingSkip records a commit skipped because it was already mapped.
type BulkMappingSkip struct {
	CommitID   string `json:"commit_id"`
	CommitHash string `json:"commit_hash"`
	Reason     string `json:"reason"`
}

// MappingStatistics aggregates mapping activity for reporting.
type MappingStatistics struct {
	TotalMappings    int                   `json:"total_mappings"`
	UniqueCommits    int                   `json:"unique_commits"`
	UniqueTimesheets int                   `json:"unique_timesheets"`
	UniqueProjects   int                   `json:"unique_projects"`
	TotalHoursMapped float64               `json:"total_hours_mapped"`
	Methods          map[MappingMethod]int `json:"methods"`
	TopMappers       []MapperStats         `json:"top_mappers"`
	ProjectBreakdown []ProjectMappingStats `json:"project_breakdown"`
}

// MapperStats counts mappings created by one user.
type MapperStats struct {
	UserID       string  `json:"user_id"`
	UserName     string  `json:"user_name"`
	MappingCount int     `json:"mapping_count"`
	HoursMapped  float64 `json:"hours_mapped"`
}

// ProjectMappingStats counts mappings within one project.
type ProjectMappingStats struct {
	ProjectID    string  `json:"project_id"`
	MappingCount int     `json:"mapping_count"`
	HoursMapped  float64 `json:"hours_mapped"`
	CommitCount  int     `json:"commit_count"`
}

// MappingStatsFilter scopes mapping statistics queries.
type MappingStatsFilter struct {
	ProjectID string
	UserID    string
	DateFrom  *time.Time
	DateTo    *time.Time
}
