package domain

import "time"

// TimesheetEntry is an external record of hours logged by a user.
// The mapper consumes these read-only; the fields mirror what the
// time-tracking system exposes.
type TimesheetEntry struct {
	ID          string    `json:"id"           db:"id"`
	Name        string    `json:"name"         db:"name"`
	ProjectID   string    `json:"project_id"   db:"project_id"`
	ProjectName string    `json:"project_name" db:"project_name"`
	TaskID      string    `json:"task_id"      db:"task_id"`
	TaskName    string    `json:"task_name"    db:"task_name"`
	UserID      string    `json:"user_id"      db:"user_id"`
	UserEmail   string    `json:"user_email"   db:"user_email"`
	UserName    string    `json:"user_name"    db:"user_name"`
	Date        time.Time `json:"date"         db:"entry_date"`
	Hours       float64   `json:"hours"        db:"hours"`
	CompanyID   string    `json:"company_id"   db:"company_id"`
	Active      bool      `json:"active"       db:"active"`
}

// Suggestion is one confidence-scored commit↔timesheet pairing proposal.
type Suggestion struct {
	CommitID         string   `json:"commit_id"`
	CommitHash       string   `json:"commit_hash,omitempty"`
	CommitMessage    string   `json:"commit_message,omitempty"`
	TimesheetEntryID string   `json:"timesheet_entry_id"`
	TimesheetName    string   `json:"timesheet_name,omitempty"`
	ProjectName      string   `json:"project_name,omitempty"`
	TaskName         string   `json:"task_name,omitempty"`
	UserName         string   `json:"user_name,omitempty"`
	Score            float64  `json:"confidence_score"`
	Reasons          []string `json:"reasons"`
}
