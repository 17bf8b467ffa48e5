package domain

import "time"

// User represents an authenticated user in the system.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	Name      string    `json:"name"       db:"name"`
	Role      string    `json:"role"       db:"role"` // admin, mapper, viewer
	CompanyID string    `json:"company_id" db:"company_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Role constants.
const (
	RoleAdmin  = "admin"
	RoleMapper = "mapper"
	RoleViewer = "viewer"
)

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
}
