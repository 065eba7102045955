package models

import (
	"time"
)

// Multi-tenancy models

// Workspace represents a coaching/agency workspace (top-level tenant)
type Workspace struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Description      *string   `json:"description" db:"description"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
	CreatedByUserID  *int64    `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	Settings         string    `json:"settings,omitempty" db:"settings"`
	SubscriptionPlan *string   `json:"subscription_plan,omitempty" db:"subscription_plan"`
	MaxSeats         *int      `json:"max_seats,omitempty" db:"max_seats"`
}

// User represents a user who can belong to multiple workspaces
type User struct {
	ID          int64      `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	FullName    *string    `json:"full_name,omitempty" db:"full_name"`
	AvatarURL   *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Membership is the junction between users and workspaces, carrying the role.
type Membership struct {
	UserID      int64     `json:"user_id" db:"user_id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Workspace roles. Owners and coaches see the whole inbox; setters see
// only assigned or explicitly shared conversations.
const (
	RoleOwner  = "owner"
	RoleCoach  = "coach"
	RoleSetter = "setter"
)

// IsElevated reports whether a role grants full inbox visibility.
func IsElevated(role string) bool {
	return role == RoleOwner || role == RoleCoach
}

// Client represents a coaching client record managed in the dashboard.
type Client struct {
	ID          int64      `json:"id" db:"id"`
	WorkspaceID int64      `json:"workspace_id" db:"workspace_id"`
	Name        string     `json:"name" db:"name"`
	Email       *string    `json:"email,omitempty" db:"email"`
	Handle      *string    `json:"handle,omitempty" db:"handle"`
	Status      string     `json:"status" db:"status"`
	Notes       *string    `json:"notes,omitempty" db:"notes"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Task represents a simple workspace task item.
type Task struct {
	ID           int64      `json:"id" db:"id"`
	WorkspaceID  int64      `json:"workspace_id" db:"workspace_id"`
	Title        string     `json:"title" db:"title"`
	Description  *string    `json:"description,omitempty" db:"description"`
	Status       string     `json:"status" db:"status"`
	AssignedToID *int64     `json:"assigned_to_id,omitempty" db:"assigned_to_id"`
	DueAt        *time.Time `json:"due_at,omitempty" db:"due_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Invite represents a pending workspace invitation. The raw token is
// returned exactly once at creation; only its bcrypt hash is stored.
type Invite struct {
	ID          int64      `json:"id" db:"id"`
	WorkspaceID int64      `json:"workspace_id" db:"workspace_id"`
	Email       string     `json:"email" db:"email"`
	Role        string     `json:"role" db:"role"`
	TokenHash   string     `json:"-" db:"token_hash"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
