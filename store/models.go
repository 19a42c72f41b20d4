package store

import (
	"time"

	"github.com/BaSui01/deskagent/types"
)

// Session status values.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// User is an end user identified by the external chat user id.
type User struct {
	ID              uint64    `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"size:200" json:"username,omitempty"`
	TokensUsedToday int       `gorm:"default:0" json:"tokens_used_today"`
	LastRequestDate time.Time `json:"last_request_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// Project is a user-owned isolated context bucket with its own system
// prompt and mode set. Name is unique per owner.
type Project struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint64    `gorm:"not null;uniqueIndex:idx_owner_name" json:"user_id"`
	Name         string    `gorm:"size:200;not null;uniqueIndex:idx_owner_name" json:"name"`
	Goal         string    `gorm:"type:text" json:"goal,omitempty"`
	Context      string    `gorm:"type:text" json:"context,omitempty"`
	ActiveMode   string    `gorm:"size:100" json:"active_mode,omitempty"` // active mode name, "" = none
	SystemPrompt string    `gorm:"type:text" json:"system_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Mode is a named override profile within a project: optional system prompt
// replacement, opaque tools configuration, and sampling temperature stored
// in canonical string form (trailing zeros stripped, "" = unset).
type Mode struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProjectID    uint      `gorm:"not null;uniqueIndex:idx_project_mode" json:"project_id"`
	Name         string    `gorm:"size:100;not null;uniqueIndex:idx_project_mode" json:"name"`
	SystemPrompt string    `gorm:"type:text" json:"system_prompt,omitempty"`
	ToolsConfig  string    `gorm:"type:text" json:"tools_config,omitempty"`
	Temperature  string    `gorm:"size:16" json:"temperature,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectAccess is a directed one-hop permission edge allowing the owner
// project to read the allowed project's memory. Unique per ordered pair;
// never transitive; self-loops are rejected at grant time.
type ProjectAccess struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OwnerProjectID   uint      `gorm:"not null;uniqueIndex:idx_access_pair" json:"owner_project_id"`
	AllowedProjectID uint      `gorm:"not null;uniqueIndex:idx_access_pair" json:"allowed_project_id"`
	Scope            string    `gorm:"size:50;not null;default:read" json:"scope"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is one conversation. At most one session per user is active at
// any time. ProjectID and ModeID are weak references: the referenced rows
// may be deleted while the session still points at them, and lookups must
// tolerate "not found".
type Session struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint64     `gorm:"not null;index" json:"user_id"`
	ProjectID     *uint      `json:"project_id,omitempty"`
	ModeID        *uint      `json:"mode_id,omitempty"`
	Status        string     `gorm:"size:20;not null;default:active;index" json:"status"`
	ContextMode   string     `gorm:"size:20;not null;default:project" json:"context_mode"`
	ActiveProfile string     `gorm:"size:50" json:"active_profile"`
	HistoryJSON   string     `gorm:"column:message_history;type:text" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`

	// History is the decoded message history, populated by SessionRepo on
	// read and written back as JSON on append. Never stored directly.
	History []types.Message `gorm:"-" json:"history,omitempty"`
}

// PersonalizedPrompt is the per-user, per-profile fallback system prompt
// used when no project governs the session.
type PersonalizedPrompt struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint64    `gorm:"not null;uniqueIndex:idx_user_profile" json:"user_id"`
	Profile    string    `gorm:"size:50;not null;uniqueIndex:idx_user_profile" json:"profile"`
	PromptText string    `gorm:"type:text;not null" json:"prompt_text"`
	CreatedAt  time.Time `json:"created_at"`
}
