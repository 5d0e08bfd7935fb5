package db

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a job in this status can never transition again
// through the normal claim path. Failed payloads stay on disk; done payloads
// are removed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

type Job struct {
	ID              int64     `json:"id"`
	OriginalName    string    `json:"filename"`
	StoredName      string    `json:"-"`
	FilePath        string    `json:"-"`
	Ext             string    `json:"ext"`
	Status          Status    `json:"status"`
	RequestedBy     string    `json:"requested_by"`
	AssignedAgentID string    `json:"assigned_agent_id,omitempty"`
	FailReason      string    `json:"fail_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	TeamName     string    `json:"team_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Team returns the name submissions are attributed to. Accounts created
// without an explicit team fall back to their username.
func (u *User) Team() string {
	if u.TeamName != "" {
		return u.TeamName
	}
	return u.Username
}
