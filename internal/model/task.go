package model

import "time"

// Status — закрытый набор состояний задачи
type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID                int64      `json:"id"`
	OrgID             int64      `json:"org_id"`
	ProjectID         int64      `json:"project_id"`
	TypeID            *int64     `json:"type_id,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Priority          int        `json:"priority"`
	Status            Status     `json:"status"`
	CreatedBy         int64      `json:"created_by"`
	ClaimedBy         *int64     `json:"claimed_by,omitempty"`
	CardID            *int64     `json:"card_id,omitempty"`
	CreatedFromRuleID *int64     `json:"created_from_rule_id,omitempty"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ClaimedAt         *time.Time `json:"claimed_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	PooledAt          time.Time  `json:"pooled_at"`
}

// TaskPatch — частичное обновление полей вне жизненного цикла
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	TypeID      *int64  `json:"type_id,omitempty"`
}

type TaskFilter struct {
	Status    *Status
	ProjectID *int64
}
