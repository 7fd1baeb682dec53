package model

import "time"

// ResourceTask — единственный поддерживаемый resource_type
const ResourceTask = "task"

// Rule — определение автоматизации, только чтение для ядра
type Rule struct {
	ID           int64     `json:"id"`
	WorkflowID   int64     `json:"workflow_id"`
	ProjectID    int64     `json:"project_id"`
	Goal         string    `json:"goal"`
	ResourceType string    `json:"resource_type"`
	TaskTypeID   *int64    `json:"task_type_id,omitempty"`
	ToState      Status    `json:"to_state"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RuleTemplate — шаблон задачи, привязанный к правилу, с порядком выполнения
type RuleTemplate struct {
	RuleID         int64  `json:"rule_id"`
	TemplateID     int64  `json:"template_id"`
	ExecutionOrder int    `json:"execution_order"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Priority       int    `json:"priority"`
}

// Outcome — итог оценки правила для одного события
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomePartiallyApplied Outcome = "partially_applied"
	OutcomeSuppressed       Outcome = "suppressed"
	OutcomeErrored          Outcome = "errored"
)

// RuleExecution — append-only аудит одной оценки правила
type RuleExecution struct {
	ID        int64     `json:"id"`
	RuleID    int64     `json:"rule_id"`
	TaskID    int64     `json:"task_id"`
	EventID   string    `json:"event_id"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
