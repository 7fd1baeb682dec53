package repo

import (
	"context"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error)
	Claim(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error)
	Release(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error)
	Complete(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error)
	UpdateClaimed(ctx context.Context, id int64, expectedVersion int, claimant int64, patch model.TaskPatch) (model.Task, error)
	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
	GetStats(ctx context.Context) (Stats, error)
}

// EventRepository — append-only журнал переходов
type EventRepository interface {
	Append(ctx context.Context, e model.TaskEvent) (model.TaskEvent, error)
	ListByTask(ctx context.Context, taskID int64, limit int) ([]model.TaskEvent, error)
}

// RuleCatalog — чтение активных правил, ядро их не изменяет
type RuleCatalog interface {
	MatchingRules(ctx context.Context, projectID int64, resourceType string, taskTypeID *int64, toState model.Status) ([]model.Rule, error)
	TemplatesForRule(ctx context.Context, ruleID int64) ([]model.RuleTemplate, error)
}

// ExecutionRepository — append-only аудит оценок правил
type ExecutionRepository interface {
	AppliedExists(ctx context.Context, ruleID int64, eventID string) (bool, error)
	Record(ctx context.Context, x model.RuleExecution) (model.RuleExecution, error)
	List(ctx context.Context, limit int) ([]model.RuleExecution, error)
}
