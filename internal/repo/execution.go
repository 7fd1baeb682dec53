package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
)

// ExecutionRepo — аудит оценок правил, только вставка и чтение
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{
		pool: pool,
	}
}

// AppliedExists — было ли правило уже применено для этого события.
// Подавленные и ошибочные записи не считаются применением.
func (r *ExecutionRepo) AppliedExists(ctx context.Context, ruleID int64, eventID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rule_executions
			WHERE rule_id = $1 AND event_id = $2
			  AND outcome IN ('applied', 'partially_applied')
		)
	`, ruleID, eventID).Scan(&exists)
	return exists, err
}

func (r *ExecutionRepo) Record(ctx context.Context, x model.RuleExecution) (model.RuleExecution, error) {
	if x.CreatedAt.IsZero() {
		x.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO rule_executions (rule_id, task_id, event_id, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, x.RuleID, x.TaskID, x.EventID, string(x.Outcome), x.Detail, x.CreatedAt).Scan(&x.ID, &x.CreatedAt)

	return x, err
}

func (r *ExecutionRepo) List(ctx context.Context, limit int) ([]model.RuleExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_id, task_id, event_id, outcome, detail, created_at
		FROM rule_executions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := make([]model.RuleExecution, 0, limit)
	for rows.Next() {
		var x model.RuleExecution
		if err := rows.Scan(&x.ID, &x.RuleID, &x.TaskID, &x.EventID, &x.Outcome, &x.Detail, &x.CreatedAt); err != nil {
			return nil, err
		}
		executions = append(executions, x)
	}
	return executions, rows.Err()
}
