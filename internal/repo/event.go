package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
)

// EventRepo — журнал переходов. Только вставка и чтение, записи не меняются.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{
		pool: pool,
	}
}

func (r *EventRepo) Append(ctx context.Context, e model.TaskEvent) (model.TaskEvent, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO task_events (id, task_id, org_id, project_id, actor_id, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, e.ID, e.TaskID, e.OrgID, e.ProjectID, e.ActorID, string(e.Type), e.CreatedAt).Scan(&e.CreatedAt)

	return e, err
}

func (r *EventRepo) ListByTask(ctx context.Context, taskID int64, limit int) ([]model.TaskEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, org_id, project_id, actor_id, event_type, created_at
		FROM task_events
		WHERE task_id = $1
		ORDER BY created_at, id
		LIMIT $2
	`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.TaskEvent, 0, limit)
	for rows.Next() {
		var e model.TaskEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.OrgID, &e.ProjectID, &e.ActorID, &e.Type, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
