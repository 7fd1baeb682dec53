package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

const taskColumns = `id, org_id, project_id, type_id, title, description, priority, status,
	created_by, claimed_by, card_id, created_from_rule_id, version,
	created_at, updated_at, claimed_at, completed_at, pooled_at`

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo { // Конструктор
	return &TaskRepo{
		pool: pool,
	}
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.OrgID, &t.ProjectID, &t.TypeID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.CreatedBy, &t.ClaimedBy, &t.CardID, &t.CreatedFromRuleID, &t.Version,
		&t.CreatedAt, &t.UpdatedAt, &t.ClaimedAt, &t.CompletedAt, &t.PooledAt,
	)
	return t, err
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	created, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (org_id, project_id, type_id, title, description, priority, status, created_by, card_id, created_from_rule_id)
		VALUES ($1, $2, $3, $4, $5, $6, 'available', $7, $8, $9)
		RETURNING `+taskColumns,
		t.OrgID, t.ProjectID, t.TypeID, t.Title, t.Description, t.Priority, t.CreatedBy, t.CardID, t.CreatedFromRuleID,
	))
	return created, r.mapError(err)
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1
	`, id))

	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrorNotFound
	}
	return t, err
}

func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::bigint IS NULL OR project_id = $2)
		ORDER BY priority DESC, pooled_at, id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, filter.Status, filter.ProjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Claim — CAS: забрать задачу может только тот, кто видит актуальную версию.
// Строка сама играет роль замка, никаких мьютексов.
func (r *TaskRepo) Claim(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'claimed', claimed_by = $3, claimed_at = now(), version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'available'
		RETURNING `+taskColumns,
		id, expectedVersion, claimant,
	))

	if errors.Is(err, pgx.ErrNoRows) {
		return t, r.casError(ctx, id)
	}
	return t, err
}

func (r *TaskRepo) Release(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'available', claimed_by = NULL, claimed_at = NULL, pooled_at = now(), version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'claimed' AND claimed_by = $3
		RETURNING `+taskColumns,
		id, expectedVersion, claimant,
	))

	if errors.Is(err, pgx.ErrNoRows) {
		return t, r.casError(ctx, id)
	}
	return t, err
}

// Complete — claimed_by сохраняется для аудита
func (r *TaskRepo) Complete(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'completed', completed_at = now(), version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'claimed' AND claimed_by = $3
		RETURNING `+taskColumns,
		id, expectedVersion, claimant,
	))

	if errors.Is(err, pgx.ErrNoRows) {
		return t, r.casError(ctx, id)
	}
	return t, err
}

func (r *TaskRepo) UpdateClaimed(ctx context.Context, id int64, expectedVersion int, claimant int64, patch model.TaskPatch) (model.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = COALESCE($4, title),
		    description = COALESCE($5, description),
		    priority = COALESCE($6, priority),
		    type_id = COALESCE($7, type_id),
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'claimed' AND claimed_by = $3
		RETURNING `+taskColumns,
		id, expectedVersion, claimant, patch.Title, patch.Description, patch.Priority, patch.TypeID,
	))

	if errors.Is(err, pgx.ErrNoRows) {
		return t, r.casError(ctx, id)
	}
	return t, err
}

// casError — ноль строк при CAS: либо задачи нет, либо предусловие не прошло.
// Какое именно предусловие — не сообщаем, вызывающий перечитывает строку сам.
func (r *TaskRepo) casError(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrorNotFound
	}
	return ErrorConflict
}

func (r *TaskRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, resource_id) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, resourceID)
	return err
}

func (r *TaskRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT resource_id from idempotency_keys WHERE key = $1
	`, key).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrorNotFound
	}
	return id, err
}

func (r *TaskRepo) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrorConflict
		}
	}
	return err
}
