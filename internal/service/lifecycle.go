package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
	"github.com/BuzzLyutic/taskboard-api/internal/rules"
)

var (
	ErrValidation = errors.New("validation error")
)

// TransitionEngine — движок правил, вызываемый после фиксации перехода
type TransitionEngine interface {
	OnTransition(ctx context.Context, ev model.TaskEvent, task model.Task) rules.Summary
}

// LifecycleService — оркестратор жизненного цикла: CAS-мутация, журнал
// событий, затем синхронный прогон движка правил в том же запросе.
type LifecycleService struct {
	tasks      repo.TaskRepository
	events     repo.EventRepository
	executions repo.ExecutionRepository
	engine     TransitionEngine
	logger     *zap.Logger
}

func NewLifecycleService(tasks repo.TaskRepository, events repo.EventRepository, executions repo.ExecutionRepository, engine TransitionEngine, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{
		tasks:      tasks,
		events:     events,
		executions: executions,
		engine:     engine,
		logger:     logger,
	}
}

// TransitionResult отделяет основной результат (строку задачи) от итогов
// побочных эффектов: ошибки после фиксации CAS не превращаются в ошибку запроса.
type TransitionResult struct {
	Task        model.Task     `json:"task"`
	EventLogged bool           `json:"event_logged"`
	Rules       *rules.Summary `json:"rules,omitempty"`
}

func (s *LifecycleService) Create(ctx context.Context, t model.Task, idempKey string) (TransitionResult, error) {
	if err := s.validate(t); err != nil {
		return TransitionResult{}, err
	}

	// Обеспечение идемпотентности - если ключ с ресурсом уже существует, мы не создаем его еще раз
	if idempKey != "" {
		if existingID, err := s.tasks.GetIdempotencyKey(ctx, idempKey); err == nil {
			existing, err := s.tasks.Get(ctx, existingID)
			if err != nil {
				return TransitionResult{}, err
			}
			return TransitionResult{Task: existing, EventLogged: true}, nil
		}
	}

	created, err := s.tasks.Create(ctx, t)
	if err != nil {
		return TransitionResult{}, err
	}

	// Сохранение нового ключа
	if idempKey != "" {
		s.tasks.SaveIdempotencyKey(ctx, idempKey, created.ID)
	}

	return s.afterTransition(ctx, created, created.CreatedBy, model.EventCreated), nil
}

func (s *LifecycleService) Claim(ctx context.Context, id int64, expectedVersion int, actor int64) (TransitionResult, error) {
	task, err := s.tasks.Claim(ctx, id, expectedVersion, actor)
	if err != nil {
		return TransitionResult{}, err
	}
	return s.afterTransition(ctx, task, actor, model.EventClaimed), nil
}

func (s *LifecycleService) Release(ctx context.Context, id int64, expectedVersion int, actor int64) (TransitionResult, error) {
	task, err := s.tasks.Release(ctx, id, expectedVersion, actor)
	if err != nil {
		return TransitionResult{}, err
	}
	return s.afterTransition(ctx, task, actor, model.EventReleased), nil
}

func (s *LifecycleService) Complete(ctx context.Context, id int64, expectedVersion int, actor int64) (TransitionResult, error) {
	task, err := s.tasks.Complete(ctx, id, expectedVersion, actor)
	if err != nil {
		return TransitionResult{}, err
	}
	return s.afterTransition(ctx, task, actor, model.EventCompleted), nil
}

// Update меняет поля вне жизненного цикла, события и правила не трогает
func (s *LifecycleService) Update(ctx context.Context, id int64, expectedVersion int, actor int64, patch model.TaskPatch) (model.Task, error) {
	if err := s.validatePatch(patch); err != nil {
		return model.Task{}, err
	}
	return s.tasks.UpdateClaimed(ctx, id, expectedVersion, actor, patch)
}

func (s *LifecycleService) Get(ctx context.Context, id int64) (model.Task, error) {
	return s.tasks.Get(ctx, id)
}

func (s *LifecycleService) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.tasks.List(ctx, filter, limit)
}

func (s *LifecycleService) GetStats(ctx context.Context) (repo.Stats, error) {
	return s.tasks.GetStats(ctx)
}

func (s *LifecycleService) Events(ctx context.Context, taskID int64, limit int) ([]model.TaskEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.events.ListByTask(ctx, taskID, limit)
}

func (s *LifecycleService) Executions(ctx context.Context, limit int) ([]model.RuleExecution, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.executions.List(ctx, limit)
}

// afterTransition — всё после успешного CAS выполняется best-effort.
// Потеря записи аудита или сбой движка не отменяют уже состоявшийся переход.
func (s *LifecycleService) afterTransition(ctx context.Context, task model.Task, actor int64, kind model.EventType) TransitionResult {
	res := TransitionResult{Task: task, EventLogged: true}

	ev := model.TaskEvent{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		OrgID:     task.OrgID,
		ProjectID: task.ProjectID,
		ActorID:   actor,
		Type:      kind,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.events.Append(ctx, ev); err != nil {
		s.logger.Warn("event append failed, transition stands",
			zap.Int64("task_id", task.ID),
			zap.String("event_type", string(kind)),
			zap.Error(err),
		)
		res.EventLogged = false
	}

	sum := s.engine.OnTransition(ctx, ev, task)
	res.Rules = &sum

	return res
}

func (s *LifecycleService) validate(t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrValidation
	}
	if t.Priority < 1 || t.Priority > 10 {
		return ErrValidation
	}
	return nil
}

func (s *LifecycleService) validatePatch(p model.TaskPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrValidation
	}
	if p.Priority != nil && (*p.Priority < 1 || *p.Priority > 10) {
		return ErrValidation
	}
	return nil
}
