package worker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
	"github.com/BuzzLyutic/taskboard-api/internal/service"
)

// workerActorBase — actor_id воркера = base + его номер
const workerActorBase = 1000

// Pool — симуляция исполнителей: каждый воркер забирает задачи из пула
// через обычный CAS-путь сервиса, как это делал бы внешний клиент.
// Проигрыш гонки за задачу — это Conflict, а не ошибка.
type Pool struct {
	service *service.LifecycleService
	logger  *zap.Logger
	count   int
	wg      sync.WaitGroup
	stop    chan struct{}
}

func NewPool(srv *service.LifecycleService, logger *zap.Logger, count int) *Pool {
	return &Pool{
		service: srv,
		logger:  logger,
		count:   count,
		stop:    make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")
	close(p.stop)
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	actor := int64(workerActorBase + id)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.processNext(ctx, id, actor); err != nil {
				p.logger.Error("worker error", zap.Int("worker", id), zap.Error(err))
			}
		}
	}
}

func (p *Pool) processNext(ctx context.Context, workerID int, actor int64) error {
	available := model.StatusAvailable
	candidates, err := p.service.List(ctx, model.TaskFilter{Status: &available}, 5)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		// Забрать задачу; кто-то успел первым — пробуем следующую
		res, err := p.service.Claim(ctx, candidate.ID, candidate.Version, actor)
		if errors.Is(err, repo.ErrorConflict) || errors.Is(err, repo.ErrorNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		task := res.Task
		p.logger.Info("Processing task",
			zap.Int("worker", workerID),
			zap.Int64("task_id", task.ID),
			zap.String("title", task.Title),
		)

		// Эмуляция работы
		processingTime := time.Duration(1+rand.Intn(2)) * time.Second
		select {
		case <-time.After(processingTime):
			completed, err := p.service.Complete(ctx, task.ID, task.Version, actor)
			if err != nil {
				return err
			}
			p.logger.Info("Task completed",
				zap.Int("worker", workerID),
				zap.Int64("task_id", task.ID),
				zap.Duration("took", processingTime),
				zap.Int("version", completed.Task.Version),
			)
		case <-ctx.Done():
			// Отмена — вернуть задачу в пул
			p.service.Release(ctx, task.ID, task.Version, actor)
			return ctx.Err()
		}

		return nil
	}

	return nil
}
