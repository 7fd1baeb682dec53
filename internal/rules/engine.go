package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
)

// SuppressedAlreadyExecuted — причина подавления при повторной доставке события
const SuppressedAlreadyExecuted = "already-executed"

// TaskMaterializer создает задачи по шаблонам правила
type TaskMaterializer interface {
	Materialize(ctx context.Context, rule model.Rule, trigger model.Task) (MaterializeResult, error)
}

// Engine оценивает правила после зафиксированного перехода.
// Переход уже состоялся, поэтому любая ошибка здесь логируется и
// записывается в аудит, но никогда не доходит до вызывающего.
type Engine struct {
	catalog      repo.RuleCatalog
	executions   repo.ExecutionRepository
	materializer TaskMaterializer
	metrics      *Metrics
	logger       *zap.Logger
}

func NewEngine(catalog repo.RuleCatalog, executions repo.ExecutionRepository, materializer TaskMaterializer, metrics *Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		catalog:      catalog,
		executions:   executions,
		materializer: materializer,
		metrics:      metrics,
		logger:       logger,
	}
}

// Summary — итоги одного прогона движка по событию
type Summary struct {
	Evaluated        int     `json:"evaluated"`
	Applied          int     `json:"applied"`
	PartiallyApplied int     `json:"partially_applied"`
	Suppressed       int     `json:"suppressed"`
	Errored          int     `json:"errored"`
	CreatedTaskIDs   []int64 `json:"created_task_ids,omitempty"`
}

func (e *Engine) OnTransition(ctx context.Context, ev model.TaskEvent, task model.Task) Summary {
	var sum Summary

	matched, err := e.catalog.MatchingRules(ctx, task.ProjectID, model.ResourceTask, task.TypeID, task.Status)
	if err != nil {
		e.logger.Error("rule lookup failed",
			zap.String("event_id", ev.ID),
			zap.Int64("task_id", task.ID),
			zap.Error(err),
		)
		e.metrics.Outcomes.WithLabelValues(string(model.OutcomeErrored)).Inc()
		sum.Errored++
		return sum
	}

	for _, rule := range matched {
		sum.Evaluated++
		e.metrics.Evaluated.Inc()

		done, err := e.executions.AppliedExists(ctx, rule.ID, ev.ID)
		if err != nil {
			e.recordOutcome(ctx, &sum, rule, task, ev, model.OutcomeErrored, err.Error())
			continue
		}
		if done {
			e.recordOutcome(ctx, &sum, rule, task, ev, model.OutcomeSuppressed, SuppressedAlreadyExecuted)
			continue
		}

		result, err := e.materializer.Materialize(ctx, rule, task)
		if err != nil {
			e.recordOutcome(ctx, &sum, rule, task, ev, model.OutcomeErrored, err.Error())
			continue
		}

		sum.CreatedTaskIDs = append(sum.CreatedTaskIDs, result.CreatedIDs...)

		if len(result.FailedTemplateIDs) > 0 {
			detail := "failed templates: " + joinIDs(result.FailedTemplateIDs)
			e.recordOutcome(ctx, &sum, rule, task, ev, model.OutcomePartiallyApplied, detail)
			continue
		}

		detail := fmt.Sprintf("created %d task(s)", len(result.CreatedIDs))
		e.recordOutcome(ctx, &sum, rule, task, ev, model.OutcomeApplied, detail)
	}

	return sum
}

func (e *Engine) recordOutcome(ctx context.Context, sum *Summary, rule model.Rule, task model.Task, ev model.TaskEvent, outcome model.Outcome, detail string) {
	switch outcome {
	case model.OutcomeApplied:
		sum.Applied++
	case model.OutcomePartiallyApplied:
		sum.PartiallyApplied++
	case model.OutcomeSuppressed:
		sum.Suppressed++
	case model.OutcomeErrored:
		sum.Errored++
		e.logger.Error("rule evaluation failed",
			zap.Int64("rule_id", rule.ID),
			zap.Int64("task_id", task.ID),
			zap.String("event_id", ev.ID),
			zap.String("detail", detail),
		)
	}
	e.metrics.Outcomes.WithLabelValues(string(outcome)).Inc()

	_, err := e.executions.Record(ctx, model.RuleExecution{
		RuleID:  rule.ID,
		TaskID:  task.ID,
		EventID: ev.ID,
		Outcome: outcome,
		Detail:  detail,
	})
	if err != nil {
		e.logger.Error("failed to record rule execution",
			zap.Int64("rule_id", rule.ID),
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
