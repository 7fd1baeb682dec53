package rules

import (
	"context"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
)

// Materializer создает задачи из шаблонов сработавшего правила
type Materializer struct {
	tasks   repo.TaskRepository
	catalog repo.RuleCatalog
	logger  *zap.Logger
}

func NewMaterializer(tasks repo.TaskRepository, catalog repo.RuleCatalog, logger *zap.Logger) *Materializer {
	return &Materializer{
		tasks:   tasks,
		catalog: catalog,
		logger:  logger,
	}
}

// MaterializeResult — что удалось создать и какие шаблоны не прошли
type MaterializeResult struct {
	CreatedIDs        []int64
	FailedTemplateIDs []int64
}

// Materialize — по одной задаче на шаблон, в порядке execution_order.
// Ошибка одного шаблона не откатывает уже созданные задачи.
func (m *Materializer) Materialize(ctx context.Context, rule model.Rule, trigger model.Task) (MaterializeResult, error) {
	var result MaterializeResult

	templates, err := m.catalog.TemplatesForRule(ctx, rule.ID)
	if err != nil {
		return result, err
	}

	for _, tpl := range templates {
		ruleID := rule.ID
		created, err := m.tasks.Create(ctx, model.Task{
			OrgID:             trigger.OrgID,
			ProjectID:         trigger.ProjectID,
			Title:             tpl.Title,
			Description:       tpl.Description,
			Priority:          tpl.Priority,
			CardID:            trigger.CardID,
			CreatedFromRuleID: &ruleID,
		})
		if err != nil {
			m.logger.Error("template materialization failed",
				zap.Int64("rule_id", rule.ID),
				zap.Int64("template_id", tpl.TemplateID),
				zap.Error(err),
			)
			result.FailedTemplateIDs = append(result.FailedTemplateIDs, tpl.TemplateID)
			continue
		}
		result.CreatedIDs = append(result.CreatedIDs, created.ID)
	}

	return result, nil
}
