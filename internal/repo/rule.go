package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
)

// RuleRepo — каталог правил. Ядро только читает, CRUD правил живет в админке.
type RuleRepo struct {
	pool *pgxpool.Pool
}

func NewRuleRepo(pool *pgxpool.Pool) *RuleRepo {
	return &RuleRepo{
		pool: pool,
	}
}

// MatchingRules — активные правила по проекту, типу ресурса и целевому статусу.
// Фильтр по типу задачи: не задан у правила — подходит любой тип.
// ORDER BY id для детерминированного порядка применения.
func (r *RuleRepo) MatchingRules(ctx context.Context, projectID int64, resourceType string, taskTypeID *int64, toState model.Status) ([]model.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workflow_id, project_id, goal, resource_type, task_type_id, to_state, active, created_at
		FROM rules
		WHERE active
		  AND project_id = $1
		  AND resource_type = $2
		  AND (task_type_id IS NULL OR task_type_id = $3)
		  AND to_state = $4
		ORDER BY id
	`, projectID, resourceType, taskTypeID, string(toState))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		if err := rows.Scan(&rule.ID, &rule.WorkflowID, &rule.ProjectID, &rule.Goal, &rule.ResourceType,
			&rule.TaskTypeID, &rule.ToState, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *RuleRepo) TemplatesForRule(ctx context.Context, ruleID int64) ([]model.RuleTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rt.rule_id, rt.template_id, rt.execution_order, t.title, t.description, t.priority
		FROM rule_templates rt
		JOIN task_templates t ON t.id = rt.template_id
		WHERE rt.rule_id = $1
		ORDER BY rt.execution_order
	`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []model.RuleTemplate
	for rows.Next() {
		var tpl model.RuleTemplate
		if err := rows.Scan(&tpl.RuleID, &tpl.TemplateID, &tpl.ExecutionOrder, &tpl.Title, &tpl.Description, &tpl.Priority); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}
