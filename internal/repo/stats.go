package repo

import (
	"context"
)

// Stats — сводка для внешнего слоя наблюдаемости
type Stats struct {
	ByStatus      map[string]int `json:"by_status"`
	RuleOutcomes  map[string]int `json:"rule_outcomes"`
	AvgProcessing float64        `json:"avg_processing_seconds"`
	TotalTasks    int            `json:"total_tasks"`
}

func (r *TaskRepo) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByStatus:     make(map[string]int),
		RuleOutcomes: make(map[string]int),
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.TotalTasks += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	outcomes, err := r.pool.Query(ctx, `SELECT outcome, COUNT(*) FROM rule_executions GROUP BY outcome`)
	if err != nil {
		return stats, err
	}
	defer outcomes.Close()

	for outcomes.Next() {
		var outcome string
		var count int
		if err := outcomes.Scan(&outcome, &count); err != nil {
			return stats, err
		}
		stats.RuleOutcomes[outcome] = count
	}
	if err := outcomes.Err(); err != nil {
		return stats, err
	}

	var avg *float64
	err = r.pool.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM completed_at - claimed_at))
		FROM tasks
		WHERE status = 'completed' AND claimed_at IS NOT NULL
	`).Scan(&avg)
	if err != nil {
		return stats, err
	}
	if avg != nil {
		stats.AvgProcessing = *avg
	}

	return stats, nil
}
