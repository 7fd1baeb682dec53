package tests

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/repo"
	"github.com/BuzzLyutic/taskboard-api/internal/rules"
	"github.com/BuzzLyutic/taskboard-api/internal/service"
)

// SetupTestDB создает тестовую БД с помощью testcontainers
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	// Находим путь к миграциям
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filename))
	migrationsPath := filepath.Join(projectRoot, "migrations")

	// Создаем PostgreSQL контейнер
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(filepath.Join(migrationsPath, "001_init.up.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// NewLifecycle собирает полный стек ядра поверх пула соединений
func NewLifecycle(t *testing.T, pool *pgxpool.Pool) *service.LifecycleService {
	t.Helper()

	logger := zap.NewNop()
	taskRepo := repo.NewTaskRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	ruleRepo := repo.NewRuleRepo(pool)
	execRepo := repo.NewExecutionRepo(pool)

	metrics := rules.NewMetrics(prometheus.NewRegistry())
	materializer := rules.NewMaterializer(taskRepo, ruleRepo, logger)
	engine := rules.NewEngine(ruleRepo, execRepo, materializer, metrics, logger)

	return service.NewLifecycleService(taskRepo, eventRepo, execRepo, engine, logger)
}

// TruncateTables очищает все таблицы кроме справочника типов
func TruncateTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		TRUNCATE tasks, task_events, rule_executions, rule_templates, task_templates, rules, idempotency_keys
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SeedTasks создает тестовые задачи в пуле
func SeedTasks(t *testing.T, pool *pgxpool.Pool, count int) []int64 {
	t.Helper()
	ctx := context.Background()

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO tasks (title, priority, status)
			VALUES ($1, $2, $3)
			RETURNING id
		`, fmt.Sprintf("Task %d", i+1), (i%10)+1, "available").Scan(&id)

		if err != nil {
			t.Fatalf("Failed to seed task: %v", err)
		}
		ids = append(ids, id)
	}

	return ids
}

// TemplateSpec — шаблон для SeedRule
type TemplateSpec struct {
	Title    string
	Priority int
}

// SeedRule создает активное правило с шаблонами в заданном порядке
func SeedRule(t *testing.T, pool *pgxpool.Pool, toState string, taskTypeID *int64, templates []TemplateSpec) int64 {
	t.Helper()
	ctx := context.Background()

	var ruleID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO rules (goal, resource_type, task_type_id, to_state, active)
		VALUES ($1, 'task', $2, $3, true)
		RETURNING id
	`, fmt.Sprintf("rule for %s", toState), taskTypeID, toState).Scan(&ruleID)
	if err != nil {
		t.Fatalf("Failed to seed rule: %v", err)
	}

	for i, tpl := range templates {
		var templateID int64
		err := pool.QueryRow(ctx, `
			INSERT INTO task_templates (title, priority)
			VALUES ($1, $2)
			RETURNING id
		`, tpl.Title, tpl.Priority).Scan(&templateID)
		if err != nil {
			t.Fatalf("Failed to seed template: %v", err)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO rule_templates (rule_id, template_id, execution_order)
			VALUES ($1, $2, $3)
		`, ruleID, templateID, i+1)
		if err != nil {
			t.Fatalf("Failed to link template: %v", err)
		}
	}

	return ruleID
}

// WaitForCondition ждет выполнения условия с таймаутом
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
