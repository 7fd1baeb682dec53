package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/tests"
)

func TestPool_ProcessTasks(t *testing.T) {
	pool, cleanup := tests.SetupTestDB(t)
	defer cleanup()

	logger := zap.NewNop()
	ctx := context.Background()

	tests.TruncateTables(t, pool)
	tests.SeedTasks(t, pool, 5)

	lifecycle := tests.NewLifecycle(t, pool)
	workerPool := NewPool(lifecycle, logger, 2)
	workerPool.Start(ctx)

	// Wait for tasks to be processed
	success := tests.WaitForCondition(t, 30*time.Second, func() bool {
		var completed int
		pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE status = 'completed'").Scan(&completed)
		return completed >= 5
	})

	workerPool.Stop()
	assert.True(t, success, "tasks should be completed")

	// Каждая задача завершена ровно одним воркером
	var doubleClaimed int
	pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks WHERE status = 'completed' AND claimed_by IS NULL").Scan(&doubleClaimed)
	assert.Zero(t, doubleClaimed)

	// Журнал: на каждую задачу ровно claimed + completed
	var claimedEvents, completedEvents int
	pool.QueryRow(ctx, "SELECT COUNT(*) FROM task_events WHERE event_type = 'claimed'").Scan(&claimedEvents)
	pool.QueryRow(ctx, "SELECT COUNT(*) FROM task_events WHERE event_type = 'completed'").Scan(&completedEvents)
	assert.Equal(t, 5, claimedEvents)
	assert.Equal(t, 5, completedEvents)
}

func TestPool_NoDuplicateProcessing(t *testing.T) {
	pool, cleanup := tests.SetupTestDB(t)
	defer cleanup()

	logger := zap.NewNop()
	ctx := context.Background()

	tests.TruncateTables(t, pool)
	tests.SeedTasks(t, pool, 10)

	lifecycle := tests.NewLifecycle(t, pool)
	workerPool := NewPool(lifecycle, logger, 5)
	workerPool.Start(ctx)

	time.Sleep(12 * time.Second)
	workerPool.Stop()

	// Версии растут строго на 2 за цикл claim+complete, двойных выдач нет
	rows, err := pool.Query(ctx, "SELECT status, version FROM tasks")
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var status string
		var version int
		require.NoError(t, rows.Scan(&status, &version))
		switch status {
		case "available":
			assert.Equal(t, 1, version)
		case "claimed":
			assert.Equal(t, 2, version)
		case "completed":
			assert.Equal(t, 3, version)
		}
	}
	require.NoError(t, rows.Err())
}

func TestPool_GracefulShutdown(t *testing.T) {
	pool, cleanup := tests.SetupTestDB(t)
	defer cleanup()

	logger := zap.NewNop()
	ctx := context.Background()

	tests.TruncateTables(t, pool)
	tests.SeedTasks(t, pool, 3)

	lifecycle := tests.NewLifecycle(t, pool)
	workerPool := NewPool(lifecycle, logger, 2)
	workerPool.Start(ctx)

	// Let it start processing
	time.Sleep(1 * time.Second)

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker pool did not stop gracefully within 10 seconds")
	}
}
