package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/config"
	"github.com/BuzzLyutic/taskboard-api/internal/handler"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
	"github.com/BuzzLyutic/taskboard-api/internal/rules"
	"github.com/BuzzLyutic/taskboard-api/internal/service"
	"github.com/BuzzLyutic/taskboard-api/internal/worker"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем БД
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to Database.")
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal("Failed to ping the Database.")
	}
	logger.Info("Successfully connected to the Database!")

	// Репозитории и ядро жизненного цикла
	taskRepo := repo.NewTaskRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	ruleRepo := repo.NewRuleRepo(pool)
	execRepo := repo.NewExecutionRepo(pool)

	metrics := rules.NewMetrics(prometheus.DefaultRegisterer)
	materializer := rules.NewMaterializer(taskRepo, ruleRepo, logger)
	engine := rules.NewEngine(ruleRepo, execRepo, materializer, metrics, logger)
	lifecycle := service.NewLifecycleService(taskRepo, eventRepo, execRepo, engine, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})
	r.Handle("/metrics", promhttp.Handler())

	taskHandler := handler.NewTaskHandler(lifecycle, logger)
	taskHandler.Register(r)

	// Симуляция исполнителей поверх публичного CAS-пути
	ctx, stopWorkers := context.WithCancel(context.Background())
	var workerPool *worker.Pool
	if cfg.WorkerCount > 0 {
		workerPool = worker.NewPool(lifecycle, logger, cfg.WorkerCount)
		workerPool.Start(ctx)
	}

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started at ", zap.String("port", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: ", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	stopWorkers()
	if workerPool != nil {
		workerPool.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Shutdown error: ", zap.Error(err))
	}
	logger.Info("Server stopped succsessfully!")
}
