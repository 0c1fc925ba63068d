package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskvault/internal/auth"
	"taskvault/internal/cache"
	"taskvault/internal/config"
	"taskvault/internal/controller"
	"taskvault/internal/database"
	"taskvault/internal/queue"
	"taskvault/internal/repository"
	"taskvault/internal/routes"
	"taskvault/internal/service"
	"taskvault/internal/worker"
	"taskvault/pkg/logger"
)

func main() {
	loadEnvFile(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	if cfg.JWTSecret == "" {
		logger.Error(ctx, "JWT_SECRET is not set; refusing to start")
		os.Exit(1)
	}

	db := database.InitDB(ctx)
	if db == nil {
		logger.Error(ctx, "Database not available; exiting")
		os.Exit(1)
	}
	if err := database.MigrateOrCreateSchema(ctx); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}

	idx := cache.NewRedisIndex(ctx)
	go idx.Run(ctx)

	publisher := queue.NewPublisher(ctx)
	defer publisher.Close()
	queue.EnsureTopic(ctx)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	taskSvc := service.NewTaskService(repository.NewTaskRepo(db), idx, publisher)
	authSvc := service.NewAuthService(repository.NewUserRepo(db), issuer, cfg.BcryptCost)

	// Audit worker consumes task events into task_events
	go worker.Run(ctx, repository.NewEventRepo(db))

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(controller.NewAuthController(authSvc), controller.NewTaskController(taskSvc), issuer, idx),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Server shutdown error", "error", err)
	}
	logger.Info(context.Background(), "Server stopped")
}

// loadEnvFile reads a .env file and sets env vars (only if not already set).
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = strings.Trim(val, `"`)
		} else if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
			val = strings.Trim(val, "'")
		}
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
