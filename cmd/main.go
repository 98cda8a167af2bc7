package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivolkova/luthier/internal/config"
	"github.com/ivolkova/luthier/internal/database"
	"github.com/ivolkova/luthier/internal/job"
	"github.com/ivolkova/luthier/internal/memq"
	"github.com/ivolkova/luthier/internal/queue"
	"github.com/ivolkova/luthier/internal/redis"
	"github.com/ivolkova/luthier/internal/repository"
	"github.com/ivolkova/luthier/internal/server"
	"github.com/ivolkova/luthier/internal/storage"
	httpapi "github.com/ivolkova/luthier/internal/transport/http"
	"github.com/ivolkova/luthier/internal/workers"
)

func main() {
	cfg := config.Load()
	slog.Info("starting luthier", "addr", cfg.HTTPAddr, "workers", cfg.QueueWorkers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Construct the storage backend up front so a misconfigured S3 setup
	// fails at boot, not on the first upload.
	provider := storage.NewProvider()
	storageService, err := provider.Storage(ctx)
	if err != nil {
		slog.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "state", provider.State().String())

	redisService, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to Redis", "err", err)
		os.Exit(1)
	}
	defer redisService.Close()

	repo := repository.New(db)

	var q memq.JobQueue
	switch cfg.QueueDriver {
	case "redis":
		rq, err := queue.NewRedisQueue(redisService.Client(), queue.DefaultConfig())
		if err != nil {
			slog.Error("failed to initialize redis queue", "err", err)
			os.Exit(1)
		}
		q = rq
		slog.Info("using redis streams job queue")
	default:
		q = memq.NewMemoryQueue(cfg.QueueBuf, cfg.JobMaxDuration)
		slog.Info("using in-memory job queue", "buffer", cfg.QueueBuf)
	}
	defer q.Close()

	attachmentHandler := workers.NewAttachmentHandler(repo, storageService)

	handlers := &httpapi.Handlers{
		Q:       q,
		Repo:    repo,
		Storage: storageService,
		Redis:   redisService,
		Config:  cfg,
	}
	r := server.NewRouter(cfg, handlers)

	q.StartConsumers(ctx, cfg.QueueWorkers, func(ctx context.Context, j *job.Job) error {
		switch j.Type {
		case job.TypeAttachmentProcess:
			return attachmentHandler.HandleAttachmentJob(ctx, j)
		default:
			return fmt.Errorf("unknown job type: %s", j.Type)
		}
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	cancel()
}
