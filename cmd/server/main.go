package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/database"
	"github.com/quizarena/quizarena-backend/internal/handler"
	"github.com/quizarena/quizarena-backend/internal/logger"
	"github.com/quizarena/quizarena-backend/internal/middleware"
	"github.com/quizarena/quizarena-backend/internal/repository"
	"github.com/quizarena/quizarena-backend/internal/router"
	"github.com/quizarena/quizarena-backend/internal/service"
	"github.com/quizarena/quizarena-backend/internal/validator"
	"github.com/quizarena/quizarena-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting QuizArena Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	quizRepo := repository.NewQuizRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	quizService := service.NewQuizService(quizRepo, rdb, cfg, log)
	resultQueue := service.NewResultQueue(rdb)
	resultService := service.NewResultService(resultRepo, quizService, quizRepo, resultQueue, log)
	tokenService := service.NewAttemptTokenService(cfg)
	attemptService := service.NewAttemptService(quizService, tokenService, resultQueue, rdb, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Quiz:    handler.NewQuizHandler(quizService, log),
		Result:  handler.NewResultHandler(resultService, log),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		WS:      handler.NewWSHandler(attemptService, cfg.CountdownTick, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
	expiryWorker := worker.NewExpiryWorker(attemptService, cfg.ExpirySweepInterval, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		resultWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		expiryWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)
	r := router.SetupRouter(tokenService, limiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; the result worker drains its queue first.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Workers did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
