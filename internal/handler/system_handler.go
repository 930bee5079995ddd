package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler reports liveness and runtime statistics.
type SystemHandler struct {
	db        Pinger
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// 200 when PostgreSQL and Redis answer, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("PostgreSQL health check failed")
		checks["postgres"] = "down"
		healthy = false
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		checks["redis"] = "down"
		healthy = false
	}

	if !healthy {
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrInternal, gin.H{"status": "degraded", "checks": checks})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

type systemStats struct {
	Uptime       string `json:"uptime"`
	Goroutines   int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	NumGC        uint32 `json:"num_gc"`
	GoVersion    string `json:"go_version"`
	QueueResults int64  `json:"queue_results"`
	OpenAttempts int64  `json:"open_attempts"`
}

// Stats godoc
// GET /api/v1/system/stats
// Runtime figures plus the result queue depth and open attempt count.
func (h *SystemHandler) Stats(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := systemStats{
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
		GoVersion:  runtime.Version(),
	}

	ctx := c.Request.Context()
	pipe := h.rdb.Pipeline()
	queueCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
	openCmd := pipe.ZCard(ctx, config.CacheKey.AttemptDeadlinesKey())
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Queue stats unavailable")
	} else {
		stats.QueueResults = queueCmd.Val()
		stats.OpenAttempts = openCmd.Val()
	}

	response.Success(c, http.StatusOK, stats)
}
