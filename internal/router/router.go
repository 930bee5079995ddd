package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/handler"
	"github.com/quizarena/quizarena-backend/internal/middleware"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
)

// quizListMaxAge is how long shared caches may hold quiz listings.
const quizListMaxAge = 30

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz    *handler.QuizHandler
	Result  *handler.ResultHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.AttemptTokenService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log and every envelope carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(response.RequestLogger(log))

	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality: middleware.DefaultBrotliConfig.Quality,
		Skipper: middleware.SkipPathPrefix("/ws/"),
	}))

	router.GET("/health", handlers.System.Health)

	requireAttempt := middleware.RequireAttemptToken(tokens)
	limited := limiter.Middleware()

	api := router.Group("/api/v1")

	// ─── 1. Quizzes ────────────────────────────────────────────────────
	quizzes := api.Group("/quizzes")
	{
		quizzes.GET("", middleware.CacheControl(quizListMaxAge), handlers.Quiz.ListQuizzes)
		quizzes.POST("", limited, handlers.Quiz.CreateQuiz)
		quizzes.GET("/:id", middleware.NoStore(), handlers.Quiz.GetQuiz)
		quizzes.GET("/:id/paper", handlers.Quiz.GetQuizPaper)
		quizzes.PUT("/:id", limited, handlers.Quiz.UpdateQuiz)
		quizzes.DELETE("/:id", limited, handlers.Quiz.DeleteQuiz)
		quizzes.POST("/:id/attempts", limited, handlers.Attempt.StartAttempt)
	}

	// ─── 2. Results, Leaderboard, Analytics ────────────────────────────
	api.POST("/results", limited, handlers.Result.SubmitResult)
	api.GET("/results", handlers.Result.ListResults)
	api.GET("/learners/:learner_id/results", handlers.Result.LearnerResults)
	api.GET("/leaderboard", handlers.Result.Leaderboard)

	analytics := api.Group("/analytics")
	{
		analytics.GET("/quiz-performance", handlers.Result.QuizPerformance)
		analytics.GET("/attempts", handlers.Result.Attempts)
		analytics.GET("/completion", handlers.Result.Completion)
		analytics.GET("/dashboard", handlers.Result.Dashboard)
	}

	// ─── 3. Server-graded Attempts (attempt token) ─────────────────────
	attempts := api.Group("/attempts/:attempt_id")
	attempts.Use(middleware.NoStore(), requireAttempt)
	{
		attempts.GET("", handlers.Attempt.GetAttempt)
		attempts.PUT("/answers", limited, handlers.Attempt.SaveAnswer)
		attempts.POST("/submit", handlers.Attempt.SubmitAttempt)
	}

	// ─── 4. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/attempts/:attempt_id/stream", requireAttempt, handlers.WS.AttemptStream)
	}

	// ─── 5. System ─────────────────────────────────────────────────────
	api.GET("/system/stats", handlers.System.Stats)

	return router
}
