package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
	"github.com/quizarena/quizarena-backend/internal/validator"
)

// ResultHandler handles score reports, result listings, leaderboard and
// analytics.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// SubmitResult godoc
// POST /api/v1/results
// Accepts a client-graded score. Persistence is asynchronous, so the reply is
// 202 Accepted.
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	var req model.ReportResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.resultService.Submit(c.Request.Context(), req); err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"status": "queued"})
}

// ListResults godoc
// GET /api/v1/results?learner_id=
func (h *ResultHandler) ListResults(c *gin.Context) {
	var (
		results []model.Result
		err     error
	)
	if learnerID := c.Query("learner_id"); learnerID != "" {
		results, err = h.resultService.ListByLearner(c.Request.Context(), learnerID)
	} else {
		results, err = h.resultService.ListAll(c.Request.Context())
	}
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// LearnerResults godoc
// GET /api/v1/learners/:learner_id/results
func (h *ResultHandler) LearnerResults(c *gin.Context) {
	results, err := h.resultService.ListByLearner(c.Request.Context(), c.Param("learner_id"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// Leaderboard godoc
// GET /api/v1/leaderboard
func (h *ResultHandler) Leaderboard(c *gin.Context) {
	board, err := h.resultService.Leaderboard(c.Request.Context())
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": board})
}

// ─── Analytics ──────────────────────────────────────────────────────

// QuizPerformance godoc
// GET /api/v1/analytics/quiz-performance?created_by=
func (h *ResultHandler) QuizPerformance(c *gin.Context) {
	perf, err := h.resultService.QuizPerformance(c.Request.Context(), c.Query("created_by"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quizzes": perf})
}

// Attempts godoc
// GET /api/v1/analytics/attempts?created_by=
func (h *ResultHandler) Attempts(c *gin.Context) {
	attempts, err := h.resultService.Attempts(c.Request.Context(), c.Query("created_by"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"learners": attempts})
}

// Completion godoc
// GET /api/v1/analytics/completion?created_by=
func (h *ResultHandler) Completion(c *gin.Context) {
	completion, err := h.resultService.Completion(c.Request.Context(), c.Query("created_by"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"learners": completion})
}

// Dashboard godoc
// GET /api/v1/analytics/dashboard?created_by=
func (h *ResultHandler) Dashboard(c *gin.Context) {
	createdBy := c.Query("created_by")
	if createdBy == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"created_by": "created_by is a required field",
		})
		return
	}

	dashboard, err := h.resultService.Dashboard(c.Request.Context(), createdBy)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"dashboard": dashboard})
}
