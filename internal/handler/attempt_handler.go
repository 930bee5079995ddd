package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/attempt"
	"github.com/quizarena/quizarena-backend/internal/middleware"
	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
	"github.com/quizarena/quizarena-backend/internal/validator"
)

// AttemptHandler handles server-graded attempts over REST.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/quizzes/:id/attempts
// Opens an attempt and returns the paper, deadline and attempt token.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID, ok := parseQuizID(c)
	if !ok {
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	started, err := h.attemptService.Start(c.Request.Context(), quizID, &req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": started})
}

// SaveAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), claims.AttemptID, &req); err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved", "question_id": req.QuestionID})
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
// Returns the remaining time, saved answers and, once submitted, the score.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), claims.AttemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": state})
}

// SubmitAttempt godoc
// POST /api/v1/attempts/:attempt_id/submit
// Grades the attempt. A repeated submit returns 409 with the stored outcome.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	outcome, err := h.attemptService.Submit(c.Request.Context(), claims.AttemptID, model.TriggerManual)
	if err != nil {
		if errors.Is(err, attempt.ErrAlreadySubmitted) && outcome != nil {
			response.FailWithData(c, http.StatusConflict, response.ErrAlreadySubmitted, gin.H{"outcome": outcome})
			return
		}
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"outcome": outcome})
}
