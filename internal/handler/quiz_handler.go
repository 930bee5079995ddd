package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
	"github.com/quizarena/quizarena-backend/internal/validator"
)

// QuizHandler handles quiz authoring and retrieval endpoints.
type QuizHandler struct {
	quizService *service.QuizService
	log         zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
		log:         log.With().Str("component", "quiz_handler").Logger(),
	}
}

// ListQuizzes godoc
// GET /api/v1/quizzes?created_by=&page=&per_page=
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	quizzes, pagination, err := h.quizService.List(c.Request.Context(), c.Query("created_by"), page, perPage)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// CreateQuiz godoc
// POST /api/v1/quizzes
// Creates a quiz together with its questions.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), &req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// GetQuiz godoc
// GET /api/v1/quizzes/:id
// Returns the full definition, answer key included. Learner clients that
// grade locally depend on it.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id, ok := parseQuizID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// GetQuizPaper godoc
// GET /api/v1/quizzes/:id/paper
// Returns the quiz without its answer key.
func (h *QuizHandler) GetQuizPaper(c *gin.Context) {
	id, ok := parseQuizID(c)
	if !ok {
		return
	}

	paper, err := h.quizService.Paper(c.Request.Context(), id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// UpdateQuiz godoc
// PUT /api/v1/quizzes/:id
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id, ok := parseQuizID(c)
	if !ok {
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuiz godoc
// DELETE /api/v1/quizzes/:id
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id, ok := parseQuizID(c)
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), id); err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Quiz deleted"})
}
