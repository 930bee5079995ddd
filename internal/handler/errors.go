package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/attempt"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
)

// errorStatus maps a domain error to an HTTP status and error code.
// Unknown errors are internal.
func errorStatus(err error) (int, response.ErrCode) {
	var qe *service.QuestionError
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		return http.StatusNotFound, response.ErrQuizNotFound
	case errors.Is(err, service.ErrQuizNotAvailable):
		return http.StatusForbidden, response.ErrQuizNotAvailable
	case errors.As(err, &qe), errors.Is(err, service.ErrInvalidQuestion):
		return http.StatusBadRequest, response.ErrInvalidQuestion
	case errors.Is(err, service.ErrInvalidDateRange):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrScoreOutOfRange):
		return http.StatusBadRequest, response.ErrScoreOutOfRange
	case errors.Is(err, service.ErrQuestionCountMismatch):
		return http.StatusBadRequest, response.ErrQuestionCountDiff
	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrAttemptExpired):
		return http.StatusConflict, response.ErrAttemptExpired
	case errors.Is(err, attempt.ErrUnknownQuestion):
		return http.StatusBadRequest, response.ErrUnknownQuestion
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the mapped error response. Internal errors are logged since
// the client only sees a generic message.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}

	var qe *service.QuestionError
	if errors.As(err, &qe) {
		response.FailWithFields(c, status, code, map[string]string{
			"questions[" + strconv.Itoa(qe.Index) + "]": qe.Reason,
		})
		return
	}
	if errors.Is(err, service.ErrInvalidDateRange) {
		response.FailWithFields(c, status, code, map[string]string{"end_date": err.Error()})
		return
	}
	response.Fail(c, status, code)
}

// parseQuizID reads the :id route parameter.
func parseQuizID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
