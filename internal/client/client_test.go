package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
)

func TestFetchQuiz(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quizzes/3", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"quiz":{"id":3,"title":"Capitals","time_limit_minutes":2,
			"questions":[{"question_id":"0b7f6f0e-1d43-4c52-9a43-6f2d1c0e2a11","question_text":"Capital of France?",
			"type":"multiple-choice","options":[{"option_text":"Paris","is_correct":true},{"option_text":"Rome"}],
			"correct_answer":"Paris","order_num":1}]}},"metadata":{"request_id":"r","timestamp":"t"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1", time.Second)
	quiz, err := c.FetchQuiz(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, int64(3), quiz.ID)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, model.QuestionTypeSingleChoice, quiz.Questions[0].Type)
	assert.Equal(t, "Paris", *quiz.Questions[0].CorrectAnswer)
}

func TestFetchQuiz_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"data":null,"error":{"code":"QUIZ_NOT_FOUND","message":"Quiz not found."}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).FetchQuiz(context.Background(), 99)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, response.ErrQuizNotFound, apiErr.Code)
}

func TestFetchQuiz_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).FetchQuiz(context.Background(), 1)
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/results", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":{"status":"queued"}}`))
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).Report(context.Background(), model.ResultSubmission{
		QuizID:         3,
		LearnerID:      "14",
		LearnerName:    "Ada",
		Score:          1,
		TotalQuestions: 2,
		Trigger:        model.TriggerTimer,
		SubmittedAt:    time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), got["quiz_id"])
	assert.Equal(t, float64(1), got["score"])
	assert.NotContains(t, got, "trigger")
	assert.NotContains(t, got, "attempt_id")
	assert.NotContains(t, got, "submitted_at")
}

func TestReport_ServerErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).Report(context.Background(), model.ResultSubmission{QuizID: 1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Message, "upstream down")
}
