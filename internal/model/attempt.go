package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptMeta is the Redis-held state of a server-graded attempt.
type AttemptMeta struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	QuizID      int64     `json:"quiz_id"`
	LearnerID   string    `json:"learner_id"`
	LearnerName string    `json:"learner_name"`
	StartedAt   time.Time `json:"started_at"`
	Deadline    time.Time `json:"deadline"`
}

// AttemptState is returned when a learner resumes an attempt.
type AttemptState struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	QuizID           int64               `json:"quiz_id"`
	Deadline         time.Time           `json:"deadline"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Answers          map[string][]string `json:"answers"`
	Submitted        bool                `json:"submitted"`
	Score            *int                `json:"score,omitempty"`
	TotalQuestions   int                 `json:"total_questions"`
}

// AttemptStarted is returned when an attempt begins.
type AttemptStarted struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Token     string    `json:"token"`
	Deadline  time.Time `json:"deadline"`
	Paper     QuizPaper `json:"paper"`
}

// AttemptOutcome is the graded result of an attempt.
type AttemptOutcome struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Trigger        Trigger   `json:"trigger"`
}

// ─── Requests ───────────────────────────────────────────────────────

// StartAttemptRequest identifies the learner starting an attempt.
type StartAttemptRequest struct {
	LearnerID   string `json:"learner_id" binding:"required,max=255"`
	LearnerName string `json:"learner_name" binding:"required,max=255"`
}

// SaveAnswerRequest replaces the stored values for one question.
type SaveAnswerRequest struct {
	QuestionID string   `json:"question_id" binding:"required,uuid"`
	Values     []string `json:"values" binding:"max=50"`
}
