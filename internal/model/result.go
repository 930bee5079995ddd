package model

import (
	"time"

	"github.com/google/uuid"
)

// Trigger records what started a submission cycle.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerTimer  Trigger = "timer"
	// TriggerClient marks scores graded by a learner client and reported as-is.
	TriggerClient Trigger = "client"
)

// Result is a persisted quiz score.
type Result struct {
	ID             int64      `json:"id"`
	QuizID         int64      `json:"quiz_id"`
	QuizTitle      string     `json:"quiz_title"`
	LearnerID      string     `json:"learner_id"`
	LearnerName    string     `json:"learner_name"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	Trigger        Trigger    `json:"trigger"`
	AttemptID      *uuid.UUID `json:"attempt_id,omitempty"`
	DateTaken      time.Time  `json:"date_taken"`
}

// ResultSubmission is a score report waiting to be persisted.
type ResultSubmission struct {
	QuizID         int64      `json:"quiz_id"`
	LearnerID      string     `json:"learner_id"`
	LearnerName    string     `json:"learner_name"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	Trigger        Trigger    `json:"trigger,omitempty"`
	AttemptID      *uuid.UUID `json:"attempt_id,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at"`
}

// ReportResultRequest is a client-graded score as accepted by POST /results.
// Trigger, attempt and time are set by the server.
type ReportResultRequest struct {
	QuizID         int64  `json:"quiz_id" binding:"required,min=1"`
	LearnerID      string `json:"learner_id" binding:"required,max=255"`
	LearnerName    string `json:"learner_name" binding:"max=255"`
	Score          int    `json:"score" binding:"min=0"`
	TotalQuestions int    `json:"total_questions" binding:"required,min=1"`
}
