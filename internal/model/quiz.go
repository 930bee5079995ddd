package model

import (
	"time"
)

// Quiz is a complete quiz definition including its answer key.
type Quiz struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	CreatedBy        string     `json:"created_by"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Questions        []Question `json:"questions"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// FindQuestion looks up a question by its string id.
func (q *Quiz) FindQuestion(id string) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID.String() == id {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// Available reports whether the quiz can be attempted at t.
func (q *Quiz) Available(t time.Time) bool {
	if q.StartDate != nil && t.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && t.After(*q.EndDate) {
		return false
	}
	return true
}

// Duration returns the attempt time limit, falling back to def when unset.
func (q *Quiz) Duration(def time.Duration) time.Duration {
	if q.TimeLimitMinutes <= 0 {
		return def
	}
	return time.Duration(q.TimeLimitMinutes) * time.Minute
}

// QuizSummary is a list row for quiz management views.
type QuizSummary struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	CreatedBy        string     `json:"created_by"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	QuestionsCount   int        `json:"questions_count"`
	CreatedAt        time.Time  `json:"created_at"`
}

// QuizPaper is the learner-facing quiz with the answer key stripped.
type QuizPaper struct {
	QuizID           int64           `json:"quiz_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	TimeLimitMinutes int             `json:"time_limit_minutes"`
	Questions        []PaperQuestion `json:"questions"`
}

// Paper builds the learner-facing view of the quiz.
func (q *Quiz) Paper() QuizPaper {
	questions := make([]PaperQuestion, len(q.Questions))
	for i, qq := range q.Questions {
		opts := make([]string, len(qq.Options))
		for j, o := range qq.Options {
			opts[j] = o.OptionText
		}
		questions[i] = PaperQuestion{
			ID:           qq.ID,
			QuestionText: qq.QuestionText,
			Type:         qq.Type,
			Options:      opts,
			OrderNum:     qq.OrderNum,
		}
	}
	return QuizPaper{
		QuizID:           q.ID,
		Title:            q.Title,
		Description:      q.Description,
		TimeLimitMinutes: q.TimeLimitMinutes,
		Questions:        questions,
	}
}

// ─── Requests ───────────────────────────────────────────────────────

// CreateQuizRequest is the payload for creating a quiz with its questions.
type CreateQuizRequest struct {
	CreatedBy        string                  `json:"created_by" binding:"required,max=255"`
	Title            string                  `json:"title" binding:"required,min=1,max=255"`
	Description      string                  `json:"description" binding:"max=2000"`
	StartDate        *time.Time              `json:"start_date" binding:"omitempty"`
	EndDate          *time.Time              `json:"end_date" binding:"omitempty"`
	TimeLimitMinutes int                     `json:"time_limit_minutes" binding:"min=0,max=480"`
	Questions        []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// UpdateQuizRequest updates quiz metadata. Questions are immutable once created.
type UpdateQuizRequest struct {
	Title            string     `json:"title" binding:"omitempty,min=1,max=255"`
	Description      *string    `json:"description" binding:"omitempty,max=2000"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" binding:"omitempty,min=0,max=480"`
	StartDate        *time.Time `json:"start_date" binding:"omitempty"`
	EndDate          *time.Time `json:"end_date" binding:"omitempty"`
}
