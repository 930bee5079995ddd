package model

import "github.com/google/uuid"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "multiple-choice"
	QuestionTypeMultiSelect  QuestionType = "multiple-select"
	QuestionTypeTrueFalse    QuestionType = "true-false"
	QuestionTypeFreeText     QuestionType = "fill-in-the-blank"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultiSelect, QuestionTypeTrueFalse, QuestionTypeFreeText:
		return true
	}
	return false
}

// HasOptions reports whether questions of this type carry selectable options.
func (t QuestionType) HasOptions() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultiSelect || t == QuestionTypeTrueFalse
}

// Question is a single quiz question. CorrectAnswer is nil for multi-select,
// whose key is the set of options flagged IsCorrect.
type Question struct {
	ID            uuid.UUID    `json:"question_id"`
	QuestionText  string       `json:"question_text"`
	Type          QuestionType `json:"type"`
	Options       []Option     `json:"options"`
	CorrectAnswer *string      `json:"correct_answer"`
	OrderNum      int          `json:"order_num"`
}

// Option is a selectable answer for choice-based questions.
type Option struct {
	OptionText string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
}

// PaperQuestion is a question without correct-answer data.
type PaperQuestion struct {
	ID           uuid.UUID    `json:"question_id"`
	QuestionText string       `json:"question_text"`
	Type         QuestionType `json:"type"`
	Options      []string     `json:"options"`
	OrderNum     int          `json:"order_num"`
}

// ─── Requests ───────────────────────────────────────────────────────

// CreateQuestionRequest is a single question inside CreateQuizRequest.
type CreateQuestionRequest struct {
	QuestionText  string                `json:"question_text" binding:"required,min=1,max=2000"`
	Type          string                `json:"type" binding:"required,oneof=multiple-choice multiple-select true-false fill-in-the-blank"`
	CorrectAnswer *string               `json:"correct_answer"`
	Options       []CreateOptionRequest `json:"options" binding:"dive"`
}

// CreateOptionRequest is a single option inside CreateQuestionRequest.
type CreateOptionRequest struct {
	OptionText string `json:"option_text" binding:"required,max=500"`
	IsCorrect  bool   `json:"is_correct"`
}
