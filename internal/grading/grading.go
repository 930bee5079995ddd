// Package grading scores a learner's answers against a quiz's answer key.
package grading

import (
	"github.com/quizarena/quizarena-backend/internal/model"
)

// Answers maps a question id to the values the learner selected or entered.
type Answers map[string][]string

// Score is the number of correctly answered questions out of the total.
type Score struct {
	Correct int `json:"score"`
	Total   int `json:"total_questions"`
}

// Percent returns the score as a percentage, or 0 for an empty quiz.
func (s Score) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total) * 100
}

// Strategy decides whether a submission for one question is correct.
type Strategy interface {
	Grade(q model.Question, submitted []string) bool
}

var strategies = map[model.QuestionType]Strategy{
	model.QuestionTypeSingleChoice: exactStrategy{},
	model.QuestionTypeTrueFalse:    exactStrategy{},
	model.QuestionTypeFreeText:     exactStrategy{},
	model.QuestionTypeMultiSelect:  setStrategy{},
}

// Evaluate grades every question of quiz. Questions missing from answers count
// as unanswered; answers for ids not in the quiz are ignored.
func Evaluate(quiz *model.Quiz, answers Answers) Score {
	score := Score{Total: len(quiz.Questions)}
	for _, q := range quiz.Questions {
		if GradeQuestion(q, answers[q.ID.String()]) {
			score.Correct++
		}
	}
	return score
}

// GradeQuestion reports whether submitted is a correct answer to q.
// An empty submission is never correct.
func GradeQuestion(q model.Question, submitted []string) bool {
	if len(submitted) == 0 {
		return false
	}
	s, ok := strategies[q.Type]
	if !ok {
		return false
	}
	return s.Grade(q, submitted)
}

// exactStrategy requires exactly one value equal to the correct answer.
// Comparison is case-sensitive and untrimmed.
type exactStrategy struct{}

func (exactStrategy) Grade(q model.Question, submitted []string) bool {
	if q.CorrectAnswer == nil || len(submitted) != 1 {
		return false
	}
	return submitted[0] == *q.CorrectAnswer
}

// setStrategy requires the submitted set to equal the set of correct options.
// No partial credit.
type setStrategy struct{}

func (setStrategy) Grade(q model.Question, submitted []string) bool {
	return setEqual(toSet(submitted), CorrectOptions(q))
}

// CorrectOptions returns the set of option texts flagged correct on q.
func CorrectOptions(q model.Question) map[string]struct{} {
	m := make(map[string]struct{})
	for _, o := range q.Options {
		if o.IsCorrect {
			m[o.OptionText] = struct{}{}
		}
	}
	return m
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
