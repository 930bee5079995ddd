package model

import "time"

// LeaderboardEntry aggregates one learner's results.
type LeaderboardEntry struct {
	Rank        int               `json:"rank"`
	LearnerName string            `json:"learner_name"`
	TotalScore  int               `json:"total_score"`
	Quizzes     []LeaderboardQuiz `json:"quizzes"`
}

// LeaderboardQuiz is one quiz inside a leaderboard entry.
type LeaderboardQuiz struct {
	QuizTitle string    `json:"quiz_title"`
	Score     int       `json:"score"`
	DateTaken time.Time `json:"date_taken"`
}

// QuizPerformance is the aggregate success rate of a quiz.
type QuizPerformance struct {
	QuizTitle      string  `json:"quiz_title"`
	TotalScore     int     `json:"total_score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

// LearnerAttempts counts attempts per quiz for one learner.
type LearnerAttempts struct {
	LearnerName string         `json:"learner_name"`
	Attempts    map[string]int `json:"attempts"`
}

// LearnerCompletion reports how many attempts a learner finished with a perfect score.
type LearnerCompletion struct {
	LearnerName    string  `json:"learner_name"`
	Attempted      int     `json:"attempted"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// Dashboard summarises a quiz creator's activity.
type Dashboard struct {
	CreatedBy      string  `json:"created_by"`
	TotalQuizzes   int     `json:"total_quizzes"`
	UniqueLearners int     `json:"unique_learners"`
	AverageScore   float64 `json:"average_score"`
}
