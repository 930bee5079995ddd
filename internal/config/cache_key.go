package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizDefinitionKey returns the cache key for a quiz's full definition
func (r *CacheKeyStruct) QuizDefinitionKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:definition", quizID)
}

// AttemptMetaKey returns the cache key for an attempt's metadata
func (r *CacheKeyStruct) AttemptMetaKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:meta", attemptID)
}

// AttemptAnswersKey returns the cache key for an attempt's in-progress answers
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptSubmittedKey returns the guard key set by the first submission of an attempt.
// Its value is the graded outcome.
func (r *CacheKeyStruct) AttemptSubmittedKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:submitted", attemptID)
}

// AttemptDeadlinesKey returns the sorted set of open attempts scored by deadline (unix milliseconds)
func (r *CacheKeyStruct) AttemptDeadlinesKey() string {
	return "attempts:deadlines"
}

var CacheKey = NewCacheKeyStruct()
