package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/model"
)

// Domain Errors
var (
	ErrScoreOutOfRange       = errors.New("score must be between 0 and total_questions")
	ErrQuestionCountMismatch = errors.New("total_questions does not match the quiz")
)

// ResultStore is the read side of persisted results.
type ResultStore interface {
	ListAll(ctx context.Context) ([]model.Result, error)
	ListByLearner(ctx context.Context, learnerID string) ([]model.Result, error)
	ListByCreator(ctx context.Context, createdBy string) ([]model.Result, error)
}

// ResultQueue pushes score reports onto the persistence queue drained by the
// result worker.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a new ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// Enqueue appends a submission to the persistence queue.
func (q *ResultQueue) Enqueue(ctx context.Context, sub model.ResultSubmission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	return nil
}

// ResultService accepts score reports and serves result listings and analytics.
type ResultService struct {
	store   ResultStore
	quizzes QuizSource
	counter QuizCounter
	queue   *ResultQueue
	log     zerolog.Logger
	now     func() time.Time
}

// QuizCounter counts the quizzes authored by a creator.
type QuizCounter interface {
	CountByCreator(ctx context.Context, createdBy string) (int, error)
}

// NewResultService creates a new ResultService.
func NewResultService(
	store ResultStore,
	quizzes QuizSource,
	counter QuizCounter,
	queue *ResultQueue,
	log zerolog.Logger,
) *ResultService {
	return &ResultService{
		store:   store,
		quizzes: quizzes,
		counter: counter,
		queue:   queue,
		log:     log.With().Str("component", "result_service").Logger(),
		now:     time.Now,
	}
}

// Submit checks a client-graded score against its quiz and queues it for
// persistence. Client reports never carry an attempt, so they cannot claim a
// server-graded result.
func (s *ResultService) Submit(ctx context.Context, req model.ReportResultRequest) error {
	if req.Score < 0 || req.Score > req.TotalQuestions {
		return ErrScoreOutOfRange
	}

	quiz, err := s.quizzes.Get(ctx, req.QuizID)
	if err != nil {
		return err
	}
	if req.TotalQuestions != len(quiz.Questions) {
		return ErrQuestionCountMismatch
	}

	sub := model.ResultSubmission{
		QuizID:         req.QuizID,
		LearnerID:      req.LearnerID,
		LearnerName:    req.LearnerName,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		Trigger:        model.TriggerClient,
		SubmittedAt:    s.now().UTC(),
	}

	if err := s.queue.Enqueue(ctx, sub); err != nil {
		return err
	}

	s.log.Debug().
		Int64("quiz_id", sub.QuizID).
		Str("learner_id", sub.LearnerID).
		Int("score", sub.Score).
		Str("trigger", string(sub.Trigger)).
		Msg("Result queued")
	return nil
}

// ListAll returns every persisted result, newest first.
func (s *ResultService) ListAll(ctx context.Context) ([]model.Result, error) {
	return s.store.ListAll(ctx)
}

// ListByLearner returns one learner's results, newest first.
func (s *ResultService) ListByLearner(ctx context.Context, learnerID string) ([]model.Result, error) {
	return s.store.ListByLearner(ctx, learnerID)
}

// Leaderboard ranks learners by their total score across all quizzes.
func (s *ResultService) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	results, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return BuildLeaderboard(results), nil
}

// QuizPerformance summarizes each quiz authored by createdBy, or every quiz
// when createdBy is empty.
func (s *ResultService) QuizPerformance(ctx context.Context, createdBy string) ([]model.QuizPerformance, error) {
	results, err := s.resultsFor(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	return BuildQuizPerformance(results), nil
}

// Attempts counts attempts per learner and quiz for createdBy's quizzes.
func (s *ResultService) Attempts(ctx context.Context, createdBy string) ([]model.LearnerAttempts, error) {
	results, err := s.resultsFor(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	return BuildAttempts(results), nil
}

// Completion reports per learner how many of createdBy's quizzes were
// attempted and how many were answered fully correct.
func (s *ResultService) Completion(ctx context.Context, createdBy string) ([]model.LearnerCompletion, error) {
	results, err := s.resultsFor(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	return BuildCompletion(results), nil
}

// Dashboard aggregates headline numbers for createdBy.
func (s *ResultService) Dashboard(ctx context.Context, createdBy string) (*model.Dashboard, error) {
	total, err := s.counter.CountByCreator(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("count quizzes: %w", err)
	}
	results, err := s.resultsFor(ctx, createdBy)
	if err != nil {
		return nil, err
	}
	d := BuildDashboard(createdBy, total, results)
	return &d, nil
}

// resultsFor lists results for createdBy's quizzes, or every result when
// createdBy is empty.
func (s *ResultService) resultsFor(ctx context.Context, createdBy string) ([]model.Result, error) {
	var (
		results []model.Result
		err     error
	)
	if createdBy == "" {
		results, err = s.store.ListAll(ctx)
	} else {
		results, err = s.store.ListByCreator(ctx, createdBy)
	}
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}
