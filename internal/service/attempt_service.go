package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/attempt"
	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/grading"
	"github.com/quizarena/quizarena-backend/internal/model"
)

// Domain Errors
var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrAttemptExpired  = errors.New("attempt deadline has passed")
)

const (
	// attemptRetention keeps attempt state readable after the deadline.
	attemptRetention = time.Hour
	// outcomeRetention keeps the submission guard and its score.
	outcomeRetention = 24 * time.Hour

	maxSubmitRetries = 5
)

// AttemptService runs server-graded attempts. Attempt state lives in Redis;
// the first submission wins and is queued for persistence.
type AttemptService struct {
	quizzes         QuizSource
	tokens          *AttemptTokenService
	queue           *ResultQueue
	rdb             *redis.Client
	defaultDuration time.Duration
	log             zerolog.Logger
	now             func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	quizzes QuizSource,
	tokens *AttemptTokenService,
	queue *ResultQueue,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		quizzes:         quizzes,
		tokens:          tokens,
		queue:           queue,
		rdb:             rdb,
		defaultDuration: cfg.DefaultAttemptDuration,
		log:             log.With().Str("component", "attempt_service").Logger(),
		now:             time.Now,
	}
}

// Start opens an attempt on a quiz and returns its paper and token.
func (s *AttemptService) Start(ctx context.Context, quizID int64, req *model.StartAttemptRequest) (*model.AttemptStarted, error) {
	quiz, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !quiz.Available(now) {
		return nil, ErrQuizNotAvailable
	}

	duration := quiz.Duration(s.defaultDuration)
	meta := model.AttemptMeta{
		AttemptID:   uuid.New(),
		QuizID:      quiz.ID,
		LearnerID:   req.LearnerID,
		LearnerName: req.LearnerName,
		StartedAt:   now,
		Deadline:    now.Add(duration),
	}

	token, err := s.tokens.Issue(meta)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal attempt: %w", err)
	}

	id := meta.AttemptID.String()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, config.CacheKey.AttemptMetaKey(id), payload, duration+attemptRetention)
		pipe.ZAdd(ctx, config.CacheKey.AttemptDeadlinesKey(), redis.Z{
			Score:  float64(meta.Deadline.UnixMilli()),
			Member: id,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store attempt: %w", err)
	}

	s.log.Info().
		Str("attempt_id", id).
		Int64("quiz_id", quiz.ID).
		Str("learner_id", req.LearnerID).
		Time("deadline", meta.Deadline).
		Msg("Attempt started")

	return &model.AttemptStarted{
		AttemptID: meta.AttemptID,
		Token:     token,
		Deadline:  meta.Deadline,
		Paper:     quiz.Paper(),
	}, nil
}

// Meta returns the stored metadata of an attempt.
func (s *AttemptService) Meta(ctx context.Context, attemptID string) (*model.AttemptMeta, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.AttemptMetaKey(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	var meta model.AttemptMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return &meta, nil
}

// SaveAnswer replaces the stored values for one question. Empty values clear
// the answer.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID string, req *model.SaveAnswerRequest) error {
	meta, err := s.Meta(ctx, attemptID)
	if err != nil {
		return err
	}

	now := s.now()
	if now.After(meta.Deadline) {
		return ErrAttemptExpired
	}

	quiz, err := s.quizzes.Get(ctx, meta.QuizID)
	if err != nil {
		return err
	}
	if _, ok := quiz.FindQuestion(req.QuestionID); !ok {
		return attempt.ErrUnknownQuestion
	}

	values, err := json.Marshal(req.Values)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	answersKey := config.CacheKey.AttemptAnswersKey(attemptID)
	submittedKey := config.CacheKey.AttemptSubmittedKey(attemptID)
	ttl := meta.Deadline.Sub(now) + attemptRetention

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, submittedKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return attempt.ErrAlreadySubmitted
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(req.Values) == 0 {
				pipe.HDel(ctx, answersKey, req.QuestionID)
			} else {
				pipe.HSet(ctx, answersKey, req.QuestionID, values)
			}
			pipe.Expire(ctx, answersKey, ttl)
			return nil
		})
		return err
	}, submittedKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return attempt.ErrAlreadySubmitted
	case errors.Is(err, attempt.ErrAlreadySubmitted):
		return err
	default:
		return fmt.Errorf("save answer: %w", err)
	}
}

// Submit grades an attempt once. The submission guard is a SETNX on the
// attempt's submitted key; a caller that loses the race gets the stored
// outcome together with attempt.ErrAlreadySubmitted.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, trigger model.Trigger) (*model.AttemptOutcome, error) {
	meta, err := s.Meta(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	quiz, err := s.quizzes.Get(ctx, meta.QuizID)
	if err != nil {
		return nil, err
	}

	answersKey := config.CacheKey.AttemptAnswersKey(attemptID)
	submittedKey := config.CacheKey.AttemptSubmittedKey(attemptID)

	var (
		outcome model.AttemptOutcome
		won     bool
	)
	for i := 0; i < maxSubmitRetries; i++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.HGetAll(ctx, answersKey).Result()
			if err != nil {
				return err
			}

			score := grading.Evaluate(quiz, decodeAnswers(stored))
			outcome = model.AttemptOutcome{
				AttemptID:      meta.AttemptID,
				Score:          score.Correct,
				TotalQuestions: score.Total,
				Trigger:        trigger,
			}
			payload, err := json.Marshal(outcome)
			if err != nil {
				return err
			}

			var guard *redis.BoolCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				guard = pipe.SetNX(ctx, submittedKey, payload, outcomeRetention)
				return nil
			})
			if err != nil {
				return err
			}
			won = guard.Val()
			return nil
		}, answersKey)

		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("submit attempt: %w", err)
	}

	if !won {
		prev, err := s.outcome(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		return prev, attempt.ErrAlreadySubmitted
	}

	if err := s.rdb.ZRem(ctx, config.CacheKey.AttemptDeadlinesKey(), attemptID).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Failed to clear attempt deadline")
	}

	id := meta.AttemptID
	sub := model.ResultSubmission{
		QuizID:         meta.QuizID,
		LearnerID:      meta.LearnerID,
		LearnerName:    meta.LearnerName,
		Score:          outcome.Score,
		TotalQuestions: outcome.TotalQuestions,
		Trigger:        trigger,
		AttemptID:      &id,
		SubmittedAt:    s.now().UTC(),
	}
	if err := s.queue.Enqueue(ctx, sub); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID).Msg("Failed to queue attempt result")
	}

	s.log.Info().
		Str("attempt_id", attemptID).
		Int("score", outcome.Score).
		Int("total", outcome.TotalQuestions).
		Str("trigger", string(trigger)).
		Msg("Attempt graded")
	return &outcome, nil
}

// State returns the resumable view of an attempt.
func (s *AttemptService) State(ctx context.Context, attemptID string) (*model.AttemptState, error) {
	meta, err := s.Meta(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	stored, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}

	state := &model.AttemptState{
		AttemptID:        meta.AttemptID,
		QuizID:           meta.QuizID,
		Deadline:         meta.Deadline,
		RemainingSeconds: s.RemainingSeconds(meta),
		Answers:          decodeAnswers(stored),
	}

	out, err := s.outcome(ctx, attemptID)
	switch {
	case err == nil:
		state.Submitted = true
		state.Score = &out.Score
		state.TotalQuestions = out.TotalQuestions
		state.RemainingSeconds = 0
	case errors.Is(err, ErrAttemptNotFound):
		if quiz, qerr := s.quizzes.Get(ctx, meta.QuizID); qerr == nil {
			state.TotalQuestions = len(quiz.Questions)
		}
	default:
		return nil, err
	}
	return state, nil
}

// RemainingSeconds rounds the time left before the deadline up to whole
// seconds, never below zero.
func (s *AttemptService) RemainingSeconds(meta *model.AttemptMeta) int {
	left := meta.Deadline.Sub(s.now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// ExpireDue submits every open attempt whose deadline has passed and returns
// how many were graded.
func (s *AttemptService) ExpireDue(ctx context.Context) (int, error) {
	deadlines := config.CacheKey.AttemptDeadlinesKey()
	ids, err := s.rdb.ZRangeByScore(ctx, deadlines, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(s.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list due attempts: %w", err)
	}

	graded := 0
	for _, id := range ids {
		_, err := s.Submit(ctx, id, model.TriggerTimer)
		switch {
		case err == nil:
			graded++
		case errors.Is(err, attempt.ErrAlreadySubmitted),
			errors.Is(err, ErrAttemptNotFound),
			errors.Is(err, ErrQuizNotFound):
			if err := s.rdb.ZRem(ctx, deadlines, id).Err(); err != nil {
				s.log.Warn().Err(err).Str("attempt_id", id).Msg("Failed to clear attempt deadline")
			}
		default:
			s.log.Warn().Err(err).Str("attempt_id", id).Msg("Failed to expire attempt")
		}
	}
	return graded, nil
}

func (s *AttemptService) outcome(ctx context.Context, attemptID string) (*model.AttemptOutcome, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.AttemptSubmittedKey(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get outcome: %w", err)
	}

	var out model.AttemptOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return &out, nil
}

// decodeAnswers turns the stored hash into grading input. Corrupt entries are
// skipped and grade as unanswered.
func decodeAnswers(stored map[string]string) grading.Answers {
	answers := make(grading.Answers, len(stored))
	for qid, raw := range stored {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			continue
		}
		answers[qid] = values
	}
	return answers
}
