package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
)

// Domain Errors
var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuizNotAvailable = errors.New("quiz is outside its availability window")
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrInvalidDateRange = errors.New("end_date must be after start_date")
)

// QuestionError describes why the question at Index was rejected.
type QuestionError struct {
	Index  int
	Reason string
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("questions[%d]: %s", e.Index, e.Reason)
}

func (e *QuestionError) Unwrap() error { return ErrInvalidQuestion }

// QuizStore is the persistence surface QuizService depends on.
type QuizStore interface {
	Create(ctx context.Context, q *model.Quiz) error
	GetByID(ctx context.Context, id int64) (*model.Quiz, error)
	ListPaginated(ctx context.Context, createdBy string, limit, offset int) ([]model.QuizSummary, int, error)
	Update(ctx context.Context, q *model.Quiz) error
	Delete(ctx context.Context, id int64) error
	CountByCreator(ctx context.Context, createdBy string) (int, error)
}

// QuizSource resolves a full quiz definition by ID.
type QuizSource interface {
	Get(ctx context.Context, id int64) (*model.Quiz, error)
}

// QuizService handles quiz authoring and cached quiz lookups.
type QuizService struct {
	store QuizStore
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(store QuizStore, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *QuizService {
	return &QuizService{
		store: store,
		rdb:   rdb,
		ttl:   cfg.QuizCacheTTL,
		log:   log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create validates req and stores the resulting quiz.
func (s *QuizService) Create(ctx context.Context, req *model.CreateQuizRequest) (*model.Quiz, error) {
	quiz, err := BuildQuiz(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().
		Int64("quiz_id", quiz.ID).
		Str("created_by", quiz.CreatedBy).
		Int("questions", len(quiz.Questions)).
		Msg("Quiz created")
	return quiz, nil
}

// Get returns the full quiz definition, serving from Redis when cached.
// Cache failures fall through to Postgres.
func (s *QuizService) Get(ctx context.Context, id int64) (*model.Quiz, error) {
	key := config.CacheKey.QuizDefinitionKey(id)

	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var quiz model.Quiz
		if jerr := json.Unmarshal(data, &quiz); jerr == nil {
			return &quiz, nil
		}
		s.log.Warn().Int64("quiz_id", id).Msg("Corrupt cached quiz, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Int64("quiz_id", id).Msg("Quiz cache read failed")
	}

	quiz, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if payload, err := json.Marshal(quiz); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Int64("quiz_id", id).Msg("Quiz cache write failed")
		}
	}
	return quiz, nil
}

// Paper returns the learner-facing view of a quiz.
func (s *QuizService) Paper(ctx context.Context, id int64) (*model.QuizPaper, error) {
	quiz, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	paper := quiz.Paper()
	return &paper, nil
}

// List returns quiz summaries, optionally filtered by creator.
func (s *QuizService) List(ctx context.Context, createdBy string, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	page, perPage = response.ClampPage(page, perPage)

	quizzes, total, err := s.store.ListPaginated(ctx, createdBy, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list quizzes: %w", err)
	}
	if quizzes == nil {
		quizzes = []model.QuizSummary{}
	}
	return quizzes, response.NewPagination(page, perPage, total), nil
}

// Update applies metadata changes and drops the cached definition.
func (s *QuizService) Update(ctx context.Context, id int64, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if req.Title != "" {
		quiz.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.TimeLimitMinutes != nil {
		quiz.TimeLimitMinutes = *req.TimeLimitMinutes
	}
	if req.StartDate != nil {
		quiz.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		quiz.EndDate = req.EndDate
	}
	if err := checkWindow(quiz.StartDate, quiz.EndDate); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, quiz); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.invalidate(ctx, id)
	return quiz, nil
}

// Delete removes a quiz and its results.
func (s *QuizService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.invalidate(ctx, id)
	s.log.Info().Int64("quiz_id", id).Msg("Quiz deleted")
	return nil
}

func (s *QuizService) invalidate(ctx context.Context, id int64) {
	if err := s.rdb.Del(ctx, config.CacheKey.QuizDefinitionKey(id)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("quiz_id", id).Msg("Quiz cache invalidation failed")
	}
}

// ─── Building ───────────────────────────────────────────────────────

// BuildQuiz validates a create request and normalizes its answer key.
//
// Single-choice questions take their correct_answer from the option flagged
// is_correct when none is given. True/false questions get "True"/"False"
// options when none are supplied. Multi-select keys live only in the option
// flags, so correct_answer is cleared.
func BuildQuiz(req *model.CreateQuizRequest) (*model.Quiz, error) {
	if err := checkWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		CreatedBy:        req.CreatedBy,
		TimeLimitMinutes: req.TimeLimitMinutes,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Questions:        make([]model.Question, 0, len(req.Questions)),
	}

	for i, qr := range req.Questions {
		q, err := buildQuestion(qr)
		if err != nil {
			return nil, &QuestionError{Index: i, Reason: err.Error()}
		}
		q.OrderNum = i + 1
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz, nil
}

func buildQuestion(req model.CreateQuestionRequest) (model.Question, error) {
	q := model.Question{
		QuestionText: strings.TrimSpace(req.QuestionText),
		Type:         model.QuestionType(req.Type),
	}
	if !q.Type.Valid() {
		return q, fmt.Errorf("unknown type %q", req.Type)
	}

	seen := make(map[string]bool, len(req.Options))
	for _, o := range req.Options {
		text := strings.TrimSpace(o.OptionText)
		if text == "" {
			return q, errors.New("option text must not be blank")
		}
		if seen[text] {
			return q, fmt.Errorf("duplicate option %q", text)
		}
		seen[text] = true
		q.Options = append(q.Options, model.Option{OptionText: text, IsCorrect: o.IsCorrect})
	}

	var answer string
	if req.CorrectAnswer != nil {
		answer = strings.TrimSpace(*req.CorrectAnswer)
	}

	switch q.Type {
	case model.QuestionTypeSingleChoice:
		if len(q.Options) < 2 {
			return q, errors.New("needs at least two options")
		}
		if answer == "" {
			var flagged []string
			for _, o := range q.Options {
				if o.IsCorrect {
					flagged = append(flagged, o.OptionText)
				}
			}
			if len(flagged) != 1 {
				return q, errors.New("needs exactly one correct option")
			}
			answer = flagged[0]
		}
		if !seen[answer] {
			return q, errors.New("correct_answer must match an option")
		}
		markCorrect(q.Options, answer)
		q.CorrectAnswer = &answer

	case model.QuestionTypeMultiSelect:
		if len(q.Options) < 2 {
			return q, errors.New("needs at least two options")
		}
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return q, errors.New("needs at least one correct option")
		}
		q.CorrectAnswer = nil

	case model.QuestionTypeTrueFalse:
		if answer != "True" && answer != "False" {
			return q, errors.New(`correct_answer must be "True" or "False"`)
		}
		if len(q.Options) == 0 {
			q.Options = []model.Option{{OptionText: "True"}, {OptionText: "False"}}
		} else if len(q.Options) != 2 || !seen["True"] || !seen["False"] {
			return q, errors.New(`options must be "True" and "False"`)
		}
		markCorrect(q.Options, answer)
		q.CorrectAnswer = &answer

	case model.QuestionTypeFreeText:
		if answer == "" {
			return q, errors.New("correct_answer is required")
		}
		q.Options = nil
		q.CorrectAnswer = &answer
	}

	if q.Options == nil {
		q.Options = []model.Option{}
	}
	return q, nil
}

func markCorrect(options []model.Option, answer string) {
	for i := range options {
		options[i].IsCorrect = options[i].OptionText == answer
	}
}

func checkWindow(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return ErrInvalidDateRange
	}
	return nil
}
