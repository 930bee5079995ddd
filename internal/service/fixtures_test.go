package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/model"
)

var (
	capitalQID = uuid.MustParse("0b7f6f0e-1d43-4c52-9a43-6f2d1c0e2a11")
	primesQID  = uuid.MustParse("5e2c8a1d-7f36-4b0a-8d1e-3c9b7a6f4e22")
)

func strPtr(s string) *string { return &s }

func testConfig() *config.Config {
	return &config.Config{
		AttemptTokenSecret:     "test-secret",
		AttemptGrace:           10 * time.Second,
		DefaultAttemptDuration: 300 * time.Second,
		QuizCacheTTL:           time.Minute,
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// sampleQuiz has a single-choice and a multi-select question.
func sampleQuiz() *model.Quiz {
	return &model.Quiz{
		ID:               7,
		Title:            "Warm-up",
		CreatedBy:        "teacher-1",
		TimeLimitMinutes: 5,
		Questions: []model.Question{
			{
				ID:           capitalQID,
				QuestionText: "Capital of France?",
				Type:         model.QuestionTypeSingleChoice,
				Options: []model.Option{
					{OptionText: "Paris", IsCorrect: true},
					{OptionText: "London"},
				},
				CorrectAnswer: strPtr("Paris"),
				OrderNum:      1,
			},
			{
				ID:           primesQID,
				QuestionText: "Which are prime?",
				Type:         model.QuestionTypeMultiSelect,
				Options: []model.Option{
					{OptionText: "2", IsCorrect: true},
					{OptionText: "3", IsCorrect: true},
					{OptionText: "4"},
				},
				OrderNum: 2,
			},
		},
	}
}

// fakeQuizStore is an in-memory QuizStore.
type fakeQuizStore struct {
	mu      sync.Mutex
	quizzes map[int64]*model.Quiz
	nextID  int64
	gets    int
}

func newFakeQuizStore(quizzes ...*model.Quiz) *fakeQuizStore {
	s := &fakeQuizStore{quizzes: make(map[int64]*model.Quiz), nextID: 100}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *fakeQuizStore) Create(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	for i := range q.Questions {
		q.Questions[i].ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	s.quizzes[q.ID] = q
	return nil
}

func (s *fakeQuizStore) GetByID(_ context.Context, id int64) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	q, ok := s.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (s *fakeQuizStore) ListPaginated(_ context.Context, createdBy string, limit, offset int) ([]model.QuizSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.QuizSummary
	for _, q := range s.quizzes {
		if createdBy != "" && q.CreatedBy != createdBy {
			continue
		}
		out = append(out, model.QuizSummary{ID: q.ID, Title: q.Title, CreatedBy: q.CreatedBy, QuestionsCount: len(q.Questions)})
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (s *fakeQuizStore) Update(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[q.ID]; !ok {
		return pgx.ErrNoRows
	}
	q.UpdatedAt = time.Now()
	s.quizzes[q.ID] = q
	return nil
}

func (s *fakeQuizStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.quizzes, id)
	return nil
}

func (s *fakeQuizStore) CountByCreator(_ context.Context, createdBy string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.quizzes {
		if q.CreatedBy == createdBy {
			n++
		}
	}
	return n, nil
}

func (s *fakeQuizStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// fakeResultStore serves a fixed result set.
type fakeResultStore struct {
	results []model.Result
	creator map[int64]string
}

func (s *fakeResultStore) ListAll(context.Context) ([]model.Result, error) {
	return s.results, nil
}

func (s *fakeResultStore) ListByLearner(_ context.Context, learnerID string) ([]model.Result, error) {
	var out []model.Result
	for _, r := range s.results {
		if r.LearnerID == learnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeResultStore) ListByCreator(_ context.Context, createdBy string) ([]model.Result, error) {
	var out []model.Result
	for _, r := range s.results {
		if s.creator[r.QuizID] == createdBy {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestQuizService(t *testing.T, quizzes ...*model.Quiz) (*QuizService, *fakeQuizStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	store := newFakeQuizStore(quizzes...)
	return NewQuizService(store, rdb, testConfig(), zerolog.Nop()), store, mr, rdb
}
