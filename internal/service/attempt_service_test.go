package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizarena/quizarena-backend/internal/attempt"
	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/model"
)

type attemptFixture struct {
	svc    *AttemptService
	tokens *AttemptTokenService
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newAttemptFixture(t *testing.T, quizzes ...*model.Quiz) *attemptFixture {
	t.Helper()
	if len(quizzes) == 0 {
		quizzes = []*model.Quiz{sampleQuiz()}
	}

	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	quizSvc := NewQuizService(newFakeQuizStore(quizzes...), rdb, cfg, zerolog.Nop())
	tokens := NewAttemptTokenService(cfg)
	svc := NewAttemptService(quizSvc, tokens, NewResultQueue(rdb), rdb, cfg, zerolog.Nop())

	clock := &fakeClock{t: time.Now().UTC()}
	svc.now = clock.Now

	return &attemptFixture{svc: svc, tokens: tokens, mr: mr, rdb: rdb, clock: clock}
}

func (f *attemptFixture) start(t *testing.T) *model.AttemptStarted {
	t.Helper()
	started, err := f.svc.Start(context.Background(), 7, &model.StartAttemptRequest{
		LearnerID:   "learner-14",
		LearnerName: "Ada",
	})
	require.NoError(t, err)
	return started
}

func (f *attemptFixture) queued(t *testing.T) []model.ResultSubmission {
	t.Helper()
	raw, err := f.rdb.LRange(context.Background(), config.WorkerKey.PersistResultsQueue, 0, -1).Result()
	require.NoError(t, err)

	subs := make([]model.ResultSubmission, len(raw))
	for i, r := range raw {
		require.NoError(t, json.Unmarshal([]byte(r), &subs[i]))
	}
	return subs
}

func (f *attemptFixture) answerAllCorrect(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.SaveAnswer(ctx, id, &model.SaveAnswerRequest{
		QuestionID: capitalQID.String(),
		Values:     []string{"Paris"},
	}))
	require.NoError(t, f.svc.SaveAnswer(ctx, id, &model.SaveAnswerRequest{
		QuestionID: primesQID.String(),
		Values:     []string{"3", "2"},
	}))
}

func TestAttemptService_Start(t *testing.T) {
	f := newAttemptFixture(t)
	started := f.start(t)
	id := started.AttemptID.String()

	assert.Equal(t, int64(7), started.Paper.QuizID)
	require.Len(t, started.Paper.Questions, 2)
	assert.WithinDuration(t, f.clock.Now().Add(5*time.Minute), started.Deadline, time.Second)

	claims, err := f.tokens.Validate(started.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.AttemptID)
	assert.Equal(t, int64(7), claims.QuizID)
	assert.Equal(t, "learner-14", claims.LearnerID)

	assert.True(t, f.mr.Exists(config.CacheKey.AttemptMetaKey(id)))
	score, err := f.mr.ZScore(config.CacheKey.AttemptDeadlinesKey(), id)
	require.NoError(t, err)
	assert.Equal(t, float64(started.Deadline.UnixMilli()), score)
}

func TestAttemptService_StartOutsideWindow(t *testing.T) {
	quiz := sampleQuiz()
	ended := time.Now().Add(-time.Hour)
	quiz.EndDate = &ended
	f := newAttemptFixture(t, quiz)

	_, err := f.svc.Start(context.Background(), 7, &model.StartAttemptRequest{LearnerID: "l", LearnerName: "L"})
	assert.ErrorIs(t, err, ErrQuizNotAvailable)
}

func TestAttemptService_StartUsesDefaultDuration(t *testing.T) {
	quiz := sampleQuiz()
	quiz.TimeLimitMinutes = 0
	f := newAttemptFixture(t, quiz)

	started := f.start(t)
	assert.WithinDuration(t, f.clock.Now().Add(300*time.Second), started.Deadline, time.Second)
}

func TestAttemptService_SaveAndSubmit(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	id := f.start(t).AttemptID.String()

	f.answerAllCorrect(t, id)

	out, err := f.svc.Submit(ctx, id, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Score)
	assert.Equal(t, 2, out.TotalQuestions)
	assert.Equal(t, model.TriggerManual, out.Trigger)

	subs := f.queued(t)
	require.Len(t, subs, 1)
	assert.Equal(t, 2, subs[0].Score)
	assert.Equal(t, model.TriggerManual, subs[0].Trigger)
	require.NotNil(t, subs[0].AttemptID)
	assert.Equal(t, id, subs[0].AttemptID.String())

	_, err = f.mr.ZScore(config.CacheKey.AttemptDeadlinesKey(), id)
	assert.Error(t, err)
}

func TestAttemptService_ClearingAnswer(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	id := f.start(t).AttemptID.String()

	f.answerAllCorrect(t, id)
	require.NoError(t, f.svc.SaveAnswer(ctx, id, &model.SaveAnswerRequest{QuestionID: primesQID.String()}))

	out, err := f.svc.Submit(ctx, id, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Score)
}

func TestAttemptService_SubmitTwiceReturnsStoredOutcome(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	id := f.start(t).AttemptID.String()
	f.answerAllCorrect(t, id)

	_, err := f.svc.Submit(ctx, id, model.TriggerManual)
	require.NoError(t, err)

	again, err := f.svc.Submit(ctx, id, model.TriggerTimer)
	assert.ErrorIs(t, err, attempt.ErrAlreadySubmitted)
	require.NotNil(t, again)
	assert.Equal(t, 2, again.Score)
	assert.Equal(t, model.TriggerManual, again.Trigger)

	assert.Len(t, f.queued(t), 1)
}

func TestAttemptService_ConcurrentSubmitGradesOnce(t *testing.T) {
	f := newAttemptFixture(t)
	id := f.start(t).AttemptID.String()
	f.answerAllCorrect(t, id)

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.Submit(context.Background(), id, model.TriggerManual)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			if out != nil {
				assert.Equal(t, 2, out.Score)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, f.queued(t), 1)
}

func TestAttemptService_SaveAnswerErrors(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	id := f.start(t).AttemptID.String()

	err := f.svc.SaveAnswer(ctx, id, &model.SaveAnswerRequest{
		QuestionID: "9d1c0f4e-0000-4000-8000-000000000000",
		Values:     []string{"x"},
	})
	assert.ErrorIs(t, err, attempt.ErrUnknownQuestion)

	err = f.svc.SaveAnswer(ctx, "missing", &model.SaveAnswerRequest{QuestionID: capitalQID.String()})
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = f.svc.Submit(ctx, id, model.TriggerManual)
	require.NoError(t, err)

	err = f.svc.SaveAnswer(ctx, id, &model.SaveAnswerRequest{QuestionID: capitalQID.String(), Values: []string{"Paris"}})
	assert.ErrorIs(t, err, attempt.ErrAlreadySubmitted)
}

func TestAttemptService_SaveAnswerAfterDeadline(t *testing.T) {
	f := newAttemptFixture(t)
	id := f.start(t).AttemptID.String()

	f.clock.Advance(6 * time.Minute)

	err := f.svc.SaveAnswer(context.Background(), id, &model.SaveAnswerRequest{
		QuestionID: capitalQID.String(),
		Values:     []string{"Paris"},
	})
	assert.ErrorIs(t, err, ErrAttemptExpired)
}

func TestAttemptService_ExpireDue(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	id := f.start(t).AttemptID.String()
	require.NoError(t, f.svc.SaveAnswer(ctx, id, &model.SaveAnswerRequest{
		QuestionID: capitalQID.String(),
		Values:     []string{"Paris"},
	}))

	graded, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, graded)

	f.clock.Advance(5*time.Minute + time.Millisecond)

	graded, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, graded)

	subs := f.queued(t)
	require.Len(t, subs, 1)
	assert.Equal(t, model.TriggerTimer, subs[0].Trigger)
	assert.Equal(t, 1, subs[0].Score)

	graded, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, graded)
}

func TestAttemptService_ExpireDueClearsStaleDeadlines(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	deadlines := config.CacheKey.AttemptDeadlinesKey()

	// Deadline left behind by an attempt whose state has expired.
	stale := "0b6f3a52-8c1e-4c55-9a55-3f0e0d1f7c21"
	require.NoError(t, f.rdb.ZAdd(ctx, deadlines, redis.Z{
		Score:  float64(f.clock.Now().Add(-time.Second).UnixMilli()),
		Member: stale,
	}).Err())

	graded, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, graded)
	assert.Zero(t, f.rdb.ZCard(ctx, deadlines).Val())
	assert.Empty(t, f.queued(t))
}

func TestAttemptService_State(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	id := f.start(t).AttemptID.String()
	f.answerAllCorrect(t, id)

	f.clock.Advance(90 * time.Second)

	state, err := f.svc.State(ctx, id)
	require.NoError(t, err)
	assert.False(t, state.Submitted)
	assert.Nil(t, state.Score)
	assert.Equal(t, 210, state.RemainingSeconds)
	assert.Equal(t, 2, state.TotalQuestions)
	assert.ElementsMatch(t, []string{"2", "3"}, state.Answers[primesQID.String()])

	_, err = f.svc.Submit(ctx, id, model.TriggerManual)
	require.NoError(t, err)

	state, err = f.svc.State(ctx, id)
	require.NoError(t, err)
	assert.True(t, state.Submitted)
	require.NotNil(t, state.Score)
	assert.Equal(t, 2, *state.Score)
	assert.Zero(t, state.RemainingSeconds)
}

func TestAttemptService_StateNotFound(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.svc.State(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
