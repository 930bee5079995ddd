package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/handler"
	"github.com/quizarena/quizarena-backend/internal/middleware"
	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
	"github.com/quizarena/quizarena-backend/internal/validator"
	ws "github.com/quizarena/quizarena-backend/internal/websocket"
)

var setupOnce sync.Once

// ─── Fakes ──────────────────────────────────────────────────────────

type memQuizStore struct {
	mu      sync.Mutex
	quizzes map[int64]*model.Quiz
	nextID  int64
}

func (s *memQuizStore) Create(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	for i := range q.Questions {
		q.Questions[i].ID = uuid.New()
	}
	s.quizzes[q.ID] = q
	return nil
}

func (s *memQuizStore) GetByID(_ context.Context, id int64) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (s *memQuizStore) ListPaginated(_ context.Context, _ string, _, _ int) ([]model.QuizSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.QuizSummary, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		out = append(out, model.QuizSummary{ID: q.ID, Title: q.Title, QuestionsCount: len(q.Questions)})
	}
	return out, len(out), nil
}

func (s *memQuizStore) Update(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[q.ID] = q
	return nil
}

func (s *memQuizStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.quizzes, id)
	return nil
}

func (s *memQuizStore) CountByCreator(context.Context, string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quizzes), nil
}

type emptyResultStore struct{}

func (emptyResultStore) ListAll(context.Context) ([]model.Result, error) { return nil, nil }
func (emptyResultStore) ListByLearner(context.Context, string) ([]model.Result, error) {
	return nil, nil
}
func (emptyResultStore) ListByCreator(context.Context, string) ([]model.Result, error) {
	return nil, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// ─── Harness ────────────────────────────────────────────────────────

type testEnv struct {
	engine *gin.Engine
	rdb    *redis.Client
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T, tick time.Duration) *testEnv {
	t.Helper()
	setupOnce.Do(validator.Setup)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		GinMode:                gin.TestMode,
		AttemptTokenSecret:     "router-test-secret",
		AttemptGrace:           10 * time.Second,
		DefaultAttemptDuration: 5 * time.Minute,
		CountdownTick:          tick,
		QuizCacheTTL:           time.Minute,
		RateLimitPerMinute:     1000,
	}
	log := zerolog.Nop()

	store := &memQuizStore{quizzes: make(map[int64]*model.Quiz)}
	quizzes := service.NewQuizService(store, rdb, cfg, log)
	queue := service.NewResultQueue(rdb)
	results := service.NewResultService(emptyResultStore{}, quizzes, store, queue, log)
	tokens := service.NewAttemptTokenService(cfg)
	attempts := service.NewAttemptService(quizzes, tokens, queue, rdb, cfg, log)

	handlers := &Handlers{
		Quiz:    handler.NewQuizHandler(quizzes, log),
		Result:  handler.NewResultHandler(results, log),
		Attempt: handler.NewAttemptHandler(attempts, log),
		WS:      handler.NewWSHandler(attempts, cfg.CountdownTick, log, nil),
		System:  handler.NewSystemHandler(pinger{}, rdb, log),
	}
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	return &testEnv{
		engine: SetupRouter(tokens, limiter, handlers, cfg, log),
		rdb:    rdb,
		mr:     mr,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, key string, v interface{}) *response.ErrorBody {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if key == "" || v == nil {
		return env.Error
	}
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NoError(t, json.Unmarshal(data[key], v))
	return env.Error
}

func capitalsQuiz(minutes int) map[string]interface{} {
	return map[string]interface{}{
		"created_by":         "teacher-1",
		"title":              "Capitals",
		"time_limit_minutes": minutes,
		"questions": []map[string]interface{}{
			{
				"question_text":  "Capital of France?",
				"type":           "multiple-choice",
				"correct_answer": "Paris",
				"options": []map[string]interface{}{
					{"option_text": "Paris", "is_correct": true},
					{"option_text": "Rome"},
				},
			},
			{
				"question_text": "Pick the primes",
				"type":          "multiple-select",
				"options": []map[string]interface{}{
					{"option_text": "2", "is_correct": true},
					{"option_text": "3", "is_correct": true},
					{"option_text": "4"},
				},
			},
		},
	}
}

func (e *testEnv) createQuiz(t *testing.T, minutes int) model.Quiz {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/quizzes", capitalsQuiz(minutes), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var quiz model.Quiz
	decode(t, w, "quiz", &quiz)
	return quiz
}

func (e *testEnv) startAttempt(t *testing.T, quizID int64) model.AttemptStarted {
	t.Helper()
	path := "/api/v1/quizzes/" + strconv.FormatInt(quizID, 10) + "/attempts"
	w := e.do(t, http.MethodPost, path, model.StartAttemptRequest{LearnerID: "14", LearnerName: "Ada"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started model.AttemptStarted
	decode(t, w, "attempt", &started)
	return started
}

// ─── HTTP ───────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t, time.Second)
	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestQuizRoutes(t *testing.T) {
	env := newTestEnv(t, time.Second)
	quiz := env.createQuiz(t, 5)
	id := strconv.FormatInt(quiz.ID, 10)

	t.Run("paper hides the key", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/quizzes/"+id+"/paper", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "is_correct")
		assert.NotContains(t, w.Body.String(), "correct_answer")
	})

	t.Run("full definition is not cacheable", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/quizzes/"+id, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	})

	t.Run("unknown quiz", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/quizzes/999", nil, "")
		require.Equal(t, http.StatusNotFound, w.Code)
		errBody := decode(t, w, "", nil)
		require.NotNil(t, errBody)
		assert.Equal(t, response.ErrQuizNotFound, errBody.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/quizzes/abc", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid question is reported by index", func(t *testing.T) {
		body := capitalsQuiz(5)
		body["questions"] = []map[string]interface{}{
			{"question_text": "No key", "type": "fill-in-the-blank"},
		}
		w := env.do(t, http.MethodPost, "/api/v1/quizzes", body, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		errBody := decode(t, w, "", nil)
		require.NotNil(t, errBody)
		assert.Equal(t, response.ErrInvalidQuestion, errBody.Code)
		assert.Contains(t, errBody.Fields, "questions[0]")
	})

	t.Run("list is cacheable", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/quizzes", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=30")
	})
}

func TestSubmitResultQueues(t *testing.T) {
	env := newTestEnv(t, time.Second)
	quiz := env.createQuiz(t, 5)

	w := env.do(t, http.MethodPost, "/api/v1/results", model.ReportResultRequest{
		QuizID:         quiz.ID,
		LearnerID:      "14",
		LearnerName:    "Ada",
		Score:          1,
		TotalQuestions: 2,
	}, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, int64(1), env.rdb.LLen(context.Background(), config.WorkerKey.PersistResultsQueue).Val())

	// Attempt, trigger and time in the body are ignored.
	claimed := uuid.New()
	w = env.do(t, http.MethodPost, "/api/v1/results", map[string]interface{}{
		"quiz_id":         quiz.ID,
		"learner_id":      "14",
		"score":           2,
		"total_questions": 2,
		"trigger":         "timer",
		"attempt_id":      claimed.String(),
		"submitted_at":    "2020-01-01T00:00:00Z",
	}, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	raw, err := env.rdb.LIndex(context.Background(), config.WorkerKey.PersistResultsQueue, 1).Result()
	require.NoError(t, err)
	var queued model.ResultSubmission
	require.NoError(t, json.Unmarshal([]byte(raw), &queued))
	assert.Equal(t, model.TriggerClient, queued.Trigger)
	assert.Nil(t, queued.AttemptID)
	assert.WithinDuration(t, time.Now(), queued.SubmittedAt, time.Minute)

	w = env.do(t, http.MethodPost, "/api/v1/results", model.ReportResultRequest{
		QuizID:         quiz.ID,
		LearnerID:      "14",
		Score:          3,
		TotalQuestions: 2,
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode(t, w, "", nil)
	require.NotNil(t, errBody)
	assert.Equal(t, response.ErrScoreOutOfRange, errBody.Code)
}

func TestLearnerResults(t *testing.T) {
	env := newTestEnv(t, time.Second)
	w := env.do(t, http.MethodGet, "/api/v1/learners/14/results", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":null}`, string(mustData(t, w)))
}

func mustData(t *testing.T, w *httptest.ResponseRecorder) json.RawMessage {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func TestDashboardRequiresCreator(t *testing.T) {
	env := newTestEnv(t, time.Second)
	w := env.do(t, http.MethodGet, "/api/v1/analytics/dashboard", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptRoutes(t *testing.T) {
	env := newTestEnv(t, time.Second)
	quiz := env.createQuiz(t, 5)
	started := env.startAttempt(t, quiz.ID)
	base := "/api/v1/attempts/" + started.AttemptID.String()

	t.Run("token required", func(t *testing.T) {
		w := env.do(t, http.MethodGet, base, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token bound to its attempt", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/attempts/"+uuid.NewString(), nil, started.Token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown question", func(t *testing.T) {
		w := env.do(t, http.MethodPut, base+"/answers", model.SaveAnswerRequest{
			QuestionID: uuid.NewString(),
			Values:     []string{"x"},
		}, started.Token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	for i, values := range [][]string{{"Paris"}, {"2", "3"}} {
		w := env.do(t, http.MethodPut, base+"/answers", model.SaveAnswerRequest{
			QuestionID: quiz.Questions[i].ID.String(),
			Values:     values,
		}, started.Token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	var state model.AttemptState
	w := env.do(t, http.MethodGet, base, nil, started.Token)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, "attempt", &state)
	assert.False(t, state.Submitted)
	assert.Len(t, state.Answers, 2)
	assert.Greater(t, state.RemainingSeconds, 0)

	var outcome model.AttemptOutcome
	w = env.do(t, http.MethodPost, base+"/submit", nil, started.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, "outcome", &outcome)
	assert.Equal(t, 2, outcome.Score)
	assert.Equal(t, model.TriggerManual, outcome.Trigger)

	var repeat model.AttemptOutcome
	w = env.do(t, http.MethodPost, base+"/submit", nil, started.Token)
	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decode(t, w, "outcome", &repeat)
	require.NotNil(t, errBody)
	assert.Equal(t, response.ErrAlreadySubmitted, errBody.Code)
	assert.Equal(t, outcome, repeat)

	w = env.do(t, http.MethodPut, base+"/answers", model.SaveAnswerRequest{
		QuestionID: quiz.Questions[0].ID.String(),
		Values:     []string{"Rome"},
	}, started.Token)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, int64(1), env.rdb.LLen(context.Background(), config.WorkerKey.PersistResultsQueue).Val())
}

// ─── WebSocket ──────────────────────────────────────────────────────

type wsEvent struct {
	Event            ws.Event `json:"event"`
	RemainingSeconds int      `json:"remaining_seconds"`
	QuestionID       string   `json:"question_id"`
	Score            int      `json:"score"`
	TotalQuestions   int      `json:"total_questions"`
	Trigger          string   `json:"trigger"`
	Code             string   `json:"code"`
}

func dialStream(t *testing.T, srv *httptest.Server, started model.AttemptStarted) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/ws/v1/attempts/" + started.AttemptID.String() + "/stream?token=" + started.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads events until one that is not a tick arrives.
func next(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Event != ws.EventTick {
			return ev
		}
	}
}

func TestAttemptStream_ManualSubmit(t *testing.T) {
	env := newTestEnv(t, time.Second)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	quiz := env.createQuiz(t, 5)
	started := env.startAttempt(t, quiz.ID)
	conn := dialStream(t, srv, started)

	state := next(t, conn)
	require.Equal(t, ws.EventState, state.Event)
	assert.Greater(t, state.RemainingSeconds, 0)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionPing}))
	assert.Equal(t, ws.EventPong, next(t, conn).Event)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{
		Action:     ws.ActionAnswer,
		QuestionID: quiz.Questions[0].ID.String(),
		Values:     []string{"Paris"},
	}))
	saved := next(t, conn)
	require.Equal(t, ws.EventSaved, saved.Event)
	assert.Equal(t, quiz.Questions[0].ID.String(), saved.QuestionID)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: "dance"}))
	bad := next(t, conn)
	assert.Equal(t, ws.EventError, bad.Event)
	assert.Equal(t, string(response.ErrInvalidPayload), bad.Code)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionSubmit}))
	graded := next(t, conn)
	require.Equal(t, ws.EventGraded, graded.Event)
	assert.Equal(t, 1, graded.Score)
	assert.Equal(t, 2, graded.TotalQuestions)
	assert.Equal(t, string(model.TriggerManual), graded.Trigger)

	// The server closes the socket after grading.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// Reconnecting to a graded attempt replays the outcome.
	again := dialStream(t, srv, started)
	replay := next(t, again)
	require.Equal(t, ws.EventGraded, replay.Event)
	assert.Equal(t, 1, replay.Score)
}

func TestAttemptStream_TimerSubmit(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	quiz := env.createQuiz(t, 1)
	started := env.startAttempt(t, quiz.ID)
	conn := dialStream(t, srv, started)

	require.Equal(t, ws.EventState, next(t, conn).Event)

	graded := next(t, conn)
	require.Equal(t, ws.EventGraded, graded.Event)
	assert.Equal(t, 0, graded.Score)
	assert.Equal(t, string(model.TriggerTimer), graded.Trigger)

	assert.Equal(t, int64(1), env.rdb.LLen(context.Background(), config.WorkerKey.PersistResultsQueue).Val())
}
