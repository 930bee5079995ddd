package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizarena/quizarena-backend/internal/model"
)

// ResultRepository handles quiz result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `r.id, r.quiz_id, z.title, r.learner_id, r.learner_name, r.score,
	r.total_questions, r.submit_trigger, r.attempt_id, r.date_taken`

// InsertBatch bulk-inserts submissions via UNNEST. Rows whose attempt_id was
// already persisted are skipped.
func (r *ResultRepository) InsertBatch(ctx context.Context, batch []model.ResultSubmission) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	quizIDs := make([]int64, n)
	learnerIDs := make([]string, n)
	learnerNames := make([]string, n)
	scores := make([]int32, n)
	totals := make([]int32, n)
	triggers := make([]string, n)
	attemptIDs := make([]pgtype.UUID, n)
	takenAts := make([]time.Time, n)

	for i, s := range batch {
		quizIDs[i] = s.QuizID
		learnerIDs[i] = s.LearnerID
		learnerNames[i] = s.LearnerName
		scores[i] = int32(s.Score)
		totals[i] = int32(s.TotalQuestions)
		triggers[i] = string(triggerOrDefault(s.Trigger))
		if s.AttemptID != nil {
			attemptIDs[i] = pgtype.UUID{Bytes: *s.AttemptID, Valid: true}
		}
		takenAts[i] = takenAt(s)
	}

	query := `
		INSERT INTO quiz_results
			(quiz_id, learner_id, learner_name, score, total_questions, submit_trigger, attempt_id, date_taken)
		SELECT * FROM UNNEST(
			$1::bigint[],
			$2::text[],
			$3::text[],
			$4::int[],
			$5::int[],
			$6::text[],
			$7::uuid[],
			$8::timestamptz[]
		)
		ON CONFLICT (attempt_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		quizIDs, learnerIDs, learnerNames, scores, totals, triggers, attemptIDs, takenAts)
	return err
}

// Insert persists a single submission.
func (r *ResultRepository) Insert(ctx context.Context, s model.ResultSubmission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_results
			(quiz_id, learner_id, learner_name, score, total_questions, submit_trigger, attempt_id, date_taken)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		s.QuizID, s.LearnerID, s.LearnerName, s.Score, s.TotalQuestions,
		string(triggerOrDefault(s.Trigger)), s.AttemptID, takenAt(s),
	)
	return err
}

// ListAll returns every result, newest first.
func (r *ResultRepository) ListAll(ctx context.Context) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM quiz_results r
		 JOIN quizzes z ON z.id = r.quiz_id
		 ORDER BY r.date_taken DESC, r.id DESC`)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// ListByLearner returns one learner's results, newest first.
func (r *ResultRepository) ListByLearner(ctx context.Context, learnerID string) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM quiz_results r
		 JOIN quizzes z ON z.id = r.quiz_id
		 WHERE r.learner_id = $1
		 ORDER BY r.date_taken DESC, r.id DESC`, learnerID)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// ListByCreator returns results for every quiz authored by createdBy.
func (r *ResultRepository) ListByCreator(ctx context.Context, createdBy string) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM quiz_results r
		 JOIN quizzes z ON z.id = r.quiz_id
		 WHERE z.created_by = $1
		 ORDER BY r.date_taken DESC, r.id DESC`, createdBy)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

func scanResults(rows pgx.Rows) ([]model.Result, error) {
	defer rows.Close()

	results := []model.Result{}
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.QuizID, &res.QuizTitle, &res.LearnerID, &res.LearnerName,
			&res.Score, &res.TotalQuestions, &res.Trigger, &res.AttemptID, &res.DateTaken); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func triggerOrDefault(t model.Trigger) model.Trigger {
	if t == "" {
		return model.TriggerClient
	}
	return t
}

func takenAt(s model.ResultSubmission) time.Time {
	if s.SubmittedAt.IsZero() {
		return time.Now().UTC()
	}
	return s.SubmittedAt
}
