package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizarena/quizarena-backend/internal/database"
	"github.com/quizarena/quizarena-backend/internal/model"
)

// QuizRepository handles quiz, question and option data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Create inserts a quiz with all of its questions and options in one
// transaction. IDs and timestamps are written back into q.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO quizzes (title, description, created_by, time_limit_minutes, start_date, end_date)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at, updated_at`,
			q.Title, q.Description, q.CreatedBy, q.TimeLimitMinutes, q.StartDate, q.EndDate,
		).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return err
		}

		var optionRows [][]interface{}
		for i := range q.Questions {
			qq := &q.Questions[i]
			qq.OrderNum = i + 1
			err := tx.QueryRow(ctx,
				`INSERT INTO questions (quiz_id, question_text, type, correct_answer, order_num)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				q.ID, qq.QuestionText, qq.Type, qq.CorrectAnswer, qq.OrderNum,
			).Scan(&qq.ID)
			if err != nil {
				return err
			}
			for j, o := range qq.Options {
				optionRows = append(optionRows, []interface{}{qq.ID, o.OptionText, o.IsCorrect, j + 1})
			}
		}

		if len(optionRows) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"question_options"},
			[]string{"question_id", "option_text", "is_correct", "order_num"},
			pgx.CopyFromRows(optionRows),
		)
		return err
	})
}

// GetByID retrieves a quiz with its ordered questions and options.
// Returns pgx.ErrNoRows when the quiz does not exist.
func (r *QuizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, created_by, time_limit_minutes,
		        start_date, end_date, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.CreatedBy, &q.TimeLimitMinutes,
		&q.StartDate, &q.EndDate, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Questions = questions
	return q, nil
}

func (r *QuizRepository) listQuestions(ctx context.Context, quizID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, type, correct_answer, order_num
		 FROM questions WHERE quiz_id = $1
		 ORDER BY order_num ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var qq model.Question
		if err := rows.Scan(&qq.ID, &qq.QuestionText, &qq.Type, &qq.CorrectAnswer, &qq.OrderNum); err != nil {
			return nil, err
		}
		qq.Options = []model.Option{}
		index[qq.ID] = len(questions)
		questions = append(questions, qq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.question_id, o.option_text, o.is_correct
		 FROM question_options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.quiz_id = $1
		 ORDER BY o.question_id, o.order_num ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var (
			qid uuid.UUID
			o   model.Option
		)
		if err := optRows.Scan(&qid, &o.OptionText, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[qid]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}

// ListPaginated returns quiz summaries, optionally filtered by creator.
// Pass createdBy="" to list every quiz.
func (r *QuizRepository) ListPaginated(ctx context.Context, createdBy string, limit, offset int) ([]model.QuizSummary, int, error) {
	countQuery := `SELECT COUNT(*) FROM quizzes`
	var countArgs []interface{}
	if createdBy != "" {
		countQuery += ` WHERE created_by = $1`
		countArgs = append(countArgs, createdBy)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT z.id, z.title, z.description, z.created_by, z.time_limit_minutes,
	                 z.start_date, z.end_date, z.created_at,
	                 (SELECT COUNT(*) FROM questions q WHERE q.quiz_id = z.id) AS questions_count
	          FROM quizzes z`
	var args []interface{}
	argIdx := 1

	if createdBy != "" {
		query += ` WHERE z.created_by = $1`
		args = append(args, createdBy)
		argIdx++
	}

	query += ` ORDER BY z.created_at DESC, z.id DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quizzes := []model.QuizSummary{}
	for rows.Next() {
		var s model.QuizSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.CreatedBy, &s.TimeLimitMinutes,
			&s.StartDate, &s.EndDate, &s.CreatedAt, &s.QuestionsCount); err != nil {
			return nil, 0, err
		}
		quizzes = append(quizzes, s)
	}
	return quizzes, total, rows.Err()
}

// Update writes quiz metadata. Returns pgx.ErrNoRows when the quiz does not exist.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	return r.pool.QueryRow(ctx,
		`UPDATE quizzes
		 SET title = $1, description = $2, time_limit_minutes = $3,
		     start_date = $4, end_date = $5, updated_at = NOW()
		 WHERE id = $6
		 RETURNING updated_at`,
		q.Title, q.Description, q.TimeLimitMinutes, q.StartDate, q.EndDate, q.ID,
	).Scan(&q.UpdatedAt)
}

// Delete removes a quiz; questions, options and results cascade.
// Returns pgx.ErrNoRows when nothing was deleted.
func (r *QuizRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountByCreator returns how many quizzes createdBy has authored.
func (r *QuizRepository) CountByCreator(ctx context.Context, createdBy string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes WHERE created_by = $1`, createdBy).Scan(&n)
	return n, err
}
