package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/model"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultSink persists queued result submissions.
type ResultSink interface {
	InsertBatch(ctx context.Context, batch []model.ResultSubmission) error
	Insert(ctx context.Context, s model.ResultSubmission) error
}

// ResultWorker drains persist_results_queue into PostgreSQL in batches.
type ResultWorker struct {
	sink ResultSink
	rdb  *redis.Client
	log  zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(sink ResultSink, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		sink:         sink,
		rdb:          rdb,
		log:          log.With().Str("component", "result_worker").Logger(),
		batchSize:    ResultBatchSize,
		batchTimeout: ResultBatchTimeout,
		pollTimeout:  ResultPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds and drains
// the queue. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.ResultSubmission, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("ResultWorker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(w.pollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			if sub, ok := w.decode(item[1]); ok {
				batch = append(batch, sub)
			}
		}
	}
}

// drain persists whatever is left in the queue without blocking.
func (w *ResultWorker) drain(ctx context.Context) {
	batch := make([]model.ResultSubmission, 0, w.batchSize)
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistResultsQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				w.log.Error().Err(err).Msg("Drain LPop failed")
			}
			break
		}
		if sub, ok := w.decode(raw); ok {
			batch = append(batch, sub)
		}
		if len(batch) >= w.batchSize {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
		}
	}
	w.flushSafe(ctx, batch)
}

func (w *ResultWorker) decode(raw string) (model.ResultSubmission, bool) {
	var sub model.ResultSubmission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return sub, false
	}
	return sub, true
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.ResultSubmission) {
	if len(batch) == 0 {
		return
	}

	if err := w.sink.InsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Bulk result insert failed, using fallback")

		for _, sub := range batch {
			if err := w.sink.Insert(ctx, sub); err != nil {
				// Reports are fire-and-forget; a row that fails on its own is dropped.
				w.log.Error().
					Err(err).
					Int64("quiz_id", sub.QuizID).
					Str("learner_id", sub.LearnerID).
					Int("score", sub.Score).
					Msg("Result dropped")
			}
		}
		return
	}

	w.log.Debug().Int("size", len(batch)).Msg("Results persisted")
}
