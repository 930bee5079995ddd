// Package attempt drives a single learner's pass through a quiz: collecting
// answers, counting down, and running exactly one grade-and-report cycle.
package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/grading"
	"github.com/quizarena/quizarena-backend/internal/model"
)

var (
	ErrUnknownQuestion  = errors.New("question does not belong to this quiz")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

// Reporter persists a computed score. Failures never change the score.
type Reporter interface {
	Report(ctx context.Context, sub model.ResultSubmission) error
}

// Options tunes an Attempt. Zero values use the package defaults.
type Options struct {
	Tick           time.Duration
	DefaultSeconds int
	ReportTimeout  time.Duration
	OnTick         func(remaining int)
	// OnGraded is called once with the computed score, before reporting starts.
	OnGraded func(score grading.Score, trigger model.Trigger)
}

// Attempt is one learner's pass through a quiz, graded locally.
type Attempt struct {
	quiz        *model.Quiz
	learnerID   string
	learnerName string
	reporter    Reporter
	log         zerolog.Logger
	opts        Options
	session     *Session

	mu        sync.Mutex
	answers   grading.Answers
	score     *grading.Score
	submitted bool

	reported chan struct{}
}

// New prepares an attempt. The countdown does not start until Start.
func New(quiz *model.Quiz, learnerID, learnerName string, reporter Reporter, log zerolog.Logger, opts Options) *Attempt {
	if opts.DefaultSeconds <= 0 {
		opts.DefaultSeconds = DefaultSeconds
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 10 * time.Second
	}

	attemptLog := log.With().
		Str("component", "attempt").
		Int64("quiz_id", quiz.ID).
		Str("learner_id", learnerID).
		Logger()

	a := &Attempt{
		quiz:        quiz,
		learnerID:   learnerID,
		learnerName: learnerName,
		reporter:    reporter,
		log:         attemptLog,
		opts:        opts,
		answers:     make(grading.Answers),
		reported:    make(chan struct{}),
	}

	seconds := int(quiz.Duration(time.Duration(opts.DefaultSeconds)*time.Second) / time.Second)
	a.session = NewSession(seconds, opts.Tick, opts.OnTick, a.cycle)
	return a
}

// Start begins the countdown.
func (a *Attempt) Start(ctx context.Context) {
	a.session.Start(ctx)
}

// Stop abandons the attempt without submitting.
func (a *Attempt) Stop() {
	a.session.Stop()
}

// Choose records a selection. Multi-select toggles value in or out of the
// set; every other type replaces the stored value.
func (a *Attempt) Choose(questionID, value string) error {
	q, ok := a.quiz.FindQuestion(questionID)
	if !ok {
		return ErrUnknownQuestion
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitted {
		return ErrAlreadySubmitted
	}
	a.answers[questionID] = Apply(q.Type, a.answers[questionID], value)
	return nil
}

// SetText records a free-text answer, replacing any previous one.
func (a *Attempt) SetText(questionID, text string) error {
	if _, ok := a.quiz.FindQuestion(questionID); !ok {
		return ErrUnknownQuestion
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitted {
		return ErrAlreadySubmitted
	}
	a.answers[questionID] = []string{text}
	return nil
}

// Answers returns a copy of the in-progress answer set.
func (a *Attempt) Answers() grading.Answers {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyAnswers(a.answers)
}

// Submit runs the grade-and-report cycle unless it already ran. It returns the
// score and whether this call ran the cycle.
func (a *Attempt) Submit(ctx context.Context) (grading.Score, bool) {
	ran := a.session.Submit(ctx)
	score, _ := a.Score()
	return score, ran
}

// Score returns the computed score once the attempt has been graded.
func (a *Attempt) Score() (grading.Score, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.score == nil {
		return grading.Score{}, false
	}
	return *a.score, true
}

// Remaining returns the seconds left on the countdown.
func (a *Attempt) Remaining() int {
	return a.session.Remaining()
}

// Trigger reports what ran the cycle.
func (a *Attempt) Trigger() model.Trigger {
	return a.session.Trigger()
}

// Done is closed once the attempt has been graded.
func (a *Attempt) Done() <-chan struct{} {
	return a.session.Done()
}

// Reported is closed once the background report has finished, successfully or not.
func (a *Attempt) Reported() <-chan struct{} {
	return a.reported
}

func (a *Attempt) cycle(ctx context.Context, trigger model.Trigger) {
	a.mu.Lock()
	a.submitted = true
	score := grading.Evaluate(a.quiz, a.answers)
	a.score = &score
	a.mu.Unlock()

	a.log.Info().
		Str("trigger", string(trigger)).
		Int("score", score.Correct).
		Int("total", score.Total).
		Msg("Attempt graded")

	if a.opts.OnGraded != nil {
		a.opts.OnGraded(score, trigger)
	}

	sub := model.ResultSubmission{
		QuizID:         a.quiz.ID,
		LearnerID:      a.learnerID,
		LearnerName:    a.learnerName,
		Score:          score.Correct,
		TotalQuestions: score.Total,
		Trigger:        model.TriggerClient,
		SubmittedAt:    time.Now().UTC(),
	}
	go a.report(context.WithoutCancel(ctx), sub)
}

func (a *Attempt) report(ctx context.Context, sub model.ResultSubmission) {
	defer close(a.reported)

	if a.reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.ReportTimeout)
	defer cancel()

	if err := a.reporter.Report(ctx, sub); err != nil {
		a.log.Error().Err(err).Msg("Score report failed")
		return
	}
	a.log.Debug().Msg("Score reported")
}

// Apply returns the answer values for a question of type t after the learner
// picks value. Multi-select toggles; other types replace.
func Apply(t model.QuestionType, current []string, value string) []string {
	if t != model.QuestionTypeMultiSelect {
		return []string{value}
	}
	out := make([]string, 0, len(current)+1)
	removed := false
	for _, v := range current {
		if v == value {
			removed = true
			continue
		}
		out = append(out, v)
	}
	if !removed {
		out = append(out, value)
	}
	return out
}

func copyAnswers(src grading.Answers) grading.Answers {
	dst := make(grading.Answers, len(src))
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
	return dst
}
