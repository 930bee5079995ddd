package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/quizarena/quizarena-backend/internal/model"
)

// CycleFunc runs one evaluate-and-submit cycle.
type CycleFunc func(ctx context.Context, trigger model.Trigger)

// Session binds a countdown to a single submission cycle. Whichever of expiry
// or Submit comes first runs the cycle; the other becomes a no-op.
type Session struct {
	countdown *Countdown
	cycle     CycleFunc

	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	ctx     context.Context
	trigger model.Trigger
}

// NewSession creates a session whose countdown lasts seconds ticks.
func NewSession(seconds int, tick time.Duration, onTick func(remaining int), cycle CycleFunc) *Session {
	s := &Session{
		cycle: cycle,
		done:  make(chan struct{}),
		ctx:   context.Background(),
	}
	s.countdown = NewCountdown(seconds, tick, onTick, s.expire)
	return s
}

// Start begins the countdown. ctx bounds the countdown and is handed to a
// timer-triggered cycle.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.countdown.Start(ctx)
}

// Submit runs the cycle manually. It reports whether this call ran it.
func (s *Session) Submit(ctx context.Context) bool {
	return s.fire(ctx, model.TriggerManual)
}

// Stop tears the countdown down without submitting.
func (s *Session) Stop() {
	s.countdown.Stop()
}

// Remaining returns the seconds left on the countdown.
func (s *Session) Remaining() int {
	return s.countdown.Remaining()
}

// Done is closed once the cycle has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Trigger reports what ran the cycle, or "" if it has not run.
func (s *Session) Trigger() model.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigger
}

func (s *Session) expire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.fire(ctx, model.TriggerTimer)
}

func (s *Session) fire(ctx context.Context, trigger model.Trigger) bool {
	ran := false
	s.once.Do(func() {
		ran = true
		s.countdown.Stop()

		s.mu.Lock()
		s.trigger = trigger
		s.mu.Unlock()

		if s.cycle != nil {
			s.cycle(ctx, trigger)
		}
		close(s.done)
	})
	return ran
}
