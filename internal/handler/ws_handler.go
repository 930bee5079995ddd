package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/attempt"
	"github.com/quizarena/quizarena-backend/internal/middleware"
	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
	"github.com/quizarena/quizarena-backend/internal/service"
	"github.com/quizarena/quizarena-backend/internal/validator"
	ws "github.com/quizarena/quizarena-backend/internal/websocket"
)

// streamSlack covers grading and the closing frame after the deadline.
const streamSlack = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a server-graded attempt: countdown ticks out, answers and
// submit in.
type WSHandler struct {
	attemptService *service.AttemptService
	tick           time.Duration
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. tick is the countdown interval.
func NewWSHandler(attemptService *service.AttemptService, tick time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		tick:           tick,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream?token=
// The attempt is graded exactly once, either on a submit action or when the
// countdown reaches zero. Disconnecting stops the countdown; the expiry worker
// still closes the attempt at its deadline.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID := claims.AttemptID

	state, err := h.attemptService.State(c.Request.Context(), attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("attempt_id", attemptID).
		Str("learner_id", claims.LearnerID).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if state.Submitted {
		h.sendGraded(conn, &model.AttemptOutcome{
			Score:          *state.Score,
			TotalQuestions: state.TotalQuestions,
		})
		_ = conn.CloseNormal("already submitted")
		return
	}

	_ = conn.WriteTyped(ws.StateEvent{
		Event:            ws.EventState,
		RemainingSeconds: state.RemainingSeconds,
		Deadline:         state.Deadline,
		Answers:          state.Answers,
	})

	cycle := func(ctx context.Context, trigger model.Trigger) {
		// Grading must finish even if the learner disconnects mid-cycle.
		outcome, err := h.attemptService.Submit(context.WithoutCancel(ctx), attemptID, trigger)
		if err != nil && !(errors.Is(err, attempt.ErrAlreadySubmitted) && outcome != nil) {
			wsLog.Error().Err(err).Str("trigger", string(trigger)).Msg("Submit failed")
			_, code := errorStatus(err)
			_ = conn.WriteError(string(code), response.GetMessage(code))
			return
		}
		h.sendGraded(conn, outcome)
		wsLog.Info().Int("score", outcome.Score).Str("trigger", string(outcome.Trigger)).Msg("Attempt graded")
	}

	if state.RemainingSeconds <= 0 {
		cycle(ctx, model.TriggerTimer)
		_ = conn.CloseNormal("time is up")
		return
	}

	// The countdown closes the stream at the deadline; reads must outlast it.
	conn.KeepReadingUntil(state.Deadline.Add(streamSlack))

	session := attempt.NewSession(state.RemainingSeconds, h.tick, func(remaining int) {
		_ = conn.WriteTyped(ws.TickEvent{Event: ws.EventTick, RemainingSeconds: remaining})
	}, cycle)
	session.Start(ctx)
	defer session.Stop()

	// Close the socket once the cycle has run, whichever side triggered it.
	go func() {
		select {
		case <-session.Done():
			_ = conn.CloseNormal("attempt graded")
		case <-ctx.Done():
		}
	}()

	wsLog.Info().Int("remaining", state.RemainingSeconds).Msg("Learner connected")

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, attemptID, &msg)
		case ws.ActionSubmit:
			if !session.Submit(ctx) {
				_ = conn.WriteError(string(response.ErrAlreadySubmitted), response.GetMessage(response.ErrAlreadySubmitted))
			}
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongEvent{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// handleAnswer validates and stores a single answer.
func (h *WSHandler) handleAnswer(ctx context.Context, conn *ws.Conn, attemptID string, msg *ws.RequestPayload) {
	req := model.SaveAnswerRequest{QuestionID: msg.QuestionID, Values: msg.Values}
	if fields := validator.Struct(&req); fields != nil {
		_ = conn.WriteError(string(response.ErrValidation), firstField(fields))
		return
	}

	if err := h.attemptService.SaveAnswer(ctx, attemptID, &req); err != nil {
		status, code := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("attempt_id", attemptID).Msg("Save answer failed")
		}
		_ = conn.WriteError(string(code), response.GetMessage(code))
		return
	}

	_ = conn.WriteTyped(ws.SavedEvent{Event: ws.EventSaved, QuestionID: req.QuestionID})
}

func (h *WSHandler) sendGraded(conn *ws.Conn, outcome *model.AttemptOutcome) {
	_ = conn.WriteTyped(ws.GradedEvent{
		Event:          ws.EventGraded,
		Score:          outcome.Score,
		TotalQuestions: outcome.TotalQuestions,
		Trigger:        string(outcome.Trigger),
	})
}

func firstField(fields map[string]string) string {
	for k, v := range fields {
		return k + ": " + v
	}
	return "invalid payload"
}
