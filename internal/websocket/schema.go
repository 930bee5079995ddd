package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload is the single inbound message shape; fields not used by an
// action are ignored.
type RequestPayload struct {
	Action     Action   `json:"action"`
	QuestionID string   `json:"question_id"`
	Values     []string `json:"values"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState  Event = "state"
	EventTick   Event = "tick"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// StateEvent is sent once on connect so the client can resume.
type StateEvent struct {
	Event            Event               `json:"event"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Deadline         time.Time           `json:"deadline"`
	Answers          map[string][]string `json:"answers"`
}

// TickEvent is sent on every countdown tick.
type TickEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// SavedEvent acknowledges an answer action.
type SavedEvent struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// GradedEvent carries the outcome of the attempt. It is sent once.
type GradedEvent struct {
	Event          Event  `json:"event"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
	Trigger        string `json:"trigger"`
}

type ErrorEvent struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongEvent struct {
	Event Event `json:"event"`
}
