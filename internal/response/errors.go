package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Attempt Tokens ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenMismatch ErrCode = "TOKEN_ATTEMPT_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrQuizNotFound      ErrCode = "QUIZ_NOT_FOUND"
	ErrQuizNotAvailable  ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrInvalidQuestion   ErrCode = "INVALID_QUESTION"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrScoreOutOfRange   ErrCode = "SCORE_OUT_OF_RANGE"
	ErrAttemptNotFound   ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAlreadySubmitted  ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrAttemptExpired    ErrCode = "ATTEMPT_EXPIRED"
	ErrQuestionCountDiff ErrCode = "QUESTION_COUNT_MISMATCH"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Attempt Tokens ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An attempt token is required."
	case ErrTokenInvalid:
		return "The attempt token is invalid or has expired."
	case ErrTokenMismatch:
		return "The attempt token does not belong to this attempt."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrQuizNotFound:
		return "Quiz not found."
	case ErrQuizNotAvailable:
		return "This quiz is not open for attempts right now."
	case ErrInvalidQuestion:
		return "One or more questions are malformed."
	case ErrUnknownQuestion:
		return "The question does not belong to this quiz."
	case ErrScoreOutOfRange:
		return "Score must be between 0 and the total number of questions."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrAttemptExpired:
		return "The time limit for this attempt has passed."
	case ErrQuestionCountDiff:
		return "Total questions does not match the quiz."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
