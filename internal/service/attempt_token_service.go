package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/model"
)

const attemptTokenIssuer = "quizarena"

// AttemptClaims binds a token to one attempt of one learner.
type AttemptClaims struct {
	jwt.RegisteredClaims
	AttemptID string `json:"attempt_id"`
	QuizID    int64  `json:"quiz_id"`
	LearnerID string `json:"learner_id"`
}

// AttemptTokenService issues and validates attempt tokens. A token expires a
// short grace period after the attempt's deadline.
type AttemptTokenService struct {
	secret []byte
	grace  time.Duration
}

// NewAttemptTokenService creates a new AttemptTokenService.
func NewAttemptTokenService(cfg *config.Config) *AttemptTokenService {
	return &AttemptTokenService{
		secret: []byte(cfg.AttemptTokenSecret),
		grace:  cfg.AttemptGrace,
	}
}

// Issue signs a token for the attempt described by meta.
func (s *AttemptTokenService) Issue(meta model.AttemptMeta) (string, error) {
	claims := AttemptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        meta.AttemptID.String(),
			Issuer:    attemptTokenIssuer,
			Subject:   meta.LearnerID,
			IssuedAt:  jwt.NewNumericDate(meta.StartedAt),
			ExpiresAt: jwt.NewNumericDate(meta.Deadline.Add(s.grace)),
		},
		AttemptID: meta.AttemptID.String(),
		QuizID:    meta.QuizID,
		LearnerID: meta.LearnerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and validates an attempt token, returning its claims.
func (s *AttemptTokenService) Validate(tokenStr string) (*AttemptClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AttemptClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(attemptTokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*AttemptClaims)
	if !ok || !token.Valid || claims.AttemptID == "" {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
