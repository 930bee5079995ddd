// Package client talks to the QuizArena HTTP API on behalf of a learner: it
// fetches quiz definitions and reports locally graded scores.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/quizarena/quizarena-backend/internal/model"
	"github.com/quizarena/quizarena-backend/internal/response"
)

// maxErrorBody bounds how much of a non-JSON error body is kept.
const maxErrorBody = 512

// APIError is a non-2xx reply from the API.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Client is a learner-side API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/v1".
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

// FetchQuiz loads the full quiz definition, answer key included.
func (c *Client) FetchQuiz(ctx context.Context, id int64) (*model.Quiz, error) {
	var data struct {
		Quiz *model.Quiz `json:"quiz"`
	}
	if err := c.do(ctx, http.MethodGet, "/quizzes/"+strconv.FormatInt(id, 10), nil, &data); err != nil {
		return nil, fmt.Errorf("fetch quiz %d: %w", id, err)
	}
	if data.Quiz == nil {
		return nil, fmt.Errorf("fetch quiz %d: empty response", id)
	}
	return data.Quiz, nil
}

// Report posts a graded score. The server queues it and replies 202. Only the
// score fields are sent; the server stamps trigger and time itself.
func (c *Client) Report(ctx context.Context, sub model.ResultSubmission) error {
	req := model.ReportResultRequest{
		QuizID:         sub.QuizID,
		LearnerID:      sub.LearnerID,
		LearnerName:    sub.LearnerName,
		Score:          sub.Score,
		TotalQuestions: sub.TotalQuestions,
	}
	if err := c.do(ctx, http.MethodPost, "/results", req, nil); err != nil {
		return fmt.Errorf("report result: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		} else if len(raw) > 0 {
			if len(raw) > maxErrorBody {
				raw = raw[:maxErrorBody]
			}
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return json.Unmarshal(env.Data, out)
}
