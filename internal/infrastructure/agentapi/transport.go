package agentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

const maxResponseBytes = 16 << 20

// envelope is the success/error wrapper every agent endpoint responds with.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, operation string, build func(context.Context) (*http.Request, error), out any) error {
	req, err := build(ctx)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode >= 300 {
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Success != nil && !*env.Success {
			return collaboratorFailure(operation, env.Error)
		}
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), 2048),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// collaboratorFailure reports a failure the agent explained itself; its text
// is shown to the user as-is.
func collaboratorFailure(operation, message string) error {
	return fmt.Errorf("agent %s: %w", operation, domain.NewUserError(domain.ErrCollaborator, strings.TrimSpace(message)))
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
