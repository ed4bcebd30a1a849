package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/seedlab/sprout/internal/invoke"
)

// ErrResearchFailed is returned when the upstream research operation
// ends in a failed state.
var ErrResearchFailed = errors.New("research operation failed")

// errResearchRunning signals a poll attempt that found the operation
// still in flight. Internal to the poll loop.
var errResearchRunning = errors.New("research operation still running")

// StartResearch launches a long-running deep-research operation and
// returns its operation id. The invoker governs retries of the start
// call itself, not the operation's lifetime.
func (c *Client) StartResearch(ctx context.Context, inv *invoke.Invoker, prompt string) (string, error) {
	body, err := json.Marshal(researchStartRequest{
		Model:  c.researchModel,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal research request: %w", err)
	}

	resp, err := inv.Do(ctx, func(ctx context.Context) (*invoke.Response, error) {
		return c.post(ctx, "/v1/research", body)
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("research start rejected (status %d): %s", resp.StatusCode, resp.Body)
	}

	var op researchOperation
	if err := json.Unmarshal(resp.Body, &op); err != nil {
		return "", fmt.Errorf("failed to decode research response: %w", err)
	}
	if op.ID == "" {
		return "", fmt.Errorf("research start returned no operation id")
	}

	c.logger.Info("research operation started", "operation_id", op.ID)
	return op.ID, nil
}

// PollResearch polls the operation at a fixed interval until it
// completes, fails, or the deadline passes, and returns the report
// text. Transient poll errors count as attempts like any other.
func (c *Client) PollResearch(ctx context.Context, operationID string, interval, timeout time.Duration) (string, error) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	attempts := uint(timeout / interval)
	if attempts == 0 {
		attempts = 1
	}

	var output string
	err := retry.Do(
		func() error {
			op, err := c.fetchResearch(ctx, operationID)
			if err != nil {
				return err
			}
			switch op.Status {
			case "completed":
				output = op.Output
				return nil
			case "failed":
				msg := "unknown cause"
				if op.Error != nil {
					msg = op.Error.Message
				}
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrResearchFailed, msg))
			default:
				return fmt.Errorf("%w (operation=%s, status=%s)", errResearchRunning, operationID, op.Status)
			}
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	return output, nil
}

func (c *Client) fetchResearch(ctx context.Context, operationID string) (*researchOperation, error) {
	resp, err := c.get(ctx, "/v1/research/"+operationID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, retry.Unrecoverable(fmt.Errorf("research operation %s not found", operationID))
	}
	if !resp.OK() {
		return nil, fmt.Errorf("research poll failed (status %d): %s", resp.StatusCode, resp.Body)
	}

	var op researchOperation
	if err := json.Unmarshal(resp.Body, &op); err != nil {
		return nil, fmt.Errorf("failed to decode research status: %w", err)
	}
	return &op, nil
}
