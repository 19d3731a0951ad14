// Package content implements the LabSim content service API client. The
// engine is not the source of truth for scenario tasks, workstations or
// remedial resources; it fetches them from the content service to resolve
// task difficulty, XP rewards and recommendation candidates.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/labsim-hub/labsim-progression-engine/pkg/circuitbreaker"
	"github.com/labsim-hub/labsim-progression-engine/pkg/logger"
	"github.com/labsim-hub/labsim-progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the content service client.
type ClientConfig struct {
	// BaseURL is the content service base URL.
	BaseURL string

	// APIKey authenticates the engine against the service.
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// RateLimiter throttles outbound requests.
	RateLimiter RateLimiterConfig

	// Logger for structured logging.
	Logger *logger.Logger

	// Debug enables request-level debug logging.
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:     baseURL,
		Timeout:     15 * time.Second,
		RateLimiter: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the content service API client. Requests go through a rate
// limiter, a retrier and a circuit breaker; a dead content service must
// not take the scoring path down with it.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	log         *logger.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
}

// NewClient creates a content service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		log:         config.Logger.With(logger.Component("content_client")),
		rateLimiter: NewRateLimiter(config.RateLimiter),
		breaker: circuitbreaker.New("content_api",
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithTimeout(30*time.Second),
		),
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(300*time.Millisecond),
			retry.WithMaxDelay(5*time.Second),
			retry.WithMultiplier(2.0),
			retry.WithJitter(0.2),
		),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetTask fetches a single task by ID.
func (c *Client) GetTask(ctx context.Context, taskID shared.TaskID) (*TaskDTO, error) {
	path := "/tasks/" + url.PathEscape(string(taskID))

	var response APIResponse[TaskDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if !response.Success {
		return nil, fmt.Errorf("get task %s: api error: %s", taskID, response.Error)
	}
	return &response.Data, nil
}

// ListTasks fetches all tasks belonging to a workstation.
func (c *Client) ListTasks(ctx context.Context, workstationID shared.WorkstationID) ([]TaskDTO, error) {
	path := "/workstations/" + url.PathEscape(string(workstationID)) + "/tasks"

	var response APIResponse[[]TaskDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", workstationID, err)
	}
	if !response.Success {
		return nil, fmt.Errorf("list tasks for %s: api error: %s", workstationID, response.Error)
	}
	return response.Data, nil
}

// GetWorkstation fetches a workstation by ID.
func (c *Client) GetWorkstation(ctx context.Context, workstationID shared.WorkstationID) (*WorkstationDTO, error) {
	path := "/workstations/" + url.PathEscape(string(workstationID))

	var response APIResponse[WorkstationDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("get workstation %s: %w", workstationID, err)
	}
	if !response.Success {
		return nil, fmt.Errorf("get workstation %s: api error: %s", workstationID, response.Error)
	}
	return &response.Data, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOURCE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListResources fetches the remedial resources for a workstation,
// including the generic ones the service attaches to every workstation.
func (c *Client) ListResources(ctx context.Context, workstationID shared.WorkstationID) ([]ResourceDTO, error) {
	path := "/workstations/" + url.PathEscape(string(workstationID)) + "/resources"

	var response APIResponse[[]ResourceDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, fmt.Errorf("list resources for %s: %w", workstationID, err)
	}
	if !response.Success {
		return nil, fmt.Errorf("list resources for %s: api error: %s", workstationID, response.Error)
	}
	return response.Data, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a request with rate limiting, retries and circuit
// breaking. Client errors (4xx) are permanent and are not retried.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return err
			}
			return c.doSingleRequest(ctx, method, path, body, result)
		})
	})
}

func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.log.Debug("content api request",
			logger.String("method", method),
			logger.String("path", path),
		)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.rateLimiter.RecordServerThrottle()
		retryAfter := 30 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: "content service throttled the client"}
	}

	if resp.StatusCode == http.StatusNotFound {
		return retry.Permanent(shared.ErrNotFound)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIErrorDTO
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Message != "" {
			if resp.StatusCode < 500 {
				return retry.Permanent(&apiErr)
			}
			return &apiErr
		}
		if resp.StatusCode < 500 {
			return retry.Permanent(fmt.Errorf("api error: status %d", resp.StatusCode))
		}
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy reports whether the content service is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var response APIResponse[map[string]interface{}]
	err := c.doSingleRequest(ctx, http.MethodGet, "/health", nil, &response)
	return err == nil && response.Success
}

// Reset clears the rate limiter and circuit breaker state.
func (c *Client) Reset() {
	c.rateLimiter.Reset()
	c.breaker.Reset()
}
