package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/review-console/internal/domain"
	"github.com/helixir/review-console/internal/observability"
)

const apiPrefix = "/api/v1/reviews"

// APIError is a non-2xx backend response that does not map to a more
// specific domain error.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps server-side failures onto the service-unavailable sentinel.
func (e *APIError) Unwrap() error {
	if e.StatusCode >= 500 {
		return domain.ErrServiceUnavailable
	}
	return nil
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the backend API base URL.
	BaseURL string
	// HTTP is the retrying transport. Required.
	HTTP *HTTPClient
	// Tokens supplies bearer tokens. Required.
	Tokens *TokenManager
	// MaxBodyBytes caps response body size when decoding.
	MaxBodyBytes int64
	// Logger is used for request diagnostics.
	Logger zerolog.Logger
	// Metrics records request durations and failures. Optional.
	Metrics *observability.Metrics
}

// Client is the authenticated client for the review backend. Responses are
// validated before conversion to domain models. A 401 triggers one token
// refresh and retry; a second 401 surfaces as domain.ErrSessionExpired.
// Client is safe for concurrent use.
type Client struct {
	baseURL      string
	http         *HTTPClient
	tokens       *TokenManager
	maxBodyBytes int64
	logger       zerolog.Logger
	metrics      *observability.Metrics
	validate     *validator.Validate
}

// NewClient creates a backend API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", cfg.BaseURL)
	}
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		http:         cfg.HTTP,
		tokens:       cfg.Tokens,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger.With().Str("component", "api_client").Logger(),
		metrics:      cfg.Metrics,
		validate:     validator.New(),
	}, nil
}

// CreateWorkflow starts a new review workflow from the intake form.
func (c *Client) CreateWorkflow(ctx context.Context, form domain.IntakeForm) (*domain.Workflow, error) {
	req := createWorkflowRequest{
		ResearchQuestion:  form.ResearchQuestion,
		InclusionCriteria: form.InclusionCriteria,
		ExclusionCriteria: form.ExclusionCriteria,
		Databases:         form.Databases,
	}
	if err := c.validate.Struct(&req); err != nil {
		return nil, domain.NewValidationError("research_question", "must be a question of at least 10 characters")
	}

	var resp workflowResponse
	if err := c.do(ctx, "create_workflow", http.MethodPost, apiPrefix, req, &resp, "workflow", ""); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordWorkflowCreated()
	}
	return toDomainWorkflow(&resp), nil
}

// GetWorkflow fetches the current state of one workflow.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}
	var resp workflowResponse
	path := apiPrefix + "/" + url.PathEscape(id)
	if err := c.do(ctx, "get_workflow", http.MethodGet, path, nil, &resp, "workflow", id); err != nil {
		return nil, err
	}
	return toDomainWorkflow(&resp), nil
}

// GetManuscript fetches the generated manuscript of a completed workflow.
func (c *Client) GetManuscript(ctx context.Context, workflowID string) (*domain.Manuscript, error) {
	if workflowID == "" {
		return nil, domain.NewValidationError("workflow_id", "must not be empty")
	}
	var resp manuscriptResponse
	path := apiPrefix + "/" + url.PathEscape(workflowID) + "/manuscript"
	err := c.do(ctx, "get_manuscript", http.MethodGet, path, nil, &resp, "manuscript", workflowID)
	if c.metrics != nil {
		c.metrics.RecordManuscriptFetch(err == nil)
	}
	if err != nil {
		return nil, err
	}
	return toDomainManuscript(&resp), nil
}

// ListWorkflows fetches the workflow history, newest first.
func (c *Client) ListWorkflows(ctx context.Context) ([]domain.WorkflowSummary, error) {
	var resp workflowListResponse
	if err := c.do(ctx, "list_workflows", http.MethodGet, apiPrefix, nil, &resp, "workflow", ""); err != nil {
		return nil, err
	}
	summaries := make([]domain.WorkflowSummary, len(resp.Workflows))
	for i := range resp.Workflows {
		summaries[i] = toDomainSummary(&resp.Workflows[i])
	}
	return summaries, nil
}

// DeleteWorkflow removes a workflow and its artifacts on the backend.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewValidationError("id", "must not be empty")
	}
	path := apiPrefix + "/" + url.PathEscape(id)
	return c.do(ctx, "delete_workflow", http.MethodDelete, path, nil, nil, "workflow", id)
}

// ResumeWorkflow asks the backend to continue a workflow that paused for
// human review. The returned record reflects the post-resume status.
func (c *Client) ResumeWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}
	var resp workflowResponse
	path := apiPrefix + "/" + url.PathEscape(id) + "/resume"
	if err := c.do(ctx, "resume_workflow", http.MethodPost, path, nil, &resp, "workflow", id); err != nil {
		return nil, err
	}
	return toDomainWorkflow(&resp), nil
}

// RerunStage requests a re-run of a single named stage.
func (c *Client) RerunStage(ctx context.Context, id, stage string) (*domain.StageRerunResult, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}
	if stage == "" {
		return nil, domain.NewValidationError("stage", "must not be empty")
	}
	var resp rerunStageResponse
	path := apiPrefix + "/" + url.PathEscape(id) + "/stages/" + url.PathEscape(stage) + "/rerun"
	err := c.do(ctx, "rerun_stage", http.MethodPost, path, nil, &resp, "stage", stage)
	if c.metrics != nil {
		c.metrics.RecordStageRerun(stage, err == nil && resp.Success)
	}
	if err != nil {
		return nil, err
	}
	return &domain.StageRerunResult{
		Success: resp.Success,
		Error:   resp.Error,
		Cost:    resp.Cost,
	}, nil
}

// do performs one authenticated request with a single refresh-and-retry on
// 401. body and out may be nil. entity and entityID shape the 404 error.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any, entity, entityID string) error {
	start := time.Now()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		c.recordFailure(operation, "transport")
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.logger.Debug().Str("operation", operation).Msg("401 from backend, refreshing token")
		c.tokens.Invalidate()

		resp, err = c.send(ctx, method, path, payload)
		if err != nil {
			c.recordFailure(operation, "transport")
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			c.recordFailure(operation, "session_expired")
			return fmt.Errorf("authentication rejected after token refresh: %w", domain.ErrSessionExpired)
		}
	}
	defer drain(resp)

	if c.metrics != nil {
		c.metrics.RecordAPIRequest(operation, statusClass(resp.StatusCode), time.Since(start).Seconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(operation, resp, entity, entityID)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBodyBytes)).Decode(out); err != nil {
		c.recordFailure(operation, "decode")
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := c.validate.Struct(out); err != nil {
		c.recordFailure(operation, "validation")
		return fmt.Errorf("backend response failed validation: %w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// send builds and executes one request attempt with a fresh bearer token.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("no valid session: %w: %w", domain.ErrUnauthorized, err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", requestID)
	// Correlation headers for backend-side tracing, when the caller set them.
	if workflowID := observability.WorkflowIDFromContext(ctx); workflowID != "" {
		req.Header.Set("X-Workflow-Id", workflowID)
	}
	if sessionID := observability.SessionIDFromContext(ctx); sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}
	token.SetAuthHeader(req)

	return c.http.Do(req)
}

// errorFromResponse maps a non-2xx response to a domain error.
func (c *Client) errorFromResponse(operation string, resp *http.Response, entity, entityID string) error {
	var envelope apiErrorResponse
	message := ""
	if data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes)); err == nil {
		if json.Unmarshal(data, &envelope) == nil {
			message = envelope.Message
			if message == "" {
				message = envelope.Error
			}
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		c.recordFailure(operation, "not_found")
		return domain.NewNotFoundError(entity, entityID)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		c.recordFailure(operation, "invalid_input")
		if message == "" {
			message = "request rejected"
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, message)
	case http.StatusTooManyRequests:
		c.recordFailure(operation, "rate_limited")
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, message)
	case http.StatusForbidden:
		c.recordFailure(operation, "forbidden")
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, message)
	default:
		c.recordFailure(operation, statusClass(resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
}

func (c *Client) recordFailure(operation, errorType string) {
	if c.metrics != nil {
		c.metrics.RecordAPIRequestFailed(operation, errorType)
	}
}

// statusClass collapses a status code into its class label ("2xx", "4xx").
func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// drain fully consumes and closes a response body so the underlying
// connection can be reused.
func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
