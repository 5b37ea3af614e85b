package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/internal/tracing"
)

const (
	healthTimeout       = 5 * time.Second
	capabilitiesTimeout = 10 * time.Second
	maxResponseBytes    = 4 << 20
)

// RemoteConfig configures a RemoteClient.
type RemoteConfig struct {
	Name    string
	URL     string
	Timeout time.Duration
	Retry   RetryPolicy
	// HTTPClient overrides the default client; its Timeout is left alone.
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// RemoteClient talks to an agent server over HTTP.
type RemoteClient struct {
	name    string
	baseURL string
	timeout time.Duration
	retry   RetryPolicy
	client  *http.Client
	logger  zerolog.Logger
}

// NewRemoteClient validates cfg and fills defaults.
func NewRemoteClient(cfg RemoteConfig) (*RemoteClient, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("agent name is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid agent url %q", cfg.URL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	def := DefaultRetryPolicy()
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = def.MaxRetries
	}
	if cfg.Retry.BackoffFactor <= 0 {
		cfg.Retry.BackoffFactor = def.BackoffFactor
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	rc := &RemoteClient{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		client:  client,
		logger:  logger.With().Str("agent", cfg.Name).Logger(),
	}

	rc.logger.Info().
		Str("url", rc.baseURL).
		Dur("timeout", rc.timeout).
		Int("max_retries", rc.retry.MaxRetries).
		Msg("Remote agent client initialized")
	return rc, nil
}

func (c *RemoteClient) Name() string { return c.name }

// URL returns the agent's base URL.
func (c *RemoteClient) URL() string { return c.baseURL }

type queryRequest struct {
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context"`
}

type queryReply struct {
	Response *string                `json:"response"`
	Content  *string                `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// attemptError classifies one failed attempt.
type attemptError struct {
	err       error
	timeout   bool
	retryable bool
}

// Query sends message to {base}/query. Timeouts, 429, 5xx and connection
// errors are retried up to MaxRetries attempts in total; other failures end
// the call at once.
func (c *RemoteClient) Query(ctx context.Context, message string, queryContext map[string]interface{}) Response {
	ctx = tracing.WithAgent(ctx, c.name)
	ctx, span := tracing.StartSpan(ctx, "eap.agent", "agent.query",
		attribute.String("agent", c.name),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	if queryContext == nil {
		queryContext = map[string]interface{}{}
	}
	payload, err := json.Marshal(queryRequest{Message: message, Context: queryContext})
	if err != nil {
		resp := Failure(c.name, fmt.Sprintf("Unexpected error: %v", err), map[string]interface{}{"attempts": 1})
		observability.RecordAgentRequest(c.name, time.Since(start), false, 1)
		tracing.FailSpan(span, err, "encode failed")
		return resp
	}

	maxAttempts := c.retry.MaxRetries
	var last *attemptError

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Delay(attempt - 1)
			logger.Info().Dur("delay", delay).Int("attempt", attempt+1).Msg("Retrying agent query")
			if err := sleep(ctx, delay); err != nil {
				return c.fail(span, start, attempt, fmt.Sprintf("Agent %s query cancelled: %v", c.name, err))
			}
		}

		resp, aerr := c.queryOnce(ctx, payload, attempt)
		if aerr == nil {
			logger.Info().
				Int("attempt", attempt+1).
				Int("max_retries", maxAttempts).
				Msg("Agent responded")
			observability.RecordAgentRequest(c.name, time.Since(start), true, attempt+1)
			return resp
		}
		last = aerr

		if ctx.Err() != nil {
			return c.fail(span, start, attempt+1, fmt.Sprintf("Agent %s query cancelled: %v", c.name, ctx.Err()))
		}
		if !aerr.retryable {
			logger.Error().Err(aerr.err).Int("attempt", attempt+1).Msg("Agent query failed")
			return c.fail(span, start, attempt+1, fmt.Sprintf("Unexpected error: %v", aerr.err))
		}

		logger.Warn().
			Err(aerr.err).
			Bool("timeout", aerr.timeout).
			Int("attempt", attempt+1).
			Int("max_retries", maxAttempts).
			Msg("Agent query attempt failed")
	}

	var msg string
	if last != nil && last.timeout {
		msg = fmt.Sprintf("Agent %s timed out after %d attempts", c.name, maxAttempts)
	} else {
		msg = fmt.Sprintf("Agent %s failed after %d attempts: %v", c.name, maxAttempts, last.err)
	}
	logger.Error().Msg(msg)
	return c.fail(span, start, maxAttempts, msg)
}

func (c *RemoteClient) fail(span trace.Span, start time.Time, attempts int, msg string) Response {
	observability.RecordAgentRequest(c.name, time.Since(start), false, attempts)
	tracing.FailSpan(span, errors.New(msg), "agent query failed")
	return Failure(c.name, msg, map[string]interface{}{"attempts": attempts})
}

func (c *RemoteClient) queryOnce(ctx context.Context, payload []byte, attempt int) (Response, *attemptError) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return Response{}, &attemptError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := tracing.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	sent := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(sent)
	if err != nil {
		return Response{}, classifyTransportError(err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Response{}, &attemptError{
			err:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			retryable: true,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &attemptError{
			err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	if err := validateResponseBody(body); err != nil {
		return Response{}, &attemptError{err: err}
	}
	var reply queryReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Response{}, &attemptError{err: fmt.Errorf("malformed response body: %w", err)}
	}

	content := ""
	if reply.Response != nil {
		content = *reply.Response
	} else if reply.Content != nil {
		content = *reply.Content
	}

	metadata := map[string]interface{}{
		"status_code":   resp.StatusCode,
		"response_time": elapsed.Seconds(),
		"attempt":       attempt + 1,
	}
	for k, v := range reply.Metadata {
		metadata[k] = v
	}

	return Response{
		Content:   content,
		AgentName: c.name,
		Metadata:  metadata,
		Success:   true,
	}, nil
}

// classifyTransportError marks timeouts and connection failures retryable.
func classifyTransportError(err error) *attemptError {
	ae := &attemptError{err: err, retryable: true}
	if errors.Is(err, context.DeadlineExceeded) {
		ae.timeout = true
		return ae
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		ae.timeout = true
	}
	return ae
}

// IsAvailable checks {base}/health, then the base URL itself.
func (c *RemoteClient) IsAvailable(ctx context.Context) bool {
	if code, err := c.get(ctx, c.baseURL+"/health", healthTimeout, nil); err == nil && code == http.StatusOK {
		return true
	}

	code, err := c.get(ctx, c.baseURL, healthTimeout, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Agent is not available")
		return false
	}
	if code >= 500 {
		c.logger.Warn().Int("status", code).Msg("Agent returned server error")
		return false
	}
	return true
}

// Capabilities fetches {base}/capabilities, or an empty list on any failure.
func (c *RemoteClient) Capabilities(ctx context.Context) []string {
	var reply struct {
		Capabilities []string `json:"capabilities"`
	}
	code, err := c.get(ctx, c.baseURL+"/capabilities", capabilitiesTimeout, &reply)
	if err != nil || code != http.StatusOK {
		c.logger.Warn().Err(err).Int("status", code).Msg("Could not retrieve capabilities")
		return []string{}
	}
	if reply.Capabilities == nil {
		return []string{}
	}
	return reply.Capabilities
}

// get issues a GET and decodes a 200 JSON body into out when out is non-nil.
func (c *RemoteClient) get(ctx context.Context, target string, timeout time.Duration, out interface{}) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	}
	return resp.StatusCode, nil
}
