// Package cloudstack talks to the CloudStack API: signed requests, async job
// status, and the create-if-needed flows built on the job protocol.
package cloudstack

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // CloudStack mandates HMAC-SHA1 request signatures
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/celestiaorg/cloudjob/internal/config"
	"github.com/celestiaorg/cloudjob/internal/job"
	"github.com/celestiaorg/cloudjob/internal/logger"
)

// APIError represents an error returned by the CloudStack API
type APIError struct {
	Code        int    `json:"errorcode"`
	CSErrorCode int    `json:"cserrorcode"`
	Text        string `json:"errortext"`
	Status      int    `json:"-"`
	Command     string `json:"-"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	return fmt.Sprintf("CloudStack API error: %s - %d: %s (status: %d)", e.Command, e.Code, e.Text, e.Status)
}

// IsNotFound returns true if the error reports a missing resource
func (e *APIError) IsNotFound() bool {
	text := strings.ToLower(e.Text)
	return e.Status == http.StatusNotFound ||
		strings.Contains(text, "does not exist") ||
		strings.Contains(text, "unable to find")
}

// IsAlreadyExists returns true if the error reports a name collision. The
// prefix also matches the API's own "already exisits" spelling.
func (e *APIError) IsAlreadyExists() bool {
	return strings.Contains(strings.ToLower(e.Text), "already exis")
}

// IsRateLimited returns true if the error is a rate limit error
func (e *APIError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Is maps API errors onto the job package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case job.ErrResourceAlreadyExists:
		return e.IsAlreadyExists()
	case job.ErrNotFound:
		return e.IsNotFound()
	}
	return false
}

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	retryWaitMin   = 500 * time.Millisecond
	retryWaitMax   = 5 * time.Second
)

// Client is a CloudStack API client
type Client struct {
	httpClient *retryablehttp.Client
	config     config.CloudStackConfig
	endpoint   string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client, keeping the retry layer
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient.HTTPClient = hc
	}
}

// WithRetryWait overrides the bounds between transport retries
func WithRetryWait(minWait, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.RetryWaitMin = minWait
		c.httpClient.RetryWaitMax = maxWait
	}
}

// NewClient creates a new CloudStack API client
func NewClient(cfg *config.CloudStackConfig, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.HTTPClient.Timeout = defaultTimeout
	rc.Logger = logger.NewLeveled("cloudstack")
	rc.CheckRetry = checkRetry
	// Hand the last response back after the final retry so its API error can be parsed
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		httpClient: rc,
		config:     *cfg,
		endpoint:   strings.TrimSuffix(cfg.APIURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// checkRetry retries transport errors and the status codes in shouldRetry
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return shouldRetry(resp.StatusCode), nil
}

// shouldRetry determines if a request should be retried based on the status code
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // Rate limit
		http.StatusInternalServerError, // Server error
		http.StatusBadGateway,          // Bad gateway
		http.StatusServiceUnavailable,  // Service unavailable
		http.StatusGatewayTimeout:      // Gateway timeout
		return true
	default:
		return false
	}
}

// encodeQuery sorts parameters by key and escapes spaces as %20, which is the
// form the signature is computed over
func encodeQuery(params url.Values) string {
	return strings.ReplaceAll(params.Encode(), "+", "%20")
}

// sign computes the request signature for an encoded query string
func sign(query, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(strings.ToLower(query)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) signedURL(command string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("command", command)
	q.Set("response", "json")
	q.Set("apiKey", c.config.APIKey)

	query := encodeQuery(q)
	return fmt.Sprintf("%s?%s&signature=%s", c.endpoint, query, url.QueryEscape(sign(query, c.config.SecretKey)))
}

// do runs command and decodes the unwrapped response into v
func (c *Client) do(ctx context.Context, command string, params url.Values, v interface{}) error {
	logger.Debugf("Making CloudStack request: command=%s, params=%s", command, params.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.signedURL(command, params), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", command, err)
	}
	return c.parseResponse(command, resp, v)
}

// parseResponse strips the "<command>response" envelope and handles errors
func (c *Client) parseResponse(command string, resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	logger.Debugf("Parsing CloudStack response: command=%s, status_code=%d, body=%s", command, resp.StatusCode, string(body))

	payload := unwrap(command, body)

	if resp.StatusCode >= 400 {
		apiError := APIError{Status: resp.StatusCode, Command: command}
		if err := json.Unmarshal(payload, &apiError); err != nil || apiError.Text == "" {
			apiError.Text = strings.TrimSpace(string(body))
		}
		return &apiError
	}

	if v != nil {
		if err := json.Unmarshal(payload, v); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", command, err)
		}
	}
	return nil
}

// unwrap returns the object under the envelope key, or body when there is none
func unwrap(command string, body []byte) json.RawMessage {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	if inner, ok := envelope[strings.ToLower(command)+"response"]; ok {
		return inner
	}
	if len(envelope) == 1 {
		for key, inner := range envelope {
			if strings.HasSuffix(key, "response") {
				return inner
			}
		}
	}
	return body
}

// asyncResponse is the immediate answer to an asynchronous command
type asyncResponse struct {
	ID    string `json:"id"`
	JobID string `json:"jobid"`
}

// doAsync runs an asynchronous command and returns its handle
func (c *Client) doAsync(ctx context.Context, command string, params url.Values) (job.Handle, error) {
	var resp asyncResponse
	if err := c.do(ctx, command, params, &resp); err != nil {
		return job.Handle{}, err
	}
	return job.Handle{ResourceID: resp.ID, JobID: resp.JobID}, nil
}

// doAsyncIfExists is doAsync for removals: a missing target yields an empty
// handle since there is nothing to wait for
func (c *Client) doAsyncIfExists(ctx context.Context, command string, params url.Values) (job.Handle, error) {
	h, err := c.doAsync(ctx, command, params)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		logger.Debugf("%s target not found, nothing to wait for", command)
		return job.Handle{}, nil
	}
	return h, err
}
