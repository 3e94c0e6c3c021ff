package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"twdataset/pkg/errors"
	"twdataset/pkg/logger"
	"twdataset/pkg/metrics"
	"twdataset/pkg/ratelimit"
	"twdataset/pkg/retry"
)

// Client is a bearer-token client for the X API v2 endpoints the collector uses
type Client struct {
	httpClient     *http.Client
	headers        map[string]string
	baseURL        string
	searchEndpoint string
	limiter        ratelimit.Limiter
	retry          *retry.Config
	logger         logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithSearchEndpoint selects recent or full-archive search
func WithSearchEndpoint(endpoint string) Option {
	return func(c *Client) { c.searchEndpoint = endpoint }
}

// WithLimiter paces every request through l
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetry retries network and server errors up to attempts times in total.
// The default is a single attempt.
func WithRetry(attempts int, backoff retry.BackoffStrategy) Option {
	return func(c *Client) {
		if backoff == nil {
			backoff = retry.DefaultExponentialBackoff()
		}
		c.retry = &retry.Config{MaxAttempts: attempts, Backoff: backoff, RetryIf: retry.DefaultRetryIf}
	}
}

// NewClient creates a client authenticating with bearerToken
func NewClient(bearerToken string, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers: map[string]string{
			"Authorization": "Bearer " + bearerToken,
			"Accept":        "application/json",
			"User-Agent":    "twdataset/1.0",
		},
		baseURL:        BaseURL,
		searchEndpoint: SearchRecentEndpoint,
		limiter:        ratelimit.Unlimited(),
		logger:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry != nil {
		c.retry.Logger = log
	}
	return c
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "request %s", req.URL.Path)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.Path, resp.StatusCode, duration)
	return resp, nil
}

// getJSON performs a GET and decodes the JSON body, retrying transient
// failures when the client has a retry policy
func (c *Client) getJSON(ctx context.Context, endpoint, url string, target interface{}) error {
	if c.retry == nil {
		return c.fetchJSON(ctx, endpoint, url, target)
	}
	return retry.Do(ctx, func() error {
		return c.fetchJSON(ctx, endpoint, url, target)
	}, c.retry)
}

// fetchJSON waits for the limiter, performs one GET and decodes the body
func (c *Client) fetchJSON(ctx context.Context, endpoint, url string, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, err, "waiting for rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}

	start := time.Now()
	resp, err := c.doRequest(req)
	if err != nil {
		metrics.ObserveRequest(endpoint, string(errors.ErrorTypeNetwork), time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp, endpoint); err != nil {
		metrics.ObserveRequest(endpoint, string(errors.TypeOf(err)), time.Since(start))
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveRequest(endpoint, string(errors.ErrorTypeNetwork), time.Since(start))
		return errors.Wrap(errors.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"endpoint":     endpoint,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		metrics.ObserveRequest(endpoint, string(errors.ErrorTypeParsing), time.Since(start))
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	metrics.ObserveRequest(endpoint, "ok", time.Since(start))
	return nil
}

// checkResponseStatus maps non-2xx responses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errType := errors.FromStatusCode(resp.StatusCode)
	if errType == errors.ErrorTypeRateLimit {
		logger.LogRateLimit(c.logger, endpoint, rateLimitReset(resp))
	}

	detail := http.StatusText(resp.StatusCode)
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(body, &problem) == nil {
		if problem.Detail != "" {
			detail = problem.Detail
		} else if problem.Title != "" {
			detail = problem.Title
		}
	}

	return errors.New(errType, resp.StatusCode, "%s: %s", endpoint, detail)
}

// rateLimitReset reads the x-rate-limit-reset epoch header
func rateLimitReset(resp *http.Response) time.Time {
	v := resp.Header.Get("x-rate-limit-reset")
	if v == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// Search fetches one page of search results
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResponse, error) {
	url := GetSearchURL(c.baseURL, c.searchEndpoint, p)

	c.logger.DebugWithFields("searching tweets", map[string]interface{}{
		"query":       p.Query,
		"max_results": ClampResults(p.MaxResults),
		"end_time":    p.EndTime,
	})

	var response SearchResponse
	if err := c.getJSON(ctx, "search", url, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// LookupUsers resolves up to MaxIDsPerLookup user ids. Unknown ids are
// reported in Errors rather than failing the call.
func (c *Client) LookupUsers(ctx context.Context, ids []string) (*UsersResponse, error) {
	if err := checkLookupSize(ids); err != nil {
		return nil, err
	}

	var response UsersResponse
	if err := c.getJSON(ctx, "users", GetUsersURL(c.baseURL, ids), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// LookupTweets fetches public metrics for up to MaxIDsPerLookup tweet ids
func (c *Client) LookupTweets(ctx context.Context, ids []string) (*TweetsResponse, error) {
	if err := checkLookupSize(ids); err != nil {
		return nil, err
	}

	var response TweetsResponse
	if err := c.getJSON(ctx, "tweets", GetTweetsURL(c.baseURL, ids), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func checkLookupSize(ids []string) error {
	if len(ids) == 0 {
		return errors.New(errors.ErrorTypeUnknown, 0, "lookup requires at least one id")
	}
	if len(ids) > MaxIDsPerLookup {
		return errors.New(errors.ErrorTypeUnknown, 0, "lookup accepts at most %d ids, got %d", MaxIDsPerLookup, len(ids))
	}
	return nil
}
