// Package http executes single outbound API calls: it merges
// server-wide and per-call request pieces, brackets the network call
// with the rate limiter's hooks, classifies the response, and emits
// structured before/after log entries.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/quadra-edu/sisapi/internal/constants"
	"github.com/quadra-edu/sisapi/internal/ratelimit"
	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// Request describes one outbound call. Params, Headers and Form are
// merged over the client's server-wide base maps, per-call keys winning.
type Request struct {
	// Description is a short human label, "VERB noun" form, used in logs.
	Description string
	Method      string
	URI         string
	Params      url.Values
	Headers     nethttp.Header
	Form        url.Values

	// Silent suppresses the before/after log entries for this call.
	Silent bool
	// Critical raises the failure log to critical severity.
	Critical bool
}

// Response is the classified outcome of a call. A transport failure or
// non-200 status yields Successful == false with diagnostics attached;
// it is never surfaced as an error from Do.
type Response struct {
	// RequestID correlates the before/after log entries of one call.
	RequestID  string
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
	Successful bool
	// JSON is the decoded body on success; on failure it holds the
	// decoded error body when parseable, else the invalid-JSON marker.
	JSON interface{}
}

// Record returns the decoded body as a single record. Always non-nil,
// so callers can read fields without checking Successful first.
func (r *Response) Record() sisapi.Record {
	if object, ok := r.JSON.(map[string]interface{}); ok && r.Successful {
		return sisapi.Record(object)
	}

	return sisapi.Record{}
}

// Records returns the decoded body as a record list. Always non-nil,
// so callers can iterate without checking Successful first.
func (r *Response) Records() []sisapi.Record {
	list, ok := r.JSON.([]interface{})
	if !ok || !r.Successful {
		return []sisapi.Record{}
	}

	records := make([]sisapi.Record, 0, len(list))

	for _, item := range list {
		if object, ok := item.(map[string]interface{}); ok {
			records = append(records, sisapi.Record(object))
		}
	}

	return records
}

// Client executes requests against one base URL.
type Client struct {
	baseURL     string
	baseParams  url.Values
	baseHeaders nethttp.Header
	baseForm    url.Values
	httpClient  *retryablehttp.Client
	limiter     *ratelimit.Limiter
	logger      sisapi.Logger
	userAgent   string
	debug       bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger sisapi.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig tunes transport-level retries. Only connection
// failures are retried; HTTP statuses are classified, not retried.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds each network call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithBaseParams sets server-wide query params merged into every call.
func WithBaseParams(params url.Values) Option {
	return func(c *Client) {
		c.baseParams = params
	}
}

// WithDebug routes the transport's own retry chatter to the
// structured logger. Off by default; request/response logging is
// always on regardless.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithBaseHeaders sets server-wide headers merged into every call.
func WithBaseHeaders(headers nethttp.Header) Option {
	return func(c *Client) {
		c.baseHeaders = headers
	}
}

// NewClient creates an executor for baseURL gated by limiter.
func NewClient(baseURL string, limiter *ratelimit.Limiter, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil
	// Every HTTP status is an answer to classify, never a retry; only
	// connection-level failures are retried.
	retryClient.CheckRetry = func(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		return resp == nil && err != nil, nil
	}

	client := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		baseParams:  url.Values{},
		baseHeaders: nethttp.Header{},
		baseForm:    url.Values{},
		httpClient:  retryClient,
		limiter:     limiter,
		logger:      sisapi.NoopLogger{},
		userAgent:   "sisapi-go",
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.limiter == nil {
		client.limiter = ratelimit.NewLimiter(nil, client.logger)
	}

	if client.debug {
		client.httpClient.Logger = &transportLogger{logger: client.logger}
	}

	return client
}

// transportLogger adapts the structured logger to retryablehttp's
// leveled logging interface.
type transportLogger struct {
	logger sisapi.Logger
}

func (t *transportLogger) Error(msg string, keysAndValues ...interface{}) {
	t.logger.Error(msg, kvFields(keysAndValues))
}

func (t *transportLogger) Info(msg string, keysAndValues ...interface{}) {
	t.logger.Info(msg, kvFields(keysAndValues))
}

func (t *transportLogger) Debug(msg string, keysAndValues ...interface{}) {
	t.logger.Debug(msg, kvFields(keysAndValues))
}

func (t *transportLogger) Warn(msg string, keysAndValues ...interface{}) {
	t.logger.Warn(msg, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		fields[key] = keysAndValues[i+1]
	}

	return fields
}

// SetAPIKey attaches the API key to every subsequent request's params.
func (c *Client) SetAPIKey(apiKey string) {
	c.baseParams.Set("apiKey", apiKey)
}

// BaseURL returns the server-wide base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes the request. The only error it returns is the fatal
// per-server quota stop; transport and parsing failures are absorbed
// into the Successful/JSON contract.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL := c.baseURL + req.URI
	params := mergeValues(c.baseParams, req.Params)
	headers := mergeHeaders(c.baseHeaders, req.Headers)
	form := mergeValues(c.baseForm, req.Form)
	requestID := uuid.NewString()

	logFields := map[string]interface{}{
		"request_id":  requestID,
		"description": req.Description,
		"verb":        req.Method,
		"uri":         req.URI,
		"full_url":    fullURL,
		"params":      params.Encode(),
		"headers":     flattenHeaders(headers),
		"body":        form.Encode(),
	}

	if !req.Silent {
		c.logger.Info("API request", logFields)
	}

	err := c.limiter.RegisterRequest(fullURL)
	if err != nil {
		return nil, err
	}

	resp := &Response{RequestID: requestID}

	httpResp, err := c.send(ctx, req.Method, fullURL, params, headers, form)
	if err != nil {
		logFields["error"] = err.Error()
		c.logAfter(req, resp, logFields)

		return resp, nil
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	c.limiter.RegisterResponse(fullURL, httpResp.Header)

	resp.StatusCode = httpResp.StatusCode
	resp.Headers = httpResp.Header

	resp.Body, err = io.ReadAll(httpResp.Body)
	if err != nil {
		logFields["error"] = err.Error()
		c.logAfter(req, resp, logFields)

		return resp, nil
	}

	c.classify(resp)
	c.logAfter(req, resp, logFields)

	return resp, nil
}

// send performs the raw network call.
func (c *Client) send(ctx context.Context, method, fullURL string, params url.Values, headers nethttp.Header, form url.Values) (*nethttp.Response, error) {
	requestURL := fullURL
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, err
	}

	for key, values := range headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if len(form) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	httpReq.Header.Set("User-Agent", c.userAgent)

	return c.httpClient.Do(httpReq)
}

// classify marks the response successful iff the status is exactly 200
// and the body, when present, parses as JSON. A 200 with an
// unparseable body is a failure with a distinct diagnostic marker; a
// genuinely empty 200 body stays a success.
func (c *Client) classify(resp *Response) {
	resp.Successful = resp.StatusCode == constants.HTTPStatusOK

	if len(resp.Body) == 0 {
		return
	}

	var decoded interface{}

	err := json.Unmarshal(resp.Body, &decoded)
	if err != nil {
		resp.JSON = sisapi.InvalidJSONMarker

		if resp.Successful {
			resp.Successful = false
		}

		return
	}

	resp.JSON = decoded
}

// logAfter emits the response log entry: info on success, error on
// failure, critical when the request was marked critical.
func (c *Client) logAfter(req *Request, resp *Response, fields map[string]interface{}) {
	if req.Silent {
		return
	}

	fields["status_code"] = resp.StatusCode
	fields["successful"] = resp.Successful

	if resp.Successful {
		fields["response_data"] = resp.JSON
		c.logger.Info("API response", fields)

		return
	}

	fields["response_body"] = string(resp.Body)

	if resp.JSON != nil {
		fields["response_json"] = resp.JSON
	} else {
		fields["response_json"] = sisapi.InvalidJSONMarker
	}

	if req.Critical {
		c.logger.Critical("API response failed", fields)
	} else {
		c.logger.Error("API response failed", fields)
	}
}

// mergeValues merges per-call values over base values key-by-key.
func mergeValues(base, override url.Values) url.Values {
	merged := url.Values{}

	for key, values := range base {
		merged[key] = append([]string(nil), values...)
	}

	for key, values := range override {
		merged[key] = append([]string(nil), values...)
	}

	return merged
}

// mergeHeaders merges per-call headers over base headers key-by-key.
func mergeHeaders(base, override nethttp.Header) nethttp.Header {
	merged := nethttp.Header{}

	for key, values := range base {
		merged[key] = append([]string(nil), values...)
	}

	for key, values := range override {
		merged[key] = append([]string(nil), values...)
	}

	return merged
}

// flattenHeaders renders headers into a log-friendly map.
func flattenHeaders(headers nethttp.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key := range headers {
		flat[key] = headers.Get(key)
	}

	return flat
}
