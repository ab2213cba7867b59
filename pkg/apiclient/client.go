package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/instance"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/metrics"
	"github.com/angelmondragon/buildmatch-client/pkg/types"
	"github.com/google/uuid"
)

const (
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 4 << 20
	errorBodyReadLimit    int64 = 8 << 10

	headerRequestID = "X-Request-ID"
	headerDeviceID  = "X-Device-ID"
)

var errBaseURLRequired = errors.New("api base url is required")

// TokenSource returns the bearer token for the current session, or "" when anonymous.
type TokenSource func() string

// Client issues REST calls against the marketplace API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
	deviceID   string
	metrics    *metrics.ClientMetrics
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithTokenSource attaches the bearer token provider.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		c.token = src
	}
}

func WithDeviceID(id string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			c.deviceID = trimmed
		}
	}
}

func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// NewClient builds an API client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		deviceID:   instance.GetID(),
		logg:       logger.Nop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return client, nil
}

// BaseURL returns the normalized API root shared with the realtime channel.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one API operation.
type call struct {
	op       string
	method   string
	path     string
	body     any
	public   bool
	token    string
	fallback string
}

func (c *Client) do(ctx context.Context, req call, out any) (err error) {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "api client not configured")
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(req.op, time.Since(start), err)
		if err != nil {
			c.logg.Debug(c.logg.WithField(ctx, "error", pkgerrors.Dump(err)), "api request failed")
		}
	}()

	var payload io.Reader
	if req.body != nil {
		raw, marshalErr := json.Marshal(req.body)
		if marshalErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, marshalErr, req.fallback)
		}
		payload = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.buildURL(req.path), payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, req.fallback)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)
	if c.deviceID != "" {
		httpReq.Header.Set(headerDeviceID, c.deviceID)
	}
	if token := c.bearer(req); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	ctx = c.logg.WithFields(ctx, map[string]any{"operation": req.op, "request_id": requestID})
	c.logg.Debug(ctx, "api request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, req.fallback).WithDetails(pkgerrors.RemoteDetails{
			Operation: req.op,
			RequestID: requestID,
		})
	}
	defer func() { _ = resp.Body.Close() }()

	if id := resp.Header.Get(headerRequestID); id != "" {
		requestID = id
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.responseError(req, resp, requestID)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, req.fallback)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, req.fallback).WithDetails(pkgerrors.RemoteDetails{
			Operation:  req.op,
			HTTPStatus: resp.StatusCode,
			RequestID:  requestID,
		})
	}
	return nil
}

func (c *Client) bearer(req call) string {
	if req.public {
		return ""
	}
	if req.token != "" {
		return req.token
	}
	if c.token == nil {
		return ""
	}
	return strings.TrimSpace(c.token())
}

// responseError surfaces the server's message when one is present and the
// per-operation fallback otherwise.
func (c *Client) responseError(req call, resp *http.Response, requestID string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	message, remoteCode := "", ""
	var body types.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		message, remoteCode = body.ResolveMessage()
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = req.fallback
	}

	cause := fmt.Errorf("%s %s: status %d", req.method, req.path, resp.StatusCode)
	return pkgerrors.Wrap(pkgerrors.CodeForStatus(resp.StatusCode), cause, message).WithDetails(pkgerrors.RemoteDetails{
		Operation:  req.op,
		HTTPStatus: resp.StatusCode,
		RequestID:  requestID,
		RemoteCode: remoteCode,
	})
}

// unwrapData strips the {"data": ...} success envelope when present.
func unwrapData(raw []byte) []byte {
	var envelope types.SuccessEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return raw
	}
	return data
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
