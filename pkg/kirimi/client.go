// Package kirimi is a client for the Kirimi WhatsApp messaging API.
package kirimi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kirimi-id/kirimi-go/internal/log"
)

const (
	// DefaultEndpoint is the production API base URL.
	DefaultEndpoint = "https://api.kirimi.id"
	// DefaultTimeout bounds every request made by a Client.
	DefaultTimeout = 30 * time.Second

	sendMessagePath = "/v1/send-message"
	generateOTPPath = "/v1/generate-otp"
	validateOTPPath = "/v1/validate-otp"
	healthPath      = "/"
)

// Client sends requests to the Kirimi API. Credentials and endpoint are fixed
// at construction; a Client may be shared between goroutines.
type Client struct {
	userCode string
	secret   string
	endpoint string
	http     *resty.Client
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// WithEndpoint overrides DefaultEndpoint. Trailing slashes are removed.
// An empty string keeps the default.
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) {
		if endpoint != "" {
			o.endpoint = endpoint
		}
	}
}

// WithHTTPClient makes the Client send requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewClient creates a Kirimi API client for the given dashboard credentials.
func NewClient(userCode, secret string, opts ...Option) *Client {
	o := clientOptions{
		endpoint: DefaultEndpoint,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	endpoint := strings.TrimRight(o.endpoint, "/")

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(endpoint).
		SetTimeout(DefaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(o.logger.Sugar())

	return &Client{
		userCode: userCode,
		secret:   secret,
		endpoint: endpoint,
		http:     rc,
		logger:   o.logger.With(zap.String("component", "KirimiClient")),
	}
}

// UserCode returns the user code the client authenticates with.
func (c *Client) UserCode() string {
	return c.userCode
}

// Endpoint returns the normalised API base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendMessage sends a WhatsApp message from deviceID to receiver. Use
// WithMediaURL to attach media; without it the media_url field is omitted.
func (c *Client) SendMessage(ctx context.Context, deviceID, receiver, message string, opts ...MessageOption) (Data, error) {
	req := SendMessageRequest{
		UserCode: c.userCode,
		DeviceID: deviceID,
		Receiver: receiver,
		Message:  message,
		Secret:   c.secret,
	}
	for _, opt := range opts {
		opt(&req)
	}

	c.logger.Debug("Sending message",
		zap.String("receiver", log.MaskString(receiver)),
		zap.Bool("media", req.MediaURL != nil))

	return c.post(ctx, sendMessagePath, req, "Failed to send message", "Send message failed")
}

// GenerateOTP asks the API to generate an OTP and deliver it to phone.
func (c *Client) GenerateOTP(ctx context.Context, deviceID, phone string) (Data, error) {
	req := GenerateOTPRequest{
		UserCode: c.userCode,
		DeviceID: deviceID,
		Phone:    phone,
		Secret:   c.secret,
	}

	c.logger.Debug("Generating OTP", zap.String("phone", log.MaskString(phone)))

	return c.post(ctx, generateOTPPath, req, "Failed to generate OTP", "Generate OTP failed")
}

// ValidateOTP checks otp for phone. The returned Data conventionally carries
// a "verified" boolean.
func (c *Client) ValidateOTP(ctx context.Context, deviceID, phone, otp string) (Data, error) {
	req := ValidateOTPRequest{
		UserCode: c.userCode,
		DeviceID: deviceID,
		Phone:    phone,
		OTP:      otp,
		Secret:   c.secret,
	}

	c.logger.Debug("Validating OTP", zap.String("phone", log.MaskString(phone)))

	return c.post(ctx, validateOTPPath, req, "Failed to validate OTP", "Validate OTP failed")
}

// HealthCheck returns the API status document as-is. An empty body yields an
// empty map.
func (c *Client) HealthCheck(ctx context.Context) (map[string]any, error) {
	resp, err := c.http.R().SetContext(ctx).Get(healthPath)
	if err != nil {
		return nil, transportError(err)
	}

	c.logger.Debug("Received health response", zap.Int("statusCode", resp.StatusCode()))

	if resp.IsError() {
		return nil, c.responseError(http.MethodGet, healthPath, resp, "Health check failed")
	}

	body := map[string]any{}
	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		c.logger.Debug("Health response is not a JSON object", zap.Error(err))
		return map[string]any{}, nil
	}
	return body, nil
}

// post performs a /v1 call and unwraps the response envelope.
func (c *Client) post(ctx context.Context, path string, payload any, fallback, failPrefix string) (Data, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		c.logger.Debug("Request failed", zap.String("path", path), zap.Error(err))
		return nil, transportError(err)
	}

	c.logger.Debug("Received response", zap.String("path", path), zap.Int("statusCode", resp.StatusCode()))

	if resp.IsError() {
		return nil, c.responseError(http.MethodPost, path, resp, failPrefix)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		c.logger.Debug("Undecodable response body", zap.String("path", path), zap.Error(err))
		return nil, &APIError{Message: fallback}
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		return nil, &APIError{Message: msg}
	}

	return env.data(), nil
}

// responseError builds the error for a non-2xx response, preferring the
// "message" field of a JSON body over the generic status text.
func (c *Client) responseError(method, path string, resp *resty.Response, prefix string) *APIError {
	detail := fmt.Sprintf("%s %s resulted in a `%s` response", method, c.endpoint+path, resp.Status())

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		detail = body.Message
	}

	c.logger.Debug("API returned an error status",
		zap.String("path", path),
		zap.Int("statusCode", resp.StatusCode()),
		zap.String("detail", detail))

	return &APIError{
		Message: prefix + ": " + detail,
		Code:    resp.StatusCode(),
	}
}

func transportError(err error) *APIError {
	return &APIError{
		Message: "HTTP request failed: " + err.Error(),
		Err:     err,
	}
}
