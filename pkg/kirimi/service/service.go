// Package service provides OTP and notification helpers on top of the Kirimi
// client. Service methods never return errors; every outcome is reported as a
// Result.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kirimi-id/kirimi-go/internal/log"
	"github.com/kirimi-id/kirimi-go/pkg/kirimi"
)

// EventTypeResult is the Event.Type of every published service outcome.
const EventTypeResult = "kirimi.result"

// MessageSender is the part of *kirimi.Client used by NotificationService.
type MessageSender interface {
	SendMessage(ctx context.Context, deviceID, receiver, message string, opts ...kirimi.MessageOption) (kirimi.Data, error)
}

// OTPClient is the part of *kirimi.Client used by OTPService.
type OTPClient interface {
	GenerateOTP(ctx context.Context, deviceID, phone string) (kirimi.Data, error)
	ValidateOTP(ctx context.Context, deviceID, phone, otp string) (kirimi.Data, error)
}

// Guard decides whether a recipient may be contacted. A non-nil error
// rejects the call before it reaches the API.
type Guard interface {
	Check(recipient string) error
}

// Result is the uniform outcome of a service call.
type Result struct {
	Success  bool        `json:"success"`
	Verified *bool       `json:"verified,omitempty"`
	Data     kirimi.Data `json:"data,omitempty"`
	Message  string      `json:"message"`
	Error    string      `json:"error,omitempty"`
}

// IsVerified reports the verified flag, treating an absent flag as false.
func (r Result) IsVerified() bool {
	return r.Verified != nil && *r.Verified
}

// Event describes one service outcome for an external observer.
type Event struct {
	Type      string `json:"type"`
	Operation string `json:"operation"`
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// Publisher receives an Event after each service call.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Option configures OTPService and NotificationService.
type Option func(*base)

// WithLogger sets the service logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPublisher reports every outcome to p. Publish errors are logged and
// do not change the returned Result.
func WithPublisher(p Publisher) Option {
	return func(b *base) {
		b.publisher = p
	}
}

// WithGuard screens every recipient through g before calling the API.
func WithGuard(g Guard) Option {
	return func(b *base) {
		b.guard = g
	}
}

// base holds what both services share.
type base struct {
	deviceID  string
	logger    *zap.Logger
	publisher Publisher
	guard     Guard
}

func newBase(deviceID, component string, opts []Option) base {
	b := base{
		deviceID: deviceID,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With(zap.String("component", component))
	return b
}

func (b *base) admit(recipient string) error {
	if b.guard == nil {
		return nil
	}
	return b.guard.Check(recipient)
}

func (b *base) succeeded(ctx context.Context, operation, recipient string, data kirimi.Data, message string) Result {
	b.logger.Debug("Operation succeeded",
		zap.String("operation", operation),
		zap.String("recipient", log.MaskString(recipient)))

	res := Result{Success: true, Data: data, Message: message}
	b.publish(ctx, operation, recipient, res)
	return res
}

func (b *base) failed(ctx context.Context, operation, recipient string, err error, message string) Result {
	b.logger.Warn("Operation failed",
		zap.String("operation", operation),
		zap.String("recipient", log.MaskString(recipient)),
		zap.Error(err))

	res := Result{Success: false, Error: errorMessage(err), Message: message}
	b.publish(ctx, operation, recipient, res)
	return res
}

func (b *base) publish(ctx context.Context, operation, recipient string, res Result) {
	if b.publisher == nil {
		return
	}
	evt := Event{
		Type:      EventTypeResult,
		Operation: operation,
		Recipient: log.MaskString(recipient),
		Success:   res.Success,
		Message:   res.Message,
		Error:     res.Error,
	}
	if err := b.publisher.Publish(ctx, evt); err != nil {
		b.logger.Error("Failed to publish result", zap.String("operation", operation), zap.Error(err))
	}
}

// errorMessage extracts the human readable part of err.
func errorMessage(err error) string {
	var apiErr *kirimi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func boolPtr(v bool) *bool {
	return &v
}
