package service

import (
	"context"

	"github.com/kirimi-id/kirimi-go/pkg/kirimi"
)

const (
	opSendOTP   = "send_otp"
	opVerifyOTP = "verify_otp"
)

// OTPService sends and verifies one-time passwords from a fixed device.
type OTPService struct {
	base
	client OTPClient
}

// NewOTPService creates an OTPService sending from deviceID.
func NewOTPService(client OTPClient, deviceID string, opts ...Option) *OTPService {
	return &OTPService{
		base:   newBase(deviceID, "OTPService", opts),
		client: client,
	}
}

// NewOTPServiceWithCredentials builds its own client from dashboard credentials.
func NewOTPServiceWithCredentials(userCode, secret, deviceID string, clientOpts []kirimi.Option, opts ...Option) *OTPService {
	return NewOTPService(kirimi.NewClient(userCode, secret, clientOpts...), deviceID, opts...)
}

// Client returns the underlying API client.
func (s *OTPService) Client() OTPClient {
	return s.client
}

// DeviceID returns the sending device.
func (s *OTPService) DeviceID() string {
	return s.deviceID
}

// SendVerificationCode generates an OTP and delivers it to phone.
func (s *OTPService) SendVerificationCode(ctx context.Context, phone string) Result {
	if err := s.admit(phone); err != nil {
		return s.failed(ctx, opSendOTP, phone, err, "Failed to send OTP")
	}

	data, err := s.client.GenerateOTP(ctx, s.deviceID, phone)
	if err != nil {
		return s.failed(ctx, opSendOTP, phone, err, "Failed to send OTP")
	}
	return s.succeeded(ctx, opSendOTP, phone, data, "OTP sent to "+phone)
}

// VerifyCode validates code for phone. Success means the API call went
// through; Verified carries the API's verdict on the code itself.
func (s *OTPService) VerifyCode(ctx context.Context, phone, code string) Result {
	err := s.admit(phone)
	var data kirimi.Data
	if err == nil {
		data, err = s.client.ValidateOTP(ctx, s.deviceID, phone, code)
	}
	if err != nil {
		res := s.failed(ctx, opVerifyOTP, phone, err, "Failed to verify OTP")
		res.Verified = boolPtr(false)
		return res
	}

	res := s.succeeded(ctx, opVerifyOTP, phone, data, "OTP verified successfully")
	res.Verified = boolPtr(data.Bool("verified"))
	return res
}
