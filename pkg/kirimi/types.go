package kirimi

import "encoding/json"

// Data is the decoded "data" object of a successful API response.
type Data map[string]any

// Bool returns the boolean stored under key, or false when the key is missing
// or holds another type.
func (d Data) Bool(key string) bool {
	v, ok := d[key].(bool)
	return ok && v
}

// String returns the string stored under key, or "".
func (d Data) String(key string) string {
	v, _ := d[key].(string)
	return v
}

// envelope is the common response shape of the /v1 endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// data decodes the envelope payload. Anything that is not a JSON object
// (absent, null, an empty list) yields an empty Data.
func (e envelope) data() Data {
	d := Data{}
	if len(e.Data) == 0 {
		return d
	}
	if err := json.Unmarshal(e.Data, &d); err != nil || d == nil {
		return Data{}
	}
	return d
}

// errorBody is the subset of an error response used to build error messages.
type errorBody struct {
	Message string `json:"message"`
}

// SendMessageRequest is the payload for POST /v1/send-message.
type SendMessageRequest struct {
	UserCode string  `json:"user_code"`
	DeviceID string  `json:"device_id"`
	Receiver string  `json:"receiver"`
	Message  string  `json:"message"`
	Secret   string  `json:"secret"`
	MediaURL *string `json:"media_url,omitempty"`
}

// GenerateOTPRequest is the payload for POST /v1/generate-otp.
type GenerateOTPRequest struct {
	UserCode string `json:"user_code"`
	DeviceID string `json:"device_id"`
	Phone    string `json:"phone"`
	Secret   string `json:"secret"`
}

// ValidateOTPRequest is the payload for POST /v1/validate-otp.
type ValidateOTPRequest struct {
	UserCode string `json:"user_code"`
	DeviceID string `json:"device_id"`
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	Secret   string `json:"secret"`
}

// MessageOption customises a send-message request.
type MessageOption func(*SendMessageRequest)

// WithMediaURL attaches a media URL (image, document, ...) to the message.
func WithMediaURL(url string) MessageOption {
	return func(r *SendMessageRequest) {
		r.MediaURL = &url
	}
}
