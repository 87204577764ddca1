package kirimi

import "fmt"

// APIError is returned by every Client operation that fails, whether the API
// answered with success=false or the request never completed.
type APIError struct {
	Message string
	Code    int   // HTTP status for non-2xx responses, otherwise 0
	Err     error // underlying transport error, if any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIError: [%d]: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
