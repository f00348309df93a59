package graphsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a failed call to the identity platform or Graph.
// StatusCode 0 means the request never produced a response (transport
// failure or timeout).
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("graphsdk: %s", e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("graphsdk: HTTP %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("graphsdk: HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Transient reports whether retrying the call later could succeed
// (timeouts, connection failures, 5xx).
func (e *APIError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// Rejected reports whether the remote service refused the credentials or
// request outright (4xx). Rejected calls must not be retried.
func (e *APIError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsTransient reports whether err is a transient APIError.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// IsRejected reports whether err is a rejected APIError.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Rejected()
}

// transportError wraps a failed round trip as a transient APIError.
func transportError(err error) *APIError {
	return &APIError{Description: err.Error()}
}

// parseErrorResponse maps a non-2xx identity platform response to an
// APIError. The platform uses the standard OAuth2 error body.
func parseErrorResponse(status int, body []byte) *APIError {
	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  status,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Graph wraps its errors one level deeper.
	var graphResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &graphResp); err == nil && graphResp.Error.Code != "" {
		return &APIError{
			StatusCode:  status,
			Code:        graphResp.Error.Code,
			Description: graphResp.Error.Message,
		}
	}

	return &APIError{StatusCode: status}
}
