package pharmacy

import (
	"fmt"

	"github.com/tidwall/gjson"
)

const DefaultErrorMessage = "An unexpected error occurred"

// APIError is the normalized form of every failed exchange with the pharmacy
// API, whether the request never got a response or the server rejected it.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`

	// Err is the transport or decoding failure behind the error, if any.
	Err error `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pharmacy api error %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("pharmacy api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// newAPIError builds an APIError from whatever is known about the failure.
// status 0 means no response was received.
func newAPIError(status int, body []byte, cause error) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    DefaultErrorMessage,
		Err:        cause,
	}
	if apiErr.StatusCode == 0 {
		apiErr.StatusCode = 500
	}

	if len(body) == 0 || !gjson.ValidBytes(body) {
		return apiErr
	}

	if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.Str != "" {
		apiErr.Message = msg.Str
	} else if detail := gjson.GetBytes(body, "detail"); detail.Type == gjson.String && detail.Str != "" {
		// FastAPI style error body
		apiErr.Message = detail.Str
	}

	// details is passed through in whatever shape the server chose
	if details := gjson.GetBytes(body, "details"); details.Exists() && details.Type != gjson.Null {
		apiErr.Details = details.Value()
	}

	return apiErr
}
