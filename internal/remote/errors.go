package remote

import (
	"errors"
	"fmt"
)

const codeInvalidTimeRange = "bad_request.invalid_time_range"

var (
	ErrUnauthorized     = errors.New("remote: access token rejected")
	ErrRateLimited      = errors.New("remote: rate limit exceeded")
	ErrInvalidTimeRange = errors.New("remote: time range too large")
	ErrNoAccessToken    = errors.New("remote: no access token")
	ErrMalformedBody    = errors.New("remote: malformed response body")
)

// APIError описывает ответ API с кодом, который не разобран отдельной ошибкой.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}
