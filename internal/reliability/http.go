package reliability

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is a non-2xx response from an upstream HTTP service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s http status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s http status %d: %s", e.Service, e.Code, body)
}

// CheckResponse returns nil for 2xx responses. Otherwise it reads up to 4KB of
// the body into a *StatusError, marked retryable when the status is.
func CheckResponse(service string, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	err := &StatusError{Service: service, Code: res.StatusCode, Body: string(body)}
	if IsRetryableHTTPStatus(res.StatusCode) {
		return Retryable(err)
	}
	return err
}
