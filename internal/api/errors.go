package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrForbidden is returned when the API answers 403, which for
	// family-scoped reads means the user is not a member of the family.
	ErrForbidden = errors.New("access denied")

	// ErrUnauthorized is returned when the upstream session is missing or expired.
	ErrUnauthorized = errors.New("authentication required")
)

// Error is an application-level rejection carrying the server's message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// Is lets errors.Is match the sentinel errors by status code.
func (e *Error) Is(target error) bool {
	return statusIs(e.Status, target)
}

// StatusError is a non-2xx response that carried no error message, such as a
// proxy's HTML error page. It is not a rejection, so callers show their own
// fallback text.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

func (e *StatusError) Is(target error) bool {
	return statusIs(e.Status, target)
}

func statusIs(status int, target error) bool {
	switch target {
	case ErrForbidden:
		return status == http.StatusForbidden
	case ErrUnauthorized:
		return status == http.StatusUnauthorized
	}
	return false
}

type errorResponse struct {
	Error string `json:"error"`
}

// parseError converts a response into an *Error, or a *StatusError when the
// body has no "error" field. It returns nil for 2xx responses unless the body
// still carries an "error" field.
func parseError(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	if status >= 200 && status < 300 {
		if er.Error != "" {
			return &Error{Status: status, Message: er.Error}
		}
		return nil
	}

	if er.Error == "" {
		return &StatusError{Status: status}
	}
	return &Error{Status: status, Message: er.Error}
}

// Message returns the text to show a user for err: the server's own words for
// application rejections, fallback for everything else.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsRejection reports whether err came back from the server, as opposed to a
// transport or decoding failure.
func IsRejection(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}
