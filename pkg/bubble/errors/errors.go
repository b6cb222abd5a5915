package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrBadRequest = fmt.Errorf("bad request")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrEndOfSequence = fmt.Errorf("end of sequence")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotConfigured = fmt.Errorf("not configured")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrUnauthorized = fmt.Errorf("unauthorized")

type bubbleError struct {
	msg    string
	code   int
	target error
}

func (m bubbleError) Error() string        { return m.msg }
func (m bubbleError) Is(target error) bool { return target == m.target }

func NewBadRequestError(msg string) error {
	return &bubbleError{
		msg:    msg,
		code:   http.StatusBadRequest,
		target: ErrBadRequest,
	}
}

func NewNotFoundError(msg string) error {
	return &bubbleError{
		msg:    msg,
		code:   http.StatusNotFound,
		target: ErrNotFound,
	}
}

func NewUnauthorizedError(code int, msg string) error {
	return &bubbleError{
		msg:    msg,
		code:   code,
		target: ErrUnauthorized,
	}
}

func NewInternalError(code int, msg string) error {
	return &bubbleError{
		msg:    msg,
		code:   code,
		target: ErrInternal,
	}
}

// StatusCode returns the HTTP status that caused err, or 0 if err did not
// originate from a remote response.
func StatusCode(err error) int {
	var be *bubbleError
	if stderrors.As(err, &be) {
		return be.code
	}
	return 0
}

// Remote status values that signal a missing object.
const (
	StatusNotFound    string = "NOT_FOUND"
	StatusMissingData string = "MISSING_DATA"
)

// NewErrorFromResponse translates a non-successful response from the data api
// into an error matching one of the sentinel errors in this package.
func NewErrorFromResponse(code int, contentType string, body []byte) error {
	status, message := parseErrorBody(contentType, body)

	if message == "" {
		message = http.StatusText(code)
	}

	msg := fmt.Sprintf("[code: %d] %s", code, message)
	if status != "" {
		msg = fmt.Sprintf("[code: %d, status: %s] %s", code, status, message)
	}

	if code == http.StatusNotFound || status == StatusNotFound || status == StatusMissingData {
		return NewNotFoundError(msg)
	}

	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return NewUnauthorizedError(code, msg)
	}

	if code == http.StatusBadRequest {
		return NewBadRequestError(msg)
	}

	return NewInternalError(code, msg)
}

func parseErrorBody(contentType string, body []byte) (status, message string) {
	if len(body) == 0 {
		return "", ""
	}

	if contentType != "" && !strings.Contains(contentType, "json") {
		return "", strings.TrimSpace(string(body))
	}

	report := struct {
		StatusCode int    `json:"statusCode"`
		Status     string `json:"status"`
		Message    string `json:"message"`
		Body       *struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"body"`
	}{}

	if err := json.Unmarshal(body, &report); err != nil {
		return "", strings.TrimSpace(string(body))
	}

	if report.Body != nil {
		return report.Body.Status, report.Body.Message
	}

	return report.Status, report.Message
}
