package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	bubbleerrors "github.com/diwise/bubble-client/pkg/bubble/errors"
)

// Status values reported in error bodies
const (
	StatusNotFound     string = bubbleerrors.StatusNotFound
	StatusInvalidData  string = "INVALID_DATA"
	StatusUnauthorized string = "UNAUTHORIZED"
	StatusError        string = "ERROR"
)

const ContentType string = "application/json"

type errorDetails struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorReport is the error body returned by the data api
type ErrorReport struct {
	StatusCode int          `json:"statusCode"`
	Body       errorDetails `json:"body"`
}

func NewErrorReport(code int, status, message string) *ErrorReport {
	return &ErrorReport{
		StatusCode: code,
		Body: errorDetails{
			Status:  status,
			Message: message,
		},
	}
}

func (e *ErrorReport) WriteResponse(w http.ResponseWriter) {
	body, _ := json.Marshal(e)

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(e.StatusCode)
	w.Write(body)
}

func ReportNotFoundError(w http.ResponseWriter, message string) {
	NewErrorReport(http.StatusNotFound, StatusNotFound, message).WriteResponse(w)
}

func ReportBadRequestError(w http.ResponseWriter, message string) {
	NewErrorReport(http.StatusBadRequest, StatusInvalidData, message).WriteResponse(w)
}

func ReportUnauthorizedError(w http.ResponseWriter, message string) {
	NewErrorReport(http.StatusUnauthorized, StatusUnauthorized, message).WriteResponse(w)
}

func ReportInternalError(w http.ResponseWriter, message string) {
	NewErrorReport(http.StatusInternalServerError, StatusError, message).WriteResponse(w)
}

// ReportError writes the report that matches the kind of err
func ReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bubbleerrors.ErrNotFound):
		ReportNotFoundError(w, err.Error())
	case errors.Is(err, bubbleerrors.ErrBadRequest):
		ReportBadRequestError(w, err.Error())
	case errors.Is(err, bubbleerrors.ErrUnauthorized):
		ReportUnauthorizedError(w, err.Error())
	default:
		ReportInternalError(w, err.Error())
	}
}
