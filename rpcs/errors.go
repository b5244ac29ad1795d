package rpcs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	errs "github.com/eaugeas/keyset/errors"
	"github.com/eaugeas/keyset/logs"
)

// HttpError holds the necessary information to return an error when
// using the http protocol
type HttpError struct {
	// Cause of the creation of this HttpError instance
	Cause error

	// StatusCode is the HTTP status code that defines the error cause
	StatusCode int

	// Message is the human-readable string that defines the error cause
	Message string
}

// Log implementation of logs.Loggable
func (e *HttpError) Log(fields logs.Fields) {
	fields.Add("status_code", e.StatusCode)
	if e.Cause == nil {
		return
	}

	var coded *errs.Error
	if errors.As(e.Cause, &coded) {
		coded.Log(fields)
		return
	}
	fields.Add("description", e.Cause.Error())
}

func (e *HttpError) Error() string {
	reason := e.Message
	if e.Cause != nil {
		reason = e.Cause.Error()
	}
	return fmt.Sprintf("%s with status code %d", reason, e.StatusCode)
}

func (e *HttpError) Unwrap() error {
	return e.Cause
}

// body is what the client receives. Only coded causes are exposed,
// anything else is described by the message
func (e *HttpError) body() errs.Error {
	var coded *errs.Error
	if errors.As(e.Cause, &coded) {
		return *coded
	}

	return errs.Error{ErrorCode: errs.ErrorCodeUnknown, Description: e.Message}
}

// asHttpError converts any error into an HttpError. Errors that are
// not already HttpErrors become internal server errors
func asHttpError(ctx context.Context, err error) *HttpError {
	var httpErr *HttpError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return HttpInternalServerError(ctx, err)
}

// MakeHttpError makes a new http error
func MakeHttpError(ctx context.Context, err error, statusCode int, msg string) *HttpError {
	return &HttpError{
		Cause:      err,
		StatusCode: statusCode,
		Message:    msg,
	}
}

// HttpBadRequest returns an HTTP bad request error
func HttpBadRequest(ctx context.Context, err error) *HttpError {
	return MakeHttpError(ctx, err, http.StatusBadRequest, "Bad Request")
}

// HttpNotFound returns an HTTP not found error
func HttpNotFound(ctx context.Context, err error) *HttpError {
	return MakeHttpError(ctx, err, http.StatusNotFound, "Not Found")
}

// HttpMethodNotAllowed returns an HTTP method not allowed error
func HttpMethodNotAllowed(ctx context.Context, err error) *HttpError {
	return MakeHttpError(ctx, err, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func HttpConflict(ctx context.Context, err error) *HttpError {
	return MakeHttpError(ctx, err, http.StatusConflict, "Conflict")
}

func HttpServiceUnavailable(ctx context.Context, err error) *HttpError {
	return MakeHttpError(ctx, err, http.StatusServiceUnavailable, "Service Unavailable")
}

// HttpInternalServerError returns an HTTP internal server error
func HttpInternalServerError(ctx context.Context, err error) *HttpError {
	return MakeHttpError(ctx, err, http.StatusInternalServerError, "Internal Server Error")
}
