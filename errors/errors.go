package errors

import "github.com/eaugeas/keyset/logs"

// Error codes returned to the clients of the API
const (
	ErrorCodeUnknown          = -1
	ErrorCodeBadRequest       = 1000
	ErrorCodeSetExists        = 1001
	ErrorCodeSetNotFound      = 1002
	ErrorCodeCapacityExceeded = 1003
	ErrorCodeUnknownKind      = 1004
	ErrorCodeUnavailable      = 1005
)

// Error is the response returned by the server when it fails
// to satisfy a request
type Error struct {
	// ErrorCode is a unique identifier for the error that can be used to identify
	// the particular type of error encountered
	ErrorCode int `json:"errorCode"`

	// Description is a human-readable description of the error that occurred
	// to aid the client in debugging
	Description string `json:"description"`
}

// New creates an error with code and description
func New(code int, description string) *Error {
	return &Error{ErrorCode: code, Description: description}
}

// Error is the implementation of go's error interface for Error
func (e *Error) Error() string {
	return e.Description
}

func (e *Error) Log(fields logs.Fields) {
	fields.Add("error_code", e.ErrorCode)
	fields.Add("description", e.Description)
}
