package errutil

import "fmt"

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BaseError is the domain error carried from services up to the HTTP layer.
// Internal wrapped errors are logged but never rendered to clients.
type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

// JSON renders the uniform error envelope returned by every handler.
func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
			"details": e.Details,
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func BadRequest(msg string, opts ...Option) error {
	return New(StatusBadRequest, msg, opts...)
}

func ValidationFailed(msg string, opts ...Option) error {
	return New(StatusValidationFailed, msg, opts...)
}

func Unauthorized(msg string, opts ...Option) error {
	return New(StatusUnauthorized, msg, opts...)
}

func Forbidden(msg string, opts ...Option) error {
	return New(StatusForbidden, msg, opts...)
}

func NotFound(msg string, opts ...Option) error {
	return New(StatusNotFound, msg, opts...)
}

func Conflict(msg string, opts ...Option) error {
	return New(StatusConflict, msg, opts...)
}

func UnprocessableEntity(msg string, opts ...Option) error {
	return New(StatusUnprocessableEntity, msg, opts...)
}

func Internal(msg string, opts ...Option) error {
	return New(StatusInternal, msg, opts...)
}

func ServiceUnavailable(msg string, opts ...Option) error {
	return New(StatusServiceUnavailable, msg, opts...)
}
