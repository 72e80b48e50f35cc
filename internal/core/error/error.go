package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// TimeoutMessage describes a model call that exceeded its deadline.
	TimeoutMessage = "model request timed out"
	// ProviderUnavailableMessage describes auth, network or HTTP failures of the model provider.
	ProviderUnavailableMessage = "model provider unavailable"
	// AnswerParseMessage describes an answering response that never matched the schema.
	AnswerParseMessage = "answer response did not match schema"
	// PreprocessParseMessage describes a preprocessing response that never matched the schema.
	PreprocessParseMessage = "preprocess response did not match schema"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindInternal               Kind = "internal"
	KindPreprocessParseFailure Kind = "preprocess_parse_failure"
	KindAnswerParseFailure     Kind = "answer_parse_failure"
	KindRequestTimeout         Kind = "request_timeout"
	KindProviderUnavailable    Kind = "provider_unavailable"
	KindRedis                  Kind = "redis"
)

// AppError wraps an underlying error with a status, a safe message and a failure kind.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindInternal,
	}
}

// Timeout marks err as a RequestTimeout.
func Timeout(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusGatewayTimeout, Message: TimeoutMessage, Kind: KindRequestTimeout}
}

// ProviderUnavailable marks err as a terminal provider failure.
func ProviderUnavailable(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusBadGateway, Message: ProviderUnavailableMessage, Kind: KindProviderUnavailable}
}

// AnswerParse marks err as an AnswerParseFailure.
func AnswerParse(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusUnprocessableEntity, Message: AnswerParseMessage, Kind: KindAnswerParseFailure}
}

// PreprocessParse marks err as a PreprocessParseFailure.
func PreprocessParse(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusUnprocessableEntity, Message: PreprocessParseMessage, Kind: KindPreprocessParseFailure}
}

// WrapProvider classifies an error returned by a chat model call.
// Deadline expiry becomes a RequestTimeout, anything else ProviderUnavailable.
// Errors that already carry a kind are returned unchanged.
func WrapProvider(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	return ProviderUnavailable(err)
}

// KindOf returns the failure kind carried by err, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}
