package ocr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a recognition failure.
type ErrorKind string

const (
	KindNotInitialized       ErrorKind = "not_initialized"
	KindInvalidImage         ErrorKind = "invalid_image"
	KindLoadFailure          ErrorKind = "load_failure"
	KindEngineFailure        ErrorKind = "engine_failure"
	KindLowConfidence        ErrorKind = "low_confidence"
	KindConfigurationFailure ErrorKind = "configuration_failure"
	KindCanceled             ErrorKind = "canceled"
)

// Sentinel errors, one per ErrorKind.
var (
	// ErrNotInitialized is returned when the engine could not be started.
	ErrNotInitialized = errors.New("OCR processor not initialized")

	// ErrInvalidImage is returned for missing, unsupported or empty images.
	ErrInvalidImage = errors.New("invalid image")

	// ErrLoadFailure is returned when an image file cannot be decoded.
	ErrLoadFailure = errors.New("failed to load image")

	// ErrEngineFailure is returned when the engine produced no output.
	ErrEngineFailure = errors.New("Tesseract failed to extract text")

	// ErrLowConfidence is returned when text was recognized below the
	// configured confidence threshold.
	ErrLowConfidence = errors.New("OCR confidence below threshold")

	// ErrConfiguration is returned when the engine rejects a configuration.
	ErrConfiguration = errors.New("OCR configuration rejected")

	// ErrCanceled is returned when a request is canceled before the engine
	// starts.
	ErrCanceled = errors.New("OCR canceled")

	// ErrEngineUnavailable is returned by engines that are not compiled in.
	ErrEngineUnavailable = errors.New("tesseract engine unavailable: binary built without cgo")
)

var kindSentinels = map[ErrorKind]error{
	KindNotInitialized:       ErrNotInitialized,
	KindInvalidImage:         ErrInvalidImage,
	KindLoadFailure:          ErrLoadFailure,
	KindEngineFailure:        ErrEngineFailure,
	KindLowConfidence:        ErrLowConfidence,
	KindConfigurationFailure: ErrConfiguration,
	KindCanceled:             ErrCanceled,
}

// Sentinel returns the sentinel error for k, or nil for an unknown kind.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// Error wraps a failure with the operation and its kind.
type Error struct {
	// Op is the operation that failed (e.g., "NewSession", "SetConfig").
	Op string

	Kind ErrorKind

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the underlying error and the sentinel of the error's kind, so
// errors.Is(err, ErrConfiguration) holds for any configuration failure.
func (e *Error) Is(target error) bool {
	if s := e.Kind.Sentinel(); s != nil && s == target {
		return true
	}
	return errors.Is(e.Err, target)
}

func newError(op string, kind ErrorKind, err error, details string) *Error {
	return &Error{Op: op, Kind: kind, Err: err, Details: details}
}

// KindOf returns the ErrorKind carried by err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
