package ocr

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mathscan/mathscan/internal/imaging"
)

// Result is the outcome of one recognition call.
//
// Either Success is true and ErrorMessage is empty, or Success is false and
// ErrorMessage says why. With confidence scoring disabled a successful
// result may carry empty Text.
type Result struct {
	Text string `json:"text"`

	// Confidence is the engine's mean word confidence (0-100). It stays zero
	// when confidence scoring is disabled.
	Confidence float64 `json:"confidence"`

	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Kind         ErrorKind `json:"error_kind,omitempty"`

	// ImageSize is the size of the input image before preprocessing.
	ImageSize imaging.Size `json:"image_size"`

	// ProcessingTime is the wall-clock time of the call, including failed
	// calls up to the point of failure.
	ProcessingTime time.Duration `json:"-"`
}

// ProcessingTimeMs returns ProcessingTime in whole milliseconds.
func (r Result) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}

// Err returns nil for a successful result and an error carrying the result's
// kind and message otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	cause := r.Kind.Sentinel()
	if cause == nil {
		cause = errors.New("recognition failed")
	}
	return &Error{Op: "Recognize", Kind: r.Kind, Err: cause, Details: r.ErrorMessage}
}

// MarshalJSON adds processing_time_ms to the encoded result.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		ProcessingTimeMs int64 `json:"processing_time_ms"`
	}{plain(r), r.ProcessingTimeMs()})
}

func failure(kind ErrorKind, msg string) Result {
	return Result{Kind: kind, ErrorMessage: msg}
}
