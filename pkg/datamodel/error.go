package datamodel

import (
	"errors"
	"fmt"
)

// ErrInvalidImage is returned for empty images or images whose channel layout
// cannot be read as RGB.
var ErrInvalidImage = errors.New("invalid image")

// ErrModelUnavailable is returned when the scorer failed to initialise. It is
// fatal to classification for the lifetime of the process.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrScoring is returned when the tensor or the model output does not match
// the expected shape, or when the backend fails while running.
var ErrScoring = errors.New("scoring error")

// ErrSubmission matches every *SubmissionError with errors.Is.
var ErrSubmission = errors.New("feedback submission failed")

// SubmissionErrorKind tells what part of a submission failed.
type SubmissionErrorKind int

const (
	// KindHTTPStatus means the endpoint answered with a non-2xx status
	KindHTTPStatus SubmissionErrorKind = iota + 1
	// KindTransport means the request never got a response (DNS, reset,
	// timeout)
	KindTransport
	// KindPayloadTooLarge means the encoded upload exceeded the size cap and
	// was not sent
	KindPayloadTooLarge
	// KindEncode means the image could not be encoded for upload
	KindEncode
)

func (k SubmissionErrorKind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindTransport:
		return "transport"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindEncode:
		return "encode"
	}
	return "unknown"
}

// SubmissionError is returned by the submission client.
type SubmissionError struct {
	Kind       SubmissionErrorKind
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%s: %s returned HTTP %d", ErrSubmission, e.Endpoint, e.StatusCode)
	case KindPayloadTooLarge:
		return fmt.Sprintf("%s: %s payload too large: %v", ErrSubmission, e.Endpoint, e.Err)
	case KindEncode:
		return fmt.Sprintf("%s: %s payload could not be encoded: %v", ErrSubmission, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: %s transport failure: %v", ErrSubmission, e.Endpoint, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Is reports ErrSubmission as a match for any submission error.
func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

// NewHTTPStatusError builds a KindHTTPStatus error.
func NewHTTPStatusError(endpoint string, code int) *SubmissionError {
	return &SubmissionError{Kind: KindHTTPStatus, Endpoint: endpoint, StatusCode: code}
}

// NewTransportError builds a KindTransport error wrapping err.
func NewTransportError(endpoint string, err error) *SubmissionError {
	return &SubmissionError{Kind: KindTransport, Endpoint: endpoint, Err: err}
}
