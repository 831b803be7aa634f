// Package errors defines the failure taxonomy of the inpainting pipeline.
//
// Every failure that crosses a package boundary is an *Error carrying a Kind,
// so callers can branch with errors.Is against the Err* sentinels or map a
// failure to a user-facing status with StatusCode.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind represents a category of pipeline failure.
type Kind string

const (
	KindInvalidPolygon   Kind = "invalid_polygon"
	KindNoValidRegions   Kind = "no_valid_regions"
	KindDegenerateRegion Kind = "degenerate_region"
	KindModelNotReady    Kind = "model_not_ready"
	KindInference        Kind = "inference"
	KindIOConversion     Kind = "io_conversion"
)

// Error is a structured pipeline error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, which lets the sentinels below
// stand in for a whole category.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Cause == nil
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidPolygon   = &Error{Kind: KindInvalidPolygon}
	ErrNoValidRegions   = &Error{Kind: KindNoValidRegions}
	ErrDegenerateRegion = &Error{Kind: KindDegenerateRegion}
	ErrModelNotReady    = &Error{Kind: KindModelNotReady}
	ErrInference        = &Error{Kind: KindInference}
	ErrIOConversion     = &Error{Kind: KindIOConversion}
)

// NewInvalidPolygonError reports malformed polygon geometry.
func NewInvalidPolygonError(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidPolygon, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewNoValidRegionsError reports that every supplied polygon was filtered out.
func NewNoValidRegionsError(op string, supplied int) *Error {
	return &Error{
		Kind:    KindNoValidRegions,
		Op:      op,
		Message: fmt.Sprintf("none of %d polygons has at least 3 points", supplied),
	}
}

// NewDegenerateRegionError reports a planned region that is empty or escapes the image.
func NewDegenerateRegionError(op, format string, args ...any) *Error {
	return &Error{Kind: KindDegenerateRegion, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewModelNotReadyError reports an inference attempt before the model is available.
func NewModelNotReadyError(op, state string) *Error {
	return &Error{Kind: KindModelNotReady, Op: op, Message: "model state is " + state}
}

// NewInferenceError wraps an engine failure without altering it.
func NewInferenceError(op string, cause error) *Error {
	return &Error{Kind: KindInference, Op: op, Cause: cause}
}

// NewIOConversionError reports a buffer or tensor shape mismatch.
func NewIOConversionError(op, format string, args ...any) *Error {
	return &Error{Kind: KindIOConversion, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// StatusCode maps an error to an HTTP status code.
func StatusCode(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindInvalidPolygon, KindNoValidRegions, KindDegenerateRegion:
		return http.StatusBadRequest
	case KindModelNotReady:
		return http.StatusServiceUnavailable
	case KindInference:
		return http.StatusBadGateway
	case KindIOConversion:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
