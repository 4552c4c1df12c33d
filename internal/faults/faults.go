// Package faults defines the error kinds produced by the extraction pipeline
// and the mapping from those errors to messages that are safe to show users.
package faults

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrDecode     = errors.New("document could not be decoded")
	ErrExtraction = errors.New("entity extraction failed")
	ErrRender     = errors.New("report could not be rendered")
	ErrCancelled  = errors.New("processing cancelled")
)

// DecodeError reports document bytes that are empty, malformed, or have no first page.
type DecodeError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	return format(ErrDecode, e.Filename, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() []error { return unwrap(ErrDecode, e.Err) }

// ExtractionError reports a failure of the NER capability itself.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return format(ErrExtraction, e.Filename, "", e.Err)
}

func (e *ExtractionError) Unwrap() []error { return unwrap(ErrExtraction, e.Err) }

// RenderError reports a report that could not be serialized.
type RenderError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *RenderError) Error() string {
	return format(ErrRender, e.Filename, e.Reason, e.Err)
}

func (e *RenderError) Unwrap() []error { return unwrap(ErrRender, e.Err) }

func format(kind error, filename, reason string, cause error) string {
	msg := kind.Error()
	if filename != "" {
		msg = fmt.Sprintf("%s: %q", msg, filename)
	}
	if reason != "" {
		msg += ": " + reason
	}
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return msg
}

func unwrap(kind, cause error) []error {
	if cause == nil {
		return []error{kind}
	}
	return []error{kind, cause}
}

// Decodef builds a DecodeError with a formatted reason.
func Decodef(filename string, cause error, format string, args ...any) error {
	return &DecodeError{Filename: filename, Reason: fmt.Sprintf(format, args...), Err: cause}
}

// IsSystemic reports whether err points at a broken process-wide dependency
// rather than a problem with one document.
func IsSystemic(err error) bool {
	return errors.Is(err, ErrExtraction)
}

// Messages shown to end users. They never include internal error text.
const (
	MsgDecode     = "There was an error processing this file."
	MsgExtraction = "Entities could not be extracted from this file. Please try again later."
	MsgRender     = "The report for this file could not be generated."
	MsgCancelled  = "Processing of this file was cancelled."
	MsgTooLarge   = "This file exceeds the maximum upload size."
	MsgGeneric    = "An unexpected error occurred while processing this file."
)

// userSafe lets other packages mark errors that carry their own client-safe message.
type userSafe interface {
	UserMessage() string
}

// UserMessage converts an internal error into a short generic message.
// The full error is logged server-side.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var safe userSafe
	var msg string
	switch {
	case errors.As(err, &safe):
		msg = safe.UserMessage()
	case errors.Is(err, ErrDecode):
		msg = MsgDecode
	case errors.Is(err, ErrExtraction):
		msg = MsgExtraction
	case errors.Is(err, ErrRender):
		msg = MsgRender
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		msg = MsgCancelled
	default:
		slog.Error("unclassified error (sanitized for client)", "error", err)
		return MsgGeneric
	}

	slog.Debug("sanitizing error for client", "original", err.Error(), "sanitized", msg)
	return msg
}
