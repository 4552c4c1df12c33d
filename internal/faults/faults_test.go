package faults

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type tooBig struct{}

func (tooBig) Error() string       { return "upload of 99999999 bytes rejected" }
func (tooBig) UserMessage() string { return MsgTooLarge }

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			expected: "",
		},
		{
			name:     "decode error is generic",
			err:      &DecodeError{Filename: "cv.pdf", Reason: "no first page", Err: errors.New("xref: malformed at offset 1023")},
			expected: MsgDecode,
		},
		{
			name:     "wrapped extraction error",
			err:      fmt.Errorf("document 3: %w", &ExtractionError{Filename: "cv.pdf", Err: errors.New("rpc error: code = Unavailable")}),
			expected: MsgExtraction,
		},
		{
			name:     "render error",
			err:      &RenderError{Filename: "cv.pdf", Reason: "empty table"},
			expected: MsgRender,
		},
		{
			name:     "context cancellation",
			err:      fmt.Errorf("wait: %w", context.Canceled),
			expected: MsgCancelled,
		},
		{
			name:     "error with its own message",
			err:      fmt.Errorf("intake: %w", tooBig{}),
			expected: MsgTooLarge,
		},
		{
			name:     "unknown error falls back to generic",
			err:      errors.New("open /srv/uploads/secret/path: permission denied"),
			expected: MsgGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDecodeErrorCarriesFilename(t *testing.T) {
	cause := errors.New("not a PDF")
	err := Decodef("resume.pdf", cause, "read failed")

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if de.Filename != "resume.pdf" {
		t.Errorf("Filename = %q", de.Filename)
	}
	if !errors.Is(err, ErrDecode) || !errors.Is(err, cause) {
		t.Errorf("error chain incomplete: %v", err)
	}
	if !strings.Contains(err.Error(), `"resume.pdf"`) {
		t.Errorf("message should mention the filename: %q", err.Error())
	}
}

func TestIsSystemic(t *testing.T) {
	if !IsSystemic(&ExtractionError{Err: errors.New("model unavailable")}) {
		t.Error("extraction errors are systemic")
	}
	if IsSystemic(&DecodeError{Reason: "empty"}) {
		t.Error("decode errors are per-document")
	}
}
