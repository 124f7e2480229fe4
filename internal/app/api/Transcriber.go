package api

import (
	"context"
	"fmt"

	"audio-transcriber/internal/app/intake"
)

// Transcriber converts an accepted upload to text. Implementations must honour ctx
// cancellation and must not retry on their own.
type Transcriber interface {
	Transcribe(ctx context.Context, upload intake.AcceptedUpload) (string, error)
}

// TranscriberFunc adapts a function to the Transcriber interface.
type TranscriberFunc func(ctx context.Context, upload intake.AcceptedUpload) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, upload intake.AcceptedUpload) (string, error) {
	return f(ctx, upload)
}

// TranscriptionError represents a backend-specific failure.
type TranscriptionError struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	// Retryable is informational; callers surface the failure without retrying.
	Retryable bool  `json:"retryable"`
	Err       error `json:"-"`
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
