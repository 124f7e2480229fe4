// Package simulated provides a stand-in backend that answers after a fixed delay.
// It is the default provider for local development when no real speech-to-text
// endpoint is configured.
package simulated

import (
	"context"
	"errors"
	"time"

	"audio-transcriber/internal/app/api"
	"audio-transcriber/internal/app/intake"
)

const (
	DefaultDelay = 2 * time.Second
	DefaultText  = "This is a simulated transcription of your audio file. In a real implementation, " +
		"this would be the actual transcription from OpenAI's Whisper model. The transcription would " +
		"include all the spoken content from your audio or video file, formatted as text."
)

// ErrSimulatedFailure is returned when the transcriber is configured to fail.
var ErrSimulatedFailure = errors.New("simulated transcription failure")

type Config struct {
	Delay time.Duration
	Text  string
	Fail  bool
}

// Transcriber waits Delay and then returns Text, or fails when Fail is set.
type Transcriber struct {
	delay time.Duration
	text  string
	fail  bool
}

func New(cfg Config) *Transcriber {
	text := cfg.Text
	if text == "" {
		text = DefaultText
	}
	return &Transcriber{delay: cfg.Delay, text: text, fail: cfg.Fail}
}

func (t *Transcriber) Transcribe(ctx context.Context, _ intake.AcceptedUpload) (string, error) {
	timer := time.NewTimer(t.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", &api.TranscriptionError{Provider: "simulated", Code: "canceled", Message: "transcription aborted", Err: ctx.Err()}
	case <-timer.C:
	}

	if t.fail {
		return "", &api.TranscriptionError{Provider: "simulated", Code: "forced_failure", Message: "transcription failed", Err: ErrSimulatedFailure}
	}
	return t.text, nil
}
