package whisper

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"audio-transcriber/internal/app/api"
	"audio-transcriber/internal/app/intake"
)

const providerName = "openai"

// Config holds the OpenAI transcription settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Prompt   string
}

// RemoteTranscriber implements remote transcription using the OpenAI API.
type RemoteTranscriber struct {
	client   *openai.Client
	model    string
	language string
	prompt   string
}

// NewRemoteTranscriber creates a new RemoteTranscriber instance.
func NewRemoteTranscriber(client *openai.Client, cfg Config) *RemoteTranscriber {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &RemoteTranscriber{
		client:   client,
		model:    model,
		language: cfg.Language,
		prompt:   cfg.Prompt,
	}
}

// NewFromConfig builds the go-openai client from cfg.
func NewFromConfig(cfg Config) *RemoteTranscriber {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return NewRemoteTranscriber(openai.NewClientWithConfig(clientConfig), cfg)
}

// Transcribe streams the upload to the OpenAI audio transcription endpoint.
func (rt *RemoteTranscriber) Transcribe(ctx context.Context, upload intake.AcceptedUpload) (string, error) {
	if upload.Open == nil {
		return "", &api.TranscriptionError{
			Provider: providerName,
			Code:     "invalid_input",
			Message:  "upload has no payload",
		}
	}

	body, err := upload.Open()
	if err != nil {
		return "", &api.TranscriptionError{
			Provider: providerName,
			Code:     "payload_open_failed",
			Message:  "failed to open upload",
			Err:      err,
		}
	}
	defer body.Close()

	req := openai.AudioRequest{
		Model: rt.model,
		// FilePath only names the multipart part when Reader is set.
		FilePath: upload.Name,
		Reader:   body,
		Language: rt.language,
		Prompt:   rt.prompt,
	}
	resp, err := rt.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", &api.TranscriptionError{
			Provider:  providerName,
			Code:      errorCode(err),
			Message:   "createTranscription failed",
			Retryable: retryable(err),
			Err:       err,
		}
	}

	return resp.Text, nil
}

func errorCode(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("http_%d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("http_%d", reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "request_failed"
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}
