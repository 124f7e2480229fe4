package dto

import (
	"time"

	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/workflow"
)

// SessionResponse represents an upload session in API responses
type SessionResponse struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Snapshot  workflow.Snapshot `json:"snapshot"`
}

// TranscriptionResponse is the result of a one-shot transcription.
type TranscriptionResponse struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// IntakeResponse describes what the upload control accepts.
type IntakeResponse struct {
	AllowedMediaTypes []string              `json:"allowed_media_types"`
	MaxSizeBytes      int64                 `json:"max_size_bytes"`
	Accept            string                `json:"accept"`
	Provider          provider.ProviderInfo `json:"provider"`
}
