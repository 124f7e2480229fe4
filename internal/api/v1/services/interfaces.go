package services

import (
	"context"

	"audio-transcriber/internal/api/v1/dto"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/workflow"
)

// SessionService drives per-session workflow controllers.
//
// Select, Remove and Submit return the resulting snapshot together with the domain
// error, so callers can show the user-facing state even when the operation was refused.
type SessionService interface {
	CreateSession(ctx context.Context) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, id string) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, id string) error
	SelectFile(ctx context.Context, id string, candidate intake.FileCandidate) (workflow.Snapshot, error)
	RemoveFile(ctx context.Context, id string) (workflow.Snapshot, error)
	Submit(ctx context.Context, id string) (workflow.Snapshot, error)
	Controller(ctx context.Context, id string) (*workflow.Controller, error)
}

// TranscriptionService validates and transcribes a single file, waiting for the result.
type TranscriptionService interface {
	Transcribe(ctx context.Context, candidate intake.FileCandidate) (*dto.TranscriptionResponse, error)
}
