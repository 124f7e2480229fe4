package services

import (
	"context"

	"go.uber.org/zap"

	"audio-transcriber/internal/api/errors"
	"audio-transcriber/internal/api/v1/dto"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/workflow"
)

// TranscriptionServiceImpl runs one throwaway controller per request.
type TranscriptionServiceImpl struct {
	newController func() *workflow.Controller
	logger        *zap.Logger
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(newController func() *workflow.Controller, logger *zap.Logger) TranscriptionService {
	return &TranscriptionServiceImpl{
		newController: newController,
		logger:        logging.OrNop(logger),
	}
}

// Transcribe validates the candidate, submits it and waits for the outcome.
// Ending ctx aborts the backend call.
func (s *TranscriptionServiceImpl) Transcribe(ctx context.Context, candidate intake.FileCandidate) (*dto.TranscriptionResponse, error) {
	ctrl := s.newController()
	defer ctrl.Close()

	if _, err := ctrl.Select(candidate); err != nil {
		return nil, ToAPIError(err)
	}

	submitted, err := ctrl.Submit()
	if err != nil {
		return nil, ToAPIError(err)
	}

	if err := ctrl.Wait(ctx); err != nil {
		s.logger.Info("Client went away before transcription finished",
			zap.String("transcription_id", submitted.RequestID),
			zap.Error(err),
		)
		return nil, errors.NewUpstreamError("transcription aborted", "canceled")
	}

	final := ctrl.Snapshot()
	if final.State != workflow.StateSucceeded {
		return nil, errors.NewUpstreamError(workflow.MessageTranscriptionFailed, string(workflow.ErrorRequestFailed))
	}

	return &dto.TranscriptionResponse{
		RequestID: submitted.RequestID,
		Text:      final.Result,
	}, nil
}
